package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"upgrade-arbitration/backend/internal/arbiter"
)

// Config holds the reasoning-service configuration parameters.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// PlannerClient proposes arbitration plans through an OpenAI-compatible
// chat-completions endpoint. It implements arbiter.Planner and is always
// wrapped with WithFallback so a failed or malformed proposal degrades to
// the deterministic default plan.
type PlannerClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// ErrDisabled reports that no reasoning credentials were configured.
var ErrDisabled = errors.New("reasoning planner disabled")

// NewPlannerClient constructs a PlannerClient if the supplied
// configuration is valid.
func NewPlannerClient(cfg Config) (*PlannerClient, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &PlannerClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *PlannerClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// PlanSteps requests an evaluation plan from the reasoning service. Any
// transport error, non-200 status, or response that does not satisfy the
// JSON contract is returned as an error; the caller's fallback chain
// recovers with the default plan.
func (c *PlannerClient) PlanSteps(ctx context.Context, actx *arbiter.Context) (arbiter.Plan, error) {
	if c == nil || !c.Enabled() {
		return arbiter.Plan{}, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.buildPayload(actx))
	if err != nil {
		return arbiter.Plan{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return arbiter.Plan{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return arbiter.Plan{}, fmt.Errorf("reasoner request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return arbiter.Plan{}, fmt.Errorf("reasoner status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return arbiter.Plan{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return arbiter.Plan{}, errors.New("reasoner empty response")
	}

	content := normalizeJSONBlock(decoded.Choices[0].Message.Content)
	if content == "" {
		return arbiter.Plan{}, errors.New("reasoner empty plan")
	}

	return parsePlan(content)
}

// planProposal is the required JSON contract for a proposed plan.
type planProposal struct {
	Steps []struct {
		StepID         string `json:"step_id"`
		EvaluationType string `json:"evaluation_type"`
		Description    string `json:"description"`
	} `json:"steps"`
	Reasoning string `json:"reasoning"`
}

// parsePlan validates a proposal against the plan contract. A proposal
// with zero steps, a duplicate step ID, or any unknown evaluation type is
// rejected as a whole.
func parsePlan(content string) (arbiter.Plan, error) {
	var proposal planProposal
	if err := json.Unmarshal([]byte(content), &proposal); err != nil {
		return arbiter.Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	if len(proposal.Steps) == 0 {
		return arbiter.Plan{}, errors.New("plan has no steps")
	}

	steps := make([]arbiter.EvaluationStep, 0, len(proposal.Steps))
	seen := make(map[string]struct{}, len(proposal.Steps))
	for i, raw := range proposal.Steps {
		evalType, err := arbiter.ParseEvaluationType(strings.ToUpper(strings.TrimSpace(raw.EvaluationType)))
		if err != nil {
			return arbiter.Plan{}, err
		}
		stepID := strings.TrimSpace(raw.StepID)
		if stepID == "" {
			stepID = fmt.Sprintf("step-%d", i+1)
		}
		if _, dup := seen[stepID]; dup {
			return arbiter.Plan{}, fmt.Errorf("duplicate step id %q", stepID)
		}
		seen[stepID] = struct{}{}
		steps = append(steps, arbiter.EvaluationStep{
			StepID:      stepID,
			Type:        evalType,
			Description: strings.TrimSpace(raw.Description),
		})
	}

	return arbiter.Plan{
		Steps:     steps,
		Source:    arbiter.PlanSourceReasoner,
		Reasoning: strings.TrimSpace(proposal.Reasoning),
	}, nil
}

func (c *PlannerClient) buildPayload(actx *arbiter.Context) map[string]any {
	messages := []map[string]string{
		{
			"role": "system",
			"content": "You are an airline upgrade-offer strategist. Reply with a strict JSON object " +
				"{\"steps\": [{\"step_id\", \"evaluation_type\", \"description\"}], \"reasoning\"}. " +
				"evaluation_type must be one of CONFIDENCE, RELATIONSHIP, PRICE_SENSITIVITY, INVENTORY, EV_COMPARISON. " +
				"Propose at most four steps, each addressing a real trade-off in the data. Emit nothing outside the JSON object.",
		},
		{
			"role":    "user",
			"content": buildPrompt(actx),
		},
	}
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	return payload
}

// buildPrompt renders a bounded description of the arbitration context:
// per-offer propensity, confidence, and inventory priority plus the
// customer signals the evaluators act on.
func buildPrompt(actx *arbiter.Context) string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "Customer segment: %s\n", actx.Customer.Segment)
	fmt.Fprintf(builder, "Price sensitivity: %s\n", actx.Customer.PriceSensitivity)
	fmt.Fprintf(builder, "Recent service issue: %t\n", actx.Customer.RecentServiceIssue.HadIssue)
	if actx.Customer.RecentServiceIssue.HadIssue {
		fmt.Fprintf(builder, "Issue type: %s (sentiment %s)\n",
			actx.Customer.RecentServiceIssue.IssueType, actx.Customer.RecentServiceIssue.Sentiment)
	}
	fmt.Fprintf(builder, "Hours to departure: %.0f\n", actx.HoursToDeparture)
	builder.WriteString("Offer options:\n")
	for _, o := range actx.Options {
		fmt.Fprintf(builder, "- %s (%s): p_buy=%.2f confidence=%.2f price=$%.2f ev=$%.2f inventory=%s\n",
			o.OfferType, o.CabinCode, o.PBuy, o.Confidence, o.BasePrice, o.ExpectedValue, o.InventoryPriority)
	}
	builder.WriteString("Plan the evaluations needed to pick one offer and its discount.\n")
	return builder.String()
}

// normalizeJSONBlock strips markdown code fences and surrounding prose so
// only the JSON object remains.
func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if strings.HasSuffix(trimmed, "```") {
			trimmed = trimmed[:len(trimmed)-3]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
