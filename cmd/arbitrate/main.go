// Command arbitrate runs a single offer arbitration from a JSON scenario
// file and prints the decision, for offline what-if analysis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"upgrade-arbitration/backend/internal/ai"
	"upgrade-arbitration/backend/internal/arbiter"
	"upgrade-arbitration/backend/internal/policy"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "Path to scenario JSON (customer, flight, scores, recommended_cabins)")
		policyPath   = flag.String("policies", filepath.FromSlash("config/discount_policies.json"), "Path to discount policy JSON")
		heuristic    = flag.Bool("heuristic", false, "Force the deterministic default plan (skip the reasoning call)")
		fallback     = flag.Bool("fallback-offer", false, "Attach the second-best option to the decision")
		pretty       = flag.Bool("pretty", true, "Indent the decision JSON output")
		timeout      = flag.Duration("timeout", 10*time.Second, "Overall run timeout")
	)
	flag.Parse()

	if *scenarioPath == "" {
		flag.Usage()
		logrus.Fatal("scenario file required")
	}

	_ = godotenv.Load()

	data, err := os.ReadFile(filepath.Clean(*scenarioPath))
	if err != nil {
		logrus.Fatalf("read scenario: %v", err)
	}
	var input arbiter.Input
	if err := json.Unmarshal(data, &input); err != nil {
		logrus.Fatalf("parse scenario: %v", err)
	}
	if len(input.RecommendedCabins) == 0 {
		logrus.Fatal("scenario has no recommended cabins; run the eligibility precheck first")
	}

	policies := policy.Load(*policyPath)

	planner := arbiter.Planner(arbiter.HeuristicPlanner{})
	if !*heuristic {
		client, err := ai.NewPlannerClient(ai.Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   os.Getenv("OPENAI_MODEL"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		})
		if err == nil {
			planner = ai.WithFallback(client, arbiter.HeuristicPlanner{})
		} else {
			logrus.WithError(err).Info("reasoning planner unavailable, using heuristic plans")
		}
	}

	engine := arbiter.NewEngine(planner, policies, *fallback)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	decision, err := engine.Arbitrate(ctx, input)
	if err != nil {
		logrus.Fatalf("arbitrate: %v", err)
	}

	var out []byte
	if *pretty {
		out, err = json.MarshalIndent(decision, "", "  ")
	} else {
		out, err = json.Marshal(decision)
	}
	if err != nil {
		logrus.Fatalf("encode decision: %v", err)
	}
	fmt.Println(string(out))
}
