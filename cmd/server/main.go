package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"upgrade-arbitration/backend/internal/ai"
	"upgrade-arbitration/backend/internal/api"
)

func main() {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded environment from .env")
	}

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	aiCfg := ai.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	if temp := os.Getenv("OPENAI_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			aiCfg.Temperature = v
		}
	}
	if maxTokens := os.Getenv("OPENAI_MAX_TOKENS"); maxTokens != "" {
		if v, err := strconv.Atoi(maxTokens); err == nil {
			aiCfg.MaxTokens = v
		}
	}
	if timeout := os.Getenv("PLANNER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			aiCfg.Timeout = d
		}
	}

	cfg := api.Config{
		DBPath:               filepath.Join(dataDir, "arbitration.db"),
		PolicyPath:           filepath.Join(baseDir, "config", "discount_policies.json"),
		AIConfig:             aiCfg,
		DisableAI:            strings.EqualFold(strings.TrimSpace(os.Getenv("DISABLE_AI")), "true"),
		IncludeFallbackOffer: strings.EqualFold(strings.TrimSpace(os.Getenv("INCLUDE_FALLBACK_OFFER")), "true"),
	}
	if override := strings.TrimSpace(os.Getenv("ARBITRATION_DB_PATH")); override != "" {
		cfg.DBPath = override
	}
	if override := strings.TrimSpace(os.Getenv("DISCOUNT_POLICY_PATH")); override != "" {
		cfg.PolicyPath = override
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer func() {
		if cerr := server.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close server")
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "2100"
	}

	logrus.Infof("starting upgrade-arbitration backend on :%s", port)
	if err := server.Router().Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
