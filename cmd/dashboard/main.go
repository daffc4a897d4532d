// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command dashboard starts the MetaMorph dashboard API server.
//
// # Environment Variables
//
//   - DASHBOARD_PORT: HTTP server port (default: 3000)
//   - GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET: OAuth app credentials
//   - OAUTH_REDIRECT_URL: OAuth callback URL
//   - AGENT_URL: healing agent service base URL (default: http://localhost:8000)
//   - AGENT_TIMEOUT_SECONDS: healing run timeout (default: 300)
//   - KESTRA_URL: Kestra server base URL (default: http://localhost:8080)
//   - SECURE_COOKIES: set "true" behind TLS
//   - GIN_MODE: gin framework mode (default: release)
//   - LOG_DIR: directory for file logging (optional; stderr only when unset)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	go build -o dashboard ./cmd/dashboard
//	./dashboard
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/metamorphhq/metamorph/pkg/logging"
	"github.com/metamorphhq/metamorph/services/dashboard"
)

func main() {
	// Optional .env for local development; the container sets real env vars.
	_ = godotenv.Load()

	logger := logging.New(logging.Config{
		Service: "dashboard",
		JSON:    true,
		LogDir:  os.Getenv("LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := dashboard.Config{
		Port:               getEnvInt("DASHBOARD_PORT", 3000),
		GithubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GithubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		OAuthRedirectURL:   os.Getenv("OAUTH_REDIRECT_URL"),
		AgentURL:           getEnvString("AGENT_URL", "http://localhost:8000"),
		AgentTimeout:       time.Duration(getEnvInt("AGENT_TIMEOUT_SECONDS", 300)) * time.Second,
		KestraURL:          getEnvString("KESTRA_URL", "http://localhost:8080"),
		SecureCookies:      os.Getenv("SECURE_COOKIES") == "true",
		EnableMetrics:      true,
		GinMode:            getEnvString("GIN_MODE", gin.ReleaseMode),
		OTelEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	slog.Info("Starting dashboard",
		"port", cfg.Port,
		"agent_url", cfg.AgentURL,
		"kestra_url", cfg.KestraURL,
	)

	svc, err := dashboard.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create dashboard: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Dashboard error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
