// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command relay starts the MetaMorph webhook relay HTTP server.
//
// The relay sits between the workflow orchestrator and the outside world:
// it accepts typed forwarding requests and performs exactly one outbound
// call per request.
//
// # Environment Variables
//
//   - RELAY_PORT: HTTP server port (default: 3001)
//   - DASHBOARD_WEBHOOK_URL: dashboard endpoint behind the "vercel" type
//   - GITHUB_DISPATCH_REPO: "owner/name" repo behind the "github" type
//   - RELAY_TIMEOUT_SECONDS: outbound dispatch timeout (default: 10)
//   - GIN_MODE: gin framework mode (default: release)
//   - LOG_DIR: directory for file logging (optional; stderr only when unset)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	go build -o relay ./cmd/relay
//	./relay
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
	"github.com/metamorphhq/metamorph/services/relay"
)

func main() {
	// Optional .env for local development; the container sets real env vars.
	_ = godotenv.Load()

	logger := logging.New(logging.Config{
		Service: "relay",
		JSON:    true,
		LogDir:  os.Getenv("LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := relay.Config{
		Port:                getEnvInt("RELAY_PORT", 3001),
		DashboardWebhookURL: os.Getenv("DASHBOARD_WEBHOOK_URL"),
		GitHubDispatchRepo:  os.Getenv("GITHUB_DISPATCH_REPO"),
		Timeout:             time.Duration(getEnvInt("RELAY_TIMEOUT_SECONDS", 10)) * time.Second,
		EnableMetrics:       true,
		GinMode:             getEnvString("GIN_MODE", gin.ReleaseMode),
		OTelEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	slog.Info("Starting relay",
		"port", cfg.Port,
		"dispatch_repo", cfg.GitHubDispatchRepo,
		"timeout", cfg.Timeout,
	)

	svc, err := relay.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create relay: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Relay error: %v", err)
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
