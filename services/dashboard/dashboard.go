// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dashboard provides the dashboard API service.
//
// # Description
//
// The dashboard API is the backend for the MetaMorph UI: it owns the
// bounded event log the UI polls, the GitHub OAuth session, repository and
// pull-request browsing, and the two entry points into the healing pipeline
// (the Kestra trigger and the direct agent run).
//
// # Usage
//
//	cfg := dashboard.Config{Port: 3000, AgentURL: "http://agent:8000"}
//	svc, err := dashboard.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/metamorphhq/metamorph/pkg/eventlog"
	"github.com/metamorphhq/metamorph/services/dashboard/datatypes"
	"github.com/metamorphhq/metamorph/services/dashboard/githubapi"
	"github.com/metamorphhq/metamorph/services/dashboard/handlers"
	"github.com/metamorphhq/metamorph/services/dashboard/healing"
	"github.com/metamorphhq/metamorph/services/dashboard/middleware"
	"github.com/metamorphhq/metamorph/services/dashboard/observability"
)

// Service defines the dashboard service lifecycle.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// Config holds dashboard configuration.
type Config struct {
	// Port is the HTTP server port. Default: 3000.
	Port int

	// GithubClientID and GithubClientSecret are the OAuth app credentials.
	GithubClientID     string
	GithubClientSecret string

	// OAuthRedirectURL is where GitHub sends the user back with the code.
	OAuthRedirectURL string

	// OAuthEndpoint overrides the OAuth authorize/token endpoints. Used by
	// tests; the zero value means GitHub.
	OAuthEndpoint oauth2.Endpoint

	// GitHubAPIBaseURL overrides the GitHub API base URL. Used by tests.
	GitHubAPIBaseURL string

	// AgentURL is the healing agent service base URL.
	AgentURL string

	// AgentTimeout bounds one healing run. Default: 5m.
	AgentTimeout time.Duration

	// KestraURL is the Kestra server base URL for pipeline triggers.
	KestraURL string

	// EventCapacity bounds the event log. Default: eventlog.DefaultCapacity.
	EventCapacity int

	// SecureCookies marks session cookies Secure. Enable behind TLS.
	SecureCookies bool

	// EnableMetrics exposes Prometheus metrics at /metrics.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// OTelEndpoint is the OpenTelemetry collector endpoint. Empty
	// disables tracing export.
	OTelEndpoint string
}

type service struct {
	config        Config
	router        *gin.Engine
	events        *eventlog.Log
	executor      *healing.Executor
	metrics       *observability.DashboardMetrics
	oauthCfg      *oauth2.Config
	tracerCleanup func(context.Context)
}

// New creates a dashboard Service from the given configuration.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		s.metrics = observability.InitMetrics()
	}

	s.events = eventlog.New(s.config.EventCapacity)

	agent := healing.NewAgentClient(s.config.AgentURL, s.config.AgentTimeout)
	s.executor = healing.NewExecutor(agent, s.hostFactory(), s.events, slog.Default())

	s.oauthCfg = &oauth2.Config{
		ClientID:     s.config.GithubClientID,
		ClientSecret: s.config.GithubClientSecret,
		RedirectURL:  s.config.OAuthRedirectURL,
		Scopes:       []string{"repo", "workflow"},
		Endpoint:     s.config.OAuthEndpoint,
	}

	datatypes.RegisterValidations()
	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer func() {
		if s.tracerCleanup != nil {
			s.tracerCleanup(context.Background())
		}
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting dashboard", "addr", addr, "event_capacity", s.config.EventCapacity)
	return s.router.Run(addr)
}

// Router returns the configured Gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = healing.DefaultAgentTimeout
	}
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = eventlog.DefaultCapacity
	}
	if cfg.OAuthEndpoint.AuthURL == "" {
		cfg.OAuthEndpoint = githuboauth.Endpoint
	}
	return cfg
}

// hostFactory builds the per-token GitHub clients the executor and the
// browsing handlers share. One factory so the base-URL override applies
// everywhere.
func (s *service) hostFactory() healing.HostFactory {
	return func(token string) (healing.GitHost, error) {
		return githubapi.NewClient(token, s.config.GitHubAPIBaseURL)
	}
}

func (s *service) browserFactory() handlers.GithubBrowserFactory {
	return func(token string) (handlers.GithubBrowser, error) {
		return githubapi.NewClient(token, s.config.GitHubAPIBaseURL)
	}
}

func (s *service) identityFunc() handlers.IdentityFunc {
	return func(ctx context.Context, token string) (datatypes.UserIdentity, error) {
		client, err := githubapi.NewClient(token, s.config.GitHubAPIBaseURL)
		if err != nil {
			return datatypes.UserIdentity{}, err
		}
		return client.AuthenticatedUser(ctx)
	}
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("dashboard-service"))

	api := router.Group("/api")
	{
		api.GET("/events", handlers.HandleLatestEvent(s.events))
		api.GET("/events/history", handlers.HandleEventHistory(s.events))
		api.POST("/events", handlers.HandleAppendEvent(s.events, s.metrics))

		api.POST("/webhooks", handlers.HandleIncomingWebhook(s.events, s.metrics))
		api.GET("/webhooks", handlers.HandleWebhookStatus(s.events))

		api.GET("/auth/github", handlers.HandleGithubAuth(
			s.oauthCfg, s.identityFunc(), s.config.SecureCookies))

		api.GET("/repos", middleware.RequireGithubToken(),
			handlers.HandleListRepos(s.browserFactory(), s.metrics))
		api.GET("/check-prs", middleware.RequireGithubToken(),
			handlers.HandleCheckPRs(s.browserFactory(), s.metrics))

		api.POST("/trigger", handlers.HandleTrigger(s.config.KestraURL, s.events))
		api.POST("/heal", handlers.HandleHeal(s.executor, s.metrics))
	}

	router.GET("/health", handlers.HealthCheck)
	if s.config.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.router = router
}

// initTracer sets up the OTLP trace exporter. When no collector endpoint is
// configured the provider stays local and spans are not exported.
func (s *service) initTracer() (func(context.Context), error) {
	if s.config.OTelEndpoint == "" {
		return func(context.Context) {}, nil
	}

	ctx := context.Background()
	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("dashboard-service")))
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}
