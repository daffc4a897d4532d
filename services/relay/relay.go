// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package relay provides the webhook relay service.
//
// # Description
//
// The relay is a small standalone HTTP service that accepts a typed
// forwarding request, resolves it against the destination table, performs
// exactly one outbound POST, and returns a normalized result envelope. It
// decouples callers that cannot make arbitrary outbound calls (the workflow
// orchestrator, the dashboard UI) from destination-specific protocol
// details.
//
// # Usage
//
//	cfg := relay.Config{Port: 3001, GitHubDispatchRepo: "metamorphhq/demo"}
//	svc, err := relay.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metamorphhq/metamorph/services/relay/dispatch"
	"github.com/metamorphhq/metamorph/services/relay/handlers"
	"github.com/metamorphhq/metamorph/services/relay/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Service defines the relay service lifecycle.
//
// Run blocks until the server stops; Router exposes the configured Gin
// engine for integration tests. Implementations are safe for concurrent use
// after construction.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// Config holds relay configuration. All fields have defaults.
type Config struct {
	// Port is the HTTP server port. Default: 3001.
	Port int

	// DashboardWebhookURL is the dashboard endpoint behind the "vercel"
	// destination type.
	DashboardWebhookURL string

	// GitHubDispatchRepo is the "owner/name" repository behind the
	// "github" destination type.
	GitHubDispatchRepo string

	// GitHubAPIBaseURL overrides the GitHub API base URL. Used by tests.
	GitHubAPIBaseURL string

	// Timeout bounds each outbound dispatch. Default: 10s.
	Timeout time.Duration

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
	dispatcher    *dispatch.Dispatcher
	tracerCleanup func(context.Context)
}

// New creates a relay Service from the given configuration.
//
// Initialization order: defaults, tracer, metrics, destination table,
// dispatcher, router. The returned service is ready for Run.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	var metrics *observability.RelayMetrics
	if s.config.EnableMetrics {
		metrics = observability.InitMetrics()
	}

	table := dispatch.NewTable(dispatch.TableConfig{
		DashboardWebhookURL: s.config.DashboardWebhookURL,
		GitHubDispatchRepo:  s.config.GitHubDispatchRepo,
		GitHubAPIBaseURL:    s.config.GitHubAPIBaseURL,
	})
	s.dispatcher = dispatch.NewDispatcher(table, s.config.Timeout, metrics)

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
	slog.Info("Starting relay", "addr", addr, "timeout", s.config.Timeout)
	return s.router.Run(addr)
}

// Router returns the configured Gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 3001
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = dispatch.DefaultTimeout
	}
	return cfg
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("relay-service"))

	router.POST("/webhook", handlers.HandleWebhook(s.dispatcher))
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
		resource.WithAttributes(semconv.ServiceNameKey.String("relay-service")))
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
