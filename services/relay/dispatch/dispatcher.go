// Copyright (C) 2025 MetaMorph AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/metamorphhq/metamorph/pkg/httpstatus"
	"github.com/metamorphhq/metamorph/services/relay/datatypes"
	"github.com/metamorphhq/metamorph/services/relay/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultTimeout bounds each outbound call. Callers that need a different
// budget set Config.Timeout on the relay service.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a destination response body is surfaced in
// the result envelope.
const maxBodyBytes = 64 * 1024

var dispatchTracer = otel.Tracer("metamorph.relay.dispatch")

// Dispatcher resolves relay requests and performs the single outbound POST.
//
// # Description
//
// Dispatch is at-most-once: one resolved destination, one POST, no retries.
// The outbound call is bounded by the configured timeout; when the timeout
// fires the in-flight request is cancelled through its context, so the
// underlying connection is released rather than left awaiting a response.
//
// # Thread Safety
//
// Dispatcher is safe for concurrent use; it holds no per-request state and
// http.Client is concurrency-safe.
type Dispatcher struct {
	table   *Table
	client  *http.Client
	timeout time.Duration
	metrics *observability.RelayMetrics
}

// NewDispatcher creates a Dispatcher over the given table.
//
// A non-positive timeout falls back to DefaultTimeout. metrics may be nil
// (e.g. in tests that don't assert on instrumentation).
func NewDispatcher(table *Table, timeout time.Duration, metrics *observability.RelayMetrics) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		table: table,
		// Per-request deadlines come from the context so cancellation
		// aborts the in-flight call; the client itself is uncapped.
		client:  &http.Client{},
		timeout: timeout,
		metrics: metrics,
	}
}

// Dispatch resolves the request and performs exactly one outbound POST.
//
// # Description
//
// A non-nil error means the request never left the relay (unresolvable
// type, or an unmarshalable payload) and should be reported as a client
// error with no result envelope. Once the call is attempted, every outcome
// is expressed in the RelayResult instead:
//
//   - timeout: Success=false, Status=httpstatus.StatusTimeout
//   - transport failure: Success=false, Status=httpstatus.StatusNetworkError
//   - destination responded: Success = status < 400, raw body attached
//
// Transport errors never escape as Go errors; callers branch on the result.
//
// # Inputs
//
//   - ctx: caller context; cancelling it aborts the outbound call.
//   - req: the forwarding instruction.
//
// # Outputs
//
//   - datatypes.RelayResult: normalized outcome of the attempted call.
//   - error: resolution failure; wraps ErrNoTarget or ErrUnknownType.
func (d *Dispatcher) Dispatch(ctx context.Context, req datatypes.RelayRequest) (datatypes.RelayResult, error) {
	dest, err := d.table.Resolve(req)
	if err != nil {
		slog.Warn("relay request rejected", "error", err)
		d.count("unresolved", httpstatus.KindValidation.Tag())
		return datatypes.RelayResult{}, err
	}

	ctx, span := dispatchTracer.Start(ctx, "relay.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("relay.destination", dest.Name))

	start := time.Now()
	if d.metrics != nil {
		d.metrics.InflightDispatches.Inc()
		defer d.metrics.InflightDispatches.Dec()
	}

	result := d.post(ctx, dest, req)

	if d.metrics != nil {
		d.metrics.DispatchDurationSeconds.WithLabelValues(dest.Name).
			Observe(time.Since(start).Seconds())
	}
	d.count(dest.Name, result.Kind)
	span.SetAttributes(attribute.Int("relay.status", result.Status))

	slog.Info("relay dispatched",
		"destination", dest.Name,
		"status", result.Status,
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// post performs the single outbound call and normalizes its outcome.
func (d *Dispatcher) post(ctx context.Context, dest Destination, req datatypes.RelayRequest) datatypes.RelayResult {
	payload := any(req.Payload)
	if dest.BuildPayload != nil {
		payload = dest.BuildPayload(req)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return datatypes.RelayResult{
			Success: false,
			Status:  http.StatusBadRequest,
			Kind:    httpstatus.KindValidation.Tag(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return datatypes.RelayResult{
			Success: false,
			Status:  http.StatusBadRequest,
			Kind:    httpstatus.KindValidation.Tag(),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if dest.Headers != nil {
		for key, value := range dest.Headers(req) {
			httpReq.Header.Set(key, value)
		}
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			slog.Warn("relay dispatch timed out", "destination", dest.Name, "timeout", d.timeout)
			return datatypes.RelayResult{
				Success: false,
				Status:  httpstatus.StatusTimeout,
				Kind:    httpstatus.KindTimeout.Tag(),
			}
		}
		slog.Warn("relay dispatch transport failure", "destination", dest.Name)
		return datatypes.RelayResult{
			Success: false,
			Status:  httpstatus.StatusNetworkError,
			Kind:    httpstatus.KindNetwork.Tag(),
		}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	kind := httpstatus.Classify(resp.StatusCode, resp.Header)

	result := datatypes.RelayResult{
		Success: resp.StatusCode < http.StatusBadRequest,
		Status:  resp.StatusCode,
		Body:    string(raw),
		Kind:    kind.Tag(),
	}
	if kind == httpstatus.KindRateLimit {
		if reset, ok := httpstatus.RateLimitReset(resp.Header); ok {
			result.RateLimitReset = reset.UTC().Format(time.RFC1123)
		}
	}
	return result
}

func (d *Dispatcher) count(destination, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RequestsTotal.WithLabelValues(destination, outcome).Inc()
}
