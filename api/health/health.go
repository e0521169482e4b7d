// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health serves the health of a VM over HTTP.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/log"
)

const defaultTimeout = 5 * time.Second

// Checker reports the health of a component.
type Checker interface {
	HealthCheck(context.Context) (interface{}, error)
}

type Result struct {
	Healthy   bool        `json:"healthy"`
	Details   interface{} `json:"details,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Duration  string      `json:"duration"`
}

type handler struct {
	log     log.Logger
	checker Checker
	metrics *healthMetrics
	now     func() time.Time
}

// NewHandler returns a handler that runs [checker] on every GET or HEAD
// request. Unhealthy results are served with 503.
func NewHandler(log log.Logger, checker Checker, registerer prometheus.Registerer) (http.Handler, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &handler{
		log:     log,
		checker: checker,
		metrics: m,
		now:     time.Now,
	}, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	result := h.check(ctx)
	status := http.StatusOK
	if !result.Healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.log.Debug("failed to write health response", log.Err(err))
	}
}

func (h *handler) check(ctx context.Context) Result {
	start := h.now()
	details, err := h.checker.HealthCheck(ctx)
	result := Result{
		Healthy:   err == nil,
		Details:   details,
		Timestamp: start,
		Duration:  h.now().Sub(start).String(),
	}

	h.metrics.checks.Inc()
	if err != nil {
		result.Error = err.Error()
		h.metrics.failingChecks.Set(1)
		h.log.Warn("health check failed", log.Err(err))
		return result
	}
	h.metrics.failingChecks.Set(0)
	return result
}
