package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/clickhouse"
	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/outbox"
)

// healthChecks backs /health, /healthz and /readyz
type healthChecks struct {
	store     dal.Store
	analytics clickhouse.Analytics
	queue     *outbox.Queue
	broker    string
}

type pinger interface {
	Ping(ctx context.Context) error
}

func check(ctx context.Context, p pinger) map[string]any {
	if err := p.Ping(ctx); err != nil {
		return map[string]any{"status": "unhealthy", "error": err.Error()}
	}
	return map[string]any{"status": "healthy"}
}

func writeHealth(w http.ResponseWriter, status int, body map[string]any) {
	body["timestamp"] = time.Now().Unix()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (p *healthChecks) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	checks["database"] = check(ctx, p.store)
	if checks["database"].(map[string]any)["status"] != "healthy" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	// analytics is best effort and never fails the report
	switch a := p.analytics.(type) {
	case nil:
		checks["clickhouse"] = map[string]any{"status": "not_configured"}
	case pinger:
		checks["clickhouse"] = check(ctx, a)
	default:
		checks["clickhouse"] = map[string]any{"status": "mock"}
	}

	if p.queue != nil {
		checks["outbox"] = p.queue.Stats()
	}
	if p.broker != "" {
		checks["nats"] = map[string]any{"status": "healthy", "url": p.broker}
	}

	writeHealth(w, httpStatus, map[string]any{"status": status, "checks": checks})
}

func (p *healthChecks) liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]any{"status": "alive"})
}

func (p *healthChecks) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := p.store.Ping(ctx); err != nil {
		writeHealth(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"reason": "database_unavailable",
		})
		return
	}
	writeHealth(w, http.StatusOK, map[string]any{"status": "ready"})
}
