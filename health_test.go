package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/mocks"
)

func init() {
	logger.Init()
}

type downStore struct {
	*dal.MemoryStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthy(t *testing.T) {
	p := &healthChecks{store: dal.NewMemoryStore(), analytics: mocks.NewAnalytics(), broker: "embedded"}

	rec := httptest.NewRecorder()
	p.health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Checks["database"]["status"] != "healthy" || body.Checks["clickhouse"]["status"] != "mock" {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = httptest.NewRecorder()
	p.readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}
}

func TestStoreDown(t *testing.T) {
	p := &healthChecks{store: downStore{dal.NewMemoryStore()}}

	rec := httptest.NewRecorder()
	p.health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	p.readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	p.liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness must not depend on the store, got %d", rec.Code)
	}
}
