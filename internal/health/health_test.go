package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Bualoitech/learnliko/internal/health"
)

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()

	h := health.New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status=%d, want 200", rec.Code)
	}
}

func TestReadyz_AllProbesPass(t *testing.T) {
	t.Parallel()

	h := health.New(
		health.Probe{Name: "database", Check: func(context.Context) error { return nil }},
		health.Probe{Name: "providers", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Probes map[string]string `json:"probes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Probes["database"] != "ok" {
		t.Errorf("body=%+v, want all ok", body)
	}
}

func TestReadyz_FailingProbeIs503(t *testing.T) {
	t.Parallel()

	h := health.New(
		health.Probe{Name: "database", Check: func(context.Context) error { return errors.New("conn refused") }},
		health.Probe{Name: "providers", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Probes map[string]string `json:"probes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status=%q, want fail", body.Status)
	}
	if body.Probes["providers"] != "ok" {
		t.Errorf("healthy probe reported %q, want ok", body.Probes["providers"])
	}
}
