package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error {
	return s.err
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-AtlasPay-Env"); env != "test" {
		t.Fatalf("unexpected env header %q", env)
	}
}

func TestHealthReadyAllChecksPass(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{}).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != "ready" {
		t.Fatalf("unexpected status %q", envelope.Data.Status)
	}
	if envelope.Data.Checks["database"] != "ok" || envelope.Data.Checks["redis"] != "ok" {
		t.Fatalf("unexpected checks %v", envelope.Data.Checks)
	}
}

func TestHealthReadyDegradedWhenDatabaseDown(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{err: errors.New("connection refused")}, stubPinger{}).ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != "degraded" {
		t.Fatalf("unexpected status %q", envelope.Data.Status)
	}
	if envelope.Data.Checks["redis"] != "ok" {
		t.Fatalf("redis check should still pass, got %v", envelope.Data.Checks)
	}
}
