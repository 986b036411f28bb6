package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/scheduler"
	"github.com/wardenhq/warden/internal/trust"
)

type fakeCore struct {
	pending  []scheduler.Prediction
	blessErr error
	blessed  []string
}

func (c *fakeCore) ListPending() []scheduler.Prediction { return c.pending }

func (c *fakeCore) Bless(ctx context.Context, predictionID, actor string) (scheduler.Prediction, error) {
	if c.blessErr != nil {
		return scheduler.Prediction{}, c.blessErr
	}
	c.blessed = append(c.blessed, predictionID+"/"+actor)
	return scheduler.Prediction{ID: predictionID, Status: scheduler.StatusCompleted}, nil
}

func (c *fakeCore) DenialStats() drift.Stats {
	return drift.Stats{TotalDenials: 4, ConsecutiveDenials: 1}
}

func (c *fakeCore) IdentitySnapshot() trust.Identity {
	return trust.Identity{
		Scores:      map[trust.Category]float64{"security": 0.8},
		Sovereignty: 0.7,
		LoadedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler("", &fakeCore{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHealthRejectsPost(t *testing.T) {
	handler := NewHandler("", &fakeCore{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	handler := NewHandler("", &fakeCore{pending: []scheduler.Prediction{{ID: "p1"}}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	identity, ok := body["identity"].(map[string]any)
	if !ok {
		t.Fatalf("missing identity block: %v", body)
	}
	if identity["sovereignty"] != 0.7 {
		t.Fatalf("unexpected sovereignty: %v", identity["sovereignty"])
	}
	if body["pending"] != float64(1) {
		t.Fatalf("unexpected pending count: %v", body["pending"])
	}
}

func TestTokenAuth(t *testing.T) {
	handler := NewHandler("secret", &fakeCore{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}

	// Health never requires auth.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d", rec.Code)
	}
}

func TestPredictionsEndpoint(t *testing.T) {
	core := &fakeCore{pending: []scheduler.Prediction{
		{ID: "p1", Room: "telegram:1", ProposedAction: "deploy_service"},
		{ID: "p2", Room: "telegram:2", ProposedAction: "run_migration"},
	}}
	handler := NewHandler("", core)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predictions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	predictions, ok := body["predictions"].([]any)
	if !ok || len(predictions) != 2 {
		t.Fatalf("unexpected predictions: %v", body["predictions"])
	}
}

func TestBlessEndpoint(t *testing.T) {
	core := &fakeCore{}
	handler := NewHandler("", core)

	req := httptest.NewRequest(http.MethodPost, "/predictions/bless",
		strings.NewReader(`{"id":"p1","actor":"alex"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(core.blessed) != 1 || core.blessed[0] != "p1/alex" {
		t.Fatalf("unexpected bless calls: %v", core.blessed)
	}
}

func TestBlessDefaultsActor(t *testing.T) {
	core := &fakeCore{}
	handler := NewHandler("", core)

	req := httptest.NewRequest(http.MethodPost, "/predictions/bless", strings.NewReader(`{"id":"p1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(core.blessed) != 1 || core.blessed[0] != "p1/api" {
		t.Fatalf("expected default actor, got %v", core.blessed)
	}
}

func TestBlessValidation(t *testing.T) {
	handler := NewHandler("", &fakeCore{})

	req := httptest.NewRequest(http.MethodPost, "/predictions/bless", strings.NewReader(`{"id":"  "}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank id, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/predictions/bless", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestBlessNotFound(t *testing.T) {
	handler := NewHandler("", &fakeCore{blessErr: scheduler.ErrNotFound})

	req := httptest.NewRequest(http.MethodPost, "/predictions/bless", strings.NewReader(`{"id":"ghost"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	handler := NewHandler("", &fakeCore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if body := decodeBody(t, rec); body["request_id"] != "trace-me" {
		t.Fatalf("request id not echoed: %v", body)
	}
}
