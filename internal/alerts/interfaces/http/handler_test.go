package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	alertapp "playtrack/internal/alerts/application"
	alerts "playtrack/internal/alerts/domain"
	alertmemory "playtrack/internal/alerts/infrastructure/memory"
)

func newTestHandler(t *testing.T) (*Handler, *alertmemory.AlertRepository) {
	t.Helper()
	repo := alertmemory.NewAlertRepository()
	service, err := alertapp.NewService(repo, "tenant-a")
	if err != nil {
		t.Fatalf("alert service: %v", err)
	}
	handler, err := NewHandler(service, nil, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, repo
}

func seedPending(t *testing.T, repo *alertmemory.AlertRepository, id string) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alert := &alerts.Alert{
		ID:               id,
		TenantID:         "tenant-a",
		LocationID:       "loc-1",
		TimerID:          "timer-" + id,
		ThresholdMinutes: 5,
		TimerEndAt:       now.Add(5 * time.Minute),
		TriggeredAt:      now,
		Status:           alerts.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if created, err := repo.Create(context.Background(), alert); err != nil || !created {
		t.Fatalf("seed alert: created=%v err=%v", created, err)
	}
}

func TestPendingEndpoint(t *testing.T) {
	handler, repo := newTestHandler(t)
	seedPending(t, repo, "alert-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/pending?location_id=loc-1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		LocationID string         `json:"location_id"`
		Alerts     []alerts.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].ID != "alert-1" {
		t.Fatalf("unexpected alerts %+v", body.Alerts)
	}
}

func TestPendingRequiresLocation(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/pending", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAcknowledgeEndpoint(t *testing.T) {
	handler, repo := newTestHandler(t)
	seedPending(t, repo, "alert-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/acknowledge", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var acked alerts.Alert
	if err := json.Unmarshal(resp.Body.Bytes(), &acked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if acked.Status != alerts.StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", acked.Status)
	}
}

func TestAcknowledgeUnknownIDStill200(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/no-such-alert/acknowledge", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Acknowledged {
		t.Fatal("unknown id must report acknowledged=false")
	}
}

func TestAcknowledgeIsRepeatable(t *testing.T) {
	handler, repo := newTestHandler(t)
	seedPending(t, repo, "alert-1")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/acknowledge", nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, resp.Code)
		}
	}
}
