package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	masterdata "playtrack/internal/masterdata/domain"
)

type memoryLocationRepo struct {
	byID map[string]masterdata.Location
}

func newMemoryLocationRepo() *memoryLocationRepo {
	return &memoryLocationRepo{byID: make(map[string]masterdata.Location)}
}

func (r *memoryLocationRepo) Get(_ context.Context, id string) (*masterdata.Location, error) {
	location, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &location, nil
}

func (r *memoryLocationRepo) ListByTenant(_ context.Context, tenantID string) ([]masterdata.Location, error) {
	var result []masterdata.Location
	for _, location := range r.byID {
		if location.TenantID == tenantID {
			result = append(result, location)
		}
	}
	return result, nil
}

func (r *memoryLocationRepo) Create(_ context.Context, location *masterdata.Location) error {
	r.byID[location.ID] = *location
	return nil
}

func TestCreateAndListLocations(t *testing.T) {
	repo := newMemoryLocationRepo()
	handler, err := NewHandler(repo, "tenant-a")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/locations", strings.NewReader(`{"name":"Main Floor"}`))
	createResp := httptest.NewRecorder()
	handler.ServeHTTP(createResp, createReq)
	if createResp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", createResp.Code)
	}
	var created masterdata.Location
	if err := json.Unmarshal(createResp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.TenantID != "tenant-a" || created.Name != "Main Floor" {
		t.Fatalf("unexpected location %+v", created)
	}
	if created.CreatedAt.After(time.Now().UTC().Add(time.Minute)) {
		t.Fatalf("implausible created_at %s", created.CreatedAt)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	listResp := httptest.NewRecorder()
	handler.ServeHTTP(listResp, listReq)
	if listResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.Code)
	}
	var body struct {
		Locations []masterdata.Location `json:"locations"`
	}
	if err := json.Unmarshal(listResp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Locations) != 1 || body.Locations[0].ID != created.ID {
		t.Fatalf("unexpected locations %+v", body.Locations)
	}
}

func TestCreateLocationRequiresName(t *testing.T) {
	handler, err := NewHandler(newMemoryLocationRepo(), "tenant-a")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/locations", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
