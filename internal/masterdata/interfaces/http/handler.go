package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"playtrack/internal/auth"
	masterdata "playtrack/internal/masterdata/domain"
)

// Handler provides location masterdata APIs.
type Handler struct {
	repo     masterdata.LocationRepository
	tenantID string
}

// NewHandler constructs a handler.
func NewHandler(repo masterdata.LocationRepository, tenantID string) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("masterdata handler: nil repository")
	}
	return &Handler{repo: repo, tenantID: tenantID}, nil
}

// ServeHTTP routes location endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/locations" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/locations" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	locations, err := h.repo.ListByTenant(r.Context(), h.tenant(r))
	if err != nil {
		http.Error(w, "list locations error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"locations": locations})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	location := &masterdata.Location{
		ID:        uuid.NewString(),
		TenantID:  h.tenant(r),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), location); err != nil {
		http.Error(w, "create location error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(location)
}

func (h *Handler) tenant(r *http.Request) string {
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" {
		return tenantID
	}
	return h.tenantID
}
