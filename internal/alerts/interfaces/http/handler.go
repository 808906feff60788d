package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	alertapp "playtrack/internal/alerts/application"
	"playtrack/internal/audit"
	"playtrack/internal/auth"
)

// Handler provides alert recovery and acknowledgement APIs.
type Handler struct {
	service         *alertapp.Service
	locationChecker auth.LocationTenantChecker
	auditLogger     audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *alertapp.Service, locationChecker auth.LocationTenantChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	return &Handler{service: service, locationChecker: locationChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP routes alert endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alerts/pending" && r.Method == http.MethodGet:
		h.handlePending(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/alerts/") && strings.HasSuffix(r.URL.Path, "/acknowledge") && r.Method == http.MethodPost:
		h.handleAcknowledge(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		http.Error(w, "location_id required", http.StatusBadRequest)
		return
	}
	if !h.ensureLocation(w, r, locationID) {
		return
	}

	pending, err := h.service.ListPending(r.Context(), locationID)
	if err != nil {
		http.Error(w, "list pending error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"location_id": locationID,
		"alerts":      pending,
	})
}

// handleAcknowledge always answers 200: acknowledging an unknown or already
// handled alert is a successful no-op, so retries and viewer races are safe.
func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/"), "/acknowledge")
	id = strings.Trim(id, "/")
	if id == "" {
		http.Error(w, "alert id required", http.StatusBadRequest)
		return
	}

	alert, err := h.service.Acknowledge(r.Context(), id)
	if err != nil {
		http.Error(w, "acknowledge error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if alert == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"acknowledged": false})
		return
	}
	_ = json.NewEncoder(w).Encode(alert)
	h.logAudit(r, alert.TenantID, alert.ID, alert.LocationID)
}

func (h *Handler) ensureLocation(w http.ResponseWriter, r *http.Request, locationID string) bool {
	if h.locationChecker == nil {
		return true
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if err := h.locationChecker.EnsureLocationTenant(r.Context(), tenantID, locationID); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			http.Error(w, "location not found", http.StatusNotFound)
		case errors.Is(err, auth.ErrTenantMismatch):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.Error(w, "location check failed", http.StatusInternalServerError)
		}
		return false
	}
	return true
}

func (h *Handler) logAudit(r *http.Request, tenantID, alertID, locationID string) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "alert.acknowledge",
		ResourceType: "alert",
		ResourceID:   alertID,
		LocationID:   locationID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
