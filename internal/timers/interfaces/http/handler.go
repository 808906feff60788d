package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"playtrack/internal/audit"
	"playtrack/internal/auth"
	timerapp "playtrack/internal/timers/application"
	timers "playtrack/internal/timers/domain"
)

// Handler provides timer lifecycle and snapshot APIs.
type Handler struct {
	service         *timerapp.Service
	snapshots       *timerapp.SnapshotService
	locationChecker auth.LocationTenantChecker
	auditLogger     audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *timerapp.Service, snapshots *timerapp.SnapshotService, locationChecker auth.LocationTenantChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil || snapshots == nil {
		return nil, errors.New("timers handler: nil dependency")
	}
	return &Handler{
		service:         service,
		snapshots:       snapshots,
		locationChecker: locationChecker,
		auditLogger:     auditLogger,
	}, nil
}

// ServeHTTP routes timer endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/timers" && r.Method == http.MethodGet:
		h.handleSnapshot(w, r)
	case r.URL.Path == "/api/v1/timers" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case r.URL.Path == "/api/v1/timers/histogram" && r.Method == http.MethodGet:
		h.handleHistogram(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/timers/") && r.Method == http.MethodPost:
		h.handleAction(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleSnapshot serves GET /api/v1/timers. A matching If-None-Match skips
// the body entirely with 304.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		http.Error(w, "location_id required", http.StatusBadRequest)
		return
	}
	if !h.ensureLocation(w, r, locationID) {
		return
	}

	known := unquoteETag(r.Header.Get("If-None-Match"))
	snapshot, unchanged, err := h.snapshots.Get(r.Context(), locationID, known)
	if err != nil {
		http.Error(w, "snapshot error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", `"`+snapshot.Fingerprint+`"`)
	if unchanged {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input timerapp.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !h.ensureLocation(w, r, input.LocationID) {
		return
	}

	timer, err := h.service.Create(r.Context(), input)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(timer)
	h.logAudit(r, "timer.create", timer)
}

func (h *Handler) handleHistogram(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		http.Error(w, "location_id required", http.StatusBadRequest)
		return
	}
	if !h.ensureLocation(w, r, locationID) {
		return
	}

	counts, err := h.service.Histogram(r.Context(), locationID)
	if err != nil {
		http.Error(w, "histogram error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"location_id": locationID,
		"counts":      counts,
	})
}

// handleAction serves POST /api/v1/timers/{id}/{extend|end|cancel}.
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/timers/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var (
		timer *timers.Timer
		err   error
	)
	switch action {
	case "extend":
		var req struct {
			Minutes int `json:"minutes"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		timer, err = h.service.Extend(r.Context(), id, req.Minutes)
	case "end":
		timer, err = h.service.End(r.Context(), id)
	case "cancel":
		timer, err = h.service.Cancel(r.Context(), id)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, timers.ErrNotFound):
			http.Error(w, "timer not found", http.StatusNotFound)
		case errors.Is(err, timers.ErrNotExtendable):
			http.Error(w, "timer is not extendable", http.StatusConflict)
		case errors.Is(err, timers.ErrConflict):
			http.Error(w, "timer modified concurrently", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(timer)
	h.logAudit(r, "timer."+action, timer)
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

func (h *Handler) logAudit(r *http.Request, action string, timer *timers.Timer) {
	if h.auditLogger == nil || timer == nil {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     timer.TenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "timer",
		ResourceID:   timer.ID,
		LocationID:   timer.LocationID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func unquoteETag(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "W/")
	return strings.Trim(value, `"`)
}
