// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all HTTP handlers for the signup API.
type Handler struct {
	events  *service.EventService
	signups *service.SignupService
	admin   *service.AdminService
	store   Pinger
	now     func() time.Time
}

// New constructs a Handler.
func New(events *service.EventService, signups *service.SignupService, admin *service.AdminService, store Pinger) *Handler {
	return &Handler{
		events:  events,
		signups: signups,
		admin:   admin,
		store:   store,
		now:     time.Now,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	return dec.Decode(dst)
}

func writeBadBody(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: "invalid request body: " + err.Error(),
	})
}

type errorKind struct {
	target    error
	status    int
	code      string
	retryable bool
}

var errorKinds = []errorKind{
	{model.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", false},
	{model.ErrNotFound, http.StatusNotFound, "NOT_FOUND", false},
	{model.ErrEventClosed, http.StatusConflict, "EVENT_CLOSED", false},
	{model.ErrNoCapacityConfigured, http.StatusConflict, "NO_CAPACITY_CONFIGURED", false},
	{model.ErrEventFull, http.StatusConflict, "EVENT_FULL", false},
	{model.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION", false},
	{model.ErrConflict, http.StatusConflict, "CONFLICT", true},
	{model.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE", true},
}

// writeError maps a service error onto the JSON error envelope. Anything that
// is not a known domain error is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.target) {
			continue
		}
		msg := k.target.Error()
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			msg = ve.Error()
		}
		if k.retryable {
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, k.status, model.ErrorResponse{Code: k.code, Message: msg, Retryable: k.retryable})
		return
	}

	slog.Error("unhandled error",
		slog.String("request_id", chimiddleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

// ─── Public handlers ──────────────────────────────────────────────────────────

// ListOpenEvents handles GET /events
// Returns open events split into those running now and upcoming ones.
func (h *Handler) ListOpenEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListOpen(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// SubmitSignup handles POST /events/{id}/signups
// Takes a place on the event and leaves a pending request for review.
func (h *Handler) SubmitSignup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.signups.SubmitSignup(r.Context(), chi.URLParam(r, "id"), req.Username, req.Contact)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ─── Admin handlers ───────────────────────────────────────────────────────────

// ListEvents handles GET /admin/events
// Returns every event, open or not, newest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// CreateEvent handles POST /admin/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type importRequest struct {
	Documents []map[string]any `json:"documents"`
}

// ImportEvents handles POST /admin/events/import
// Loads events exported from the previous document database.
func (h *Handler) ImportEvents(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, r, model.NewValidationError("documents", "must not be empty"))
		return
	}

	imported, err := h.events.ImportLegacy(r.Context(), req.Documents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, imported)
}

// UpdateEvent handles PATCH /admin/events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	if req.IsOpen == nil {
		writeError(w, r, model.NewValidationError("is_open", "is required"))
		return
	}

	event, err := h.events.SetOpen(r.Context(), chi.URLParam(r, "id"), *req.IsOpen)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ListSignups handles GET /admin/events/{id}/signups
func (h *Handler) ListSignups(w http.ResponseWriter, r *http.Request) {
	signups, err := h.admin.ListSignups(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if signups == nil {
		signups = []model.Signup{}
	}
	writeJSON(w, http.StatusOK, signups)
}

// ApproveSignup handles POST /admin/events/{id}/signups/{signupID}/approve
func (h *Handler) ApproveSignup(w http.ResponseWriter, r *http.Request) {
	signup, err := h.admin.Approve(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "signupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signup)
}

// RejectSignup handles POST /admin/events/{id}/signups/{signupID}/reject
func (h *Handler) RejectSignup(w http.ResponseWriter, r *http.Request) {
	signup, err := h.admin.Reject(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "signupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signup)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
