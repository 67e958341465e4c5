package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/maltedev/catawiki-seller-parser/internal/database"
	"github.com/maltedev/catawiki-seller-parser/internal/extractor"
	"github.com/maltedev/catawiki-seller-parser/internal/parser"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Extractor interface {
	Extract(ctx context.Context, document []byte) (*extractor.Extraction, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*database.StoredProfile, error)
	ListProfiles(ctx context.Context, limit int) ([]database.ProfileSummary, error)
}

// OutboxStats reports relay backlog for the health endpoint.
type OutboxStats interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

type Handlers struct {
	extractor    Extractor
	profiles     ProfileReader
	outbox       OutboxStats
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHandlers wires the handlers. profiles and outbox may be nil when
// storage is disabled.
func NewHandlers(ext Extractor, profiles ProfileReader, outbox OutboxStats, maxBodyBytes int64, logger *slog.Logger) *Handlers {
	return &Handlers{
		extractor:    ext,
		profiles:     profiles,
		outbox:       outbox,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With("component", "api"),
	}
}

// ExtractProfile parses the raw HTML request body and returns the record.
func (h *Handlers) ExtractProfile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.extractor.Extract(r.Context(), body)
	if err != nil {
		var parseErr *parser.ParseError
		if errors.As(err, &parseErr) {
			h.respondError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		h.logger.Error("failed to extract profile", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to extract profile")
		return
	}

	w.Header().Set("X-Source-Hash", result.SourceHash)
	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	if result.ProfileID != "" {
		w.Header().Set("X-Profile-ID", result.ProfileID)
	}

	h.respondJSON(w, http.StatusOK, result.Profile)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		h.respondError(w, http.StatusNotImplemented, "profile storage is not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "profileID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid profile ID")
		return
	}

	stored, err := h.profiles.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrProfileNotFound) {
			h.respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error("failed to get profile", "profile_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	h.respondJSON(w, http.StatusOK, stored)
}

func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		h.respondError(w, http.StatusNotImplemented, "profile storage is not configured")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	summaries, err := h.profiles.ListProfiles(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list profiles", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}

	h.respondJSON(w, http.StatusOK, summaries)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}
	status := http.StatusOK

	if h.outbox != nil {
		pendingCount, pendingErr := h.outbox.GetPendingCount(r.Context())
		deadLetterCount, deadErr := h.outbox.GetDeadLetterCount(r.Context())

		if err := errors.Join(pendingErr, deadErr); err != nil {
			h.logger.Error("failed to read outbox counts", "error", err)
			health["status"] = "degraded"
			health["message"] = "Outbox counts unavailable"
			h.respondJSON(w, http.StatusServiceUnavailable, health)
			return
		}

		health["outbox"] = map[string]interface{}{
			"pending":     pendingCount,
			"dead_letter": deadLetterCount,
		}

		if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
