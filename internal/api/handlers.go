package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"guild_ledger/internal/identity"
	"guild_ledger/internal/ledger"
	"guild_ledger/internal/metrics"
	"guild_ledger/internal/processing"
	"guild_ledger/internal/retry"
	"guild_ledger/internal/templates"
)

const defaultActor = "api"

type Handler struct {
	service *processing.Service
	metrics *metrics.Metrics
}

func NewHandler(service *processing.Service, m *metrics.Metrics) *Handler {
	return &Handler{service: service, metrics: m}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LogEvent credits everyone in an event log. A failed section write still returns
// what was applied elsewhere.
func (h *Handler) LogEvent(w http.ResponseWriter, r *http.Request) {
	var req LogEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	outcome, err := h.service.LogEvent(r.Context(), actor(r, req.Actor), req.Text)
	if err != nil && len(outcome.Result.Applied) == 0 && len(outcome.Result.Failed) == 0 {
		writeError(w, statusFor(err), "Failed to log event", err)
		return
	}

	dto := toEventResultDTO(outcome)
	status := http.StatusOK
	if err != nil {
		dto.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, dto)
}

func (h *Handler) AddPoints(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, true)
}

func (h *Handler) RemovePoints(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, false)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, isAdd bool) {
	var req PointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.User) == "" {
		writeError(w, http.StatusBadRequest, "user is required", nil)
		return
	}
	header := req.Header
	if header == "" {
		header = ledger.HeaderEP
	}

	var (
		outcome processing.PointsOutcome
		err     error
	)
	if isAdd {
		outcome, err = h.service.AddPoints(r.Context(), actor(r, req.Actor), req.User, header, req.Amount)
	} else {
		outcome, err = h.service.RemovePoints(r.Context(), actor(r, req.Actor), req.User, header, req.Amount)
	}
	if err != nil {
		writeError(w, statusFor(err), "Failed to update points", err)
		return
	}

	status := http.StatusOK
	if !outcome.Applied {
		status = http.StatusNotFound
	}
	writeJSON(w, status, PointsResultDTO{
		User:    outcome.Username,
		Header:  outcome.Header,
		Amount:  outcome.Amount,
		Added:   outcome.IsAdd,
		Applied: outcome.Applied,
	})
}

func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	profile, found, err := h.service.Inspect(r.Context(), actor(r, ""), username)
	if err != nil {
		writeError(w, statusFor(err), "Failed to inspect user", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "User not found in Officer or Main", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	var req OnboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var (
		outcome processing.OnboardOutcome
		err     error
	)
	if req.Text != "" {
		outcome, err = h.service.Onboard(r.Context(), actor(r, req.Actor), req.Text)
	} else {
		if strings.TrimSpace(req.Username) == "" {
			writeError(w, http.StatusBadRequest, "username or text is required", nil)
			return
		}
		rank := req.Rank
		if rank == "" {
			rank = templates.DefaultRank
		}
		outcome, err = h.service.OnboardForm(r.Context(), actor(r, req.Actor), templates.OnboardingForm{
			Username: strings.TrimSpace(req.Username),
			Rank:     rank,
			Timezone: req.Timezone,
		})
	}
	if err != nil {
		writeError(w, statusFor(err), "Failed to onboard member", err)
		return
	}

	writeJSON(w, http.StatusCreated, OnboardResultDTO{
		Username: outcome.Form.Username,
		Rank:     outcome.Form.Rank,
		Timezone: outcome.Form.Timezone,
		Row:      outcome.Row,
	})
}

func actor(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return defaultActor
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, templates.ErrMissingFields),
		errors.Is(err, templates.ErrInvalidPoints),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, retry.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg(message)
	}
	writeJSON(w, status, resp)
}
