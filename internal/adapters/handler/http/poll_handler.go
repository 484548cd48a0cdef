package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type PollHandler struct {
	registry ports.RegistryService
}

func NewPollHandler(registry ports.RegistryService) *PollHandler {
	return &PollHandler{registry: registry}
}

type createPollRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Type            string    `json:"type"`
	Anonymity       string    `json:"anonymity"`
	Visibility      string    `json:"visibility"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	QuorumThreshold int       `json:"quorum_threshold"`
	EligibleCount   int       `json:"eligible_count"`
	RatingMin       int       `json:"rating_min"`
	RatingMax       int       `json:"rating_max"`
	Options         []string  `json:"options"`
}

func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "missing administrator identity", http.StatusUnauthorized)
		return
	}

	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := ports.CreatePollInput{
		Title:           req.Title,
		Description:     req.Description,
		Type:            domain.PollType(req.Type),
		Anonymity:       domain.AnonymityLevel(req.Anonymity),
		Visibility:      domain.VisibilityPolicy(req.Visibility),
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		QuorumThreshold: req.QuorumThreshold,
		EligibleCount:   req.EligibleCount,
		RatingMin:       req.RatingMin,
		RatingMax:       req.RatingMax,
		Options:         req.Options,
	}

	poll, err := h.registry.Create(r.Context(), identity, input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPollSpec) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(poll); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	poll, err := h.registry.Get(r.Context(), pollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			http.Error(w, "poll not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(poll); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	polls, err := h.registry.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(polls); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (h *PollHandler) TransitionPoll(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "missing administrator identity", http.StatusUnauthorized)
		return
	}

	pollID, err := pollIDParam(r)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err = h.registry.Transition(r.Context(), identity, pollID, domain.PollState(req.Target))
	h.writeTransitionResult(w, err)
}

func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(r)
	if !ok {
		http.Error(w, "missing administrator identity", http.StatusUnauthorized)
		return
	}

	pollID, err := pollIDParam(r)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	err = h.registry.Close(r.Context(), identity, pollID)
	h.writeTransitionResult(w, err)
}

func (h *PollHandler) writeTransitionResult(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			http.Error(w, "poll not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pollIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
