package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type VoteHandler struct {
	ledger ports.LedgerService
}

func NewVoteHandler(ledger ports.LedgerService) *VoteHandler {
	return &VoteHandler{ledger: ledger}
}

type submitVoteRequest struct {
	Token   string             `json:"token"`
	Payload domain.VotePayload `json:"payload"`
}

type submitVoteResponse struct {
	VoteID string `json:"vote_id"`
}

// SubmitVote authenticates by bearer token only. The gate middleware has
// already verified the caller is an eligible administrator, but their
// identity is deliberately not forwarded to the ledger.
func (h *VoteHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	var req submitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	voteID, err := h.ledger.SubmitVote(r.Context(), req.Token, pollID, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPollNotFound):
			http.Error(w, "poll not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrPollNotActive):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrTokenAlreadyConsumed):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrTokenNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidVotePayload):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(submitVoteResponse{VoteID: voteID.String()}); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
