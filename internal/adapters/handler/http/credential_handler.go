package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type CredentialHandler struct {
	issuer ports.IssuerService
}

func NewCredentialHandler(issuer ports.IssuerService) *CredentialHandler {
	return &CredentialHandler{issuer: issuer}
}

type credentialResponse struct {
	Token string `json:"token"`
}

// RequestToken hands the caller a single-use voting credential. The
// response body is the only place the token and the caller ever meet; it
// is not logged and not persisted alongside any identity.
func (h *CredentialHandler) RequestToken(w http.ResponseWriter, r *http.Request) {
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

	token, err := h.issuer.RequestToken(r.Context(), pollID, identity)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			http.Error(w, "poll not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, domain.ErrPollNotActive) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, domain.ErrCredentialAlreadyIssued) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(credentialResponse{Token: token}); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
