package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type ReportHandler struct {
	aggregator ports.AggregatorService
	verifier   ports.VerifierService
}

func NewReportHandler(aggregator ports.AggregatorService, verifier ports.VerifierService) *ReportHandler {
	return &ReportHandler{
		aggregator: aggregator,
		verifier:   verifier,
	}
}

func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	report, err := h.aggregator.GetReport(r.Context(), pollID)
	if err != nil {
		h.writeReportError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *ReportHandler) RegenerateReport(w http.ResponseWriter, r *http.Request) {
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

	report, err := h.aggregator.Regenerate(r.Context(), identity, pollID)
	if err != nil {
		h.writeReportError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *ReportHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	pollID, err := pollIDParam(r)
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	report, err := h.verifier.VerifyLedger(r.Context(), pollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			http.Error(w, "poll not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *ReportHandler) writeReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		http.Error(w, "poll not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrPollNotResolved):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidStateTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
