package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/govquorum/anonpoll/internal/metrics"
	"golang.org/x/time/rate"
)

func NewHandler(pollHandler *PollHandler, credentialHandler *CredentialHandler, voteHandler *VoteHandler, reportHandler *ReportHandler, auditHandler *AuditHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	limiter := newIdentityRateLimiter(rate.Limit(5), 10)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(EligibilityGate)

		r.Route("/polls", func(r chi.Router) {
			r.Post("/", pollHandler.CreatePoll)
			r.Get("/", pollHandler.ListPolls)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", pollHandler.GetPoll)
				r.Post("/transition", pollHandler.TransitionPoll)
				r.Post("/close", pollHandler.ClosePoll)

				r.With(limiter.RateLimit).Post("/credentials", credentialHandler.RequestToken)
				r.With(limiter.RateLimit).Post("/votes", voteHandler.SubmitVote)

				r.Get("/report", reportHandler.GetReport)
				r.Post("/report/regenerate", reportHandler.RegenerateReport)
				r.Get("/integrity", reportHandler.VerifyLedger)
			})
		})

		r.Get("/audit", auditHandler.QueryAudit)
	})

	return r
}
