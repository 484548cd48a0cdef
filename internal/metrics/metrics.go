package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonpoll_tokens_issued_total",
		Help: "Voting credentials issued across all polls",
	})
	VotesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonpoll_votes_accepted_total",
		Help: "Votes accepted into the ledger",
	})
	VotesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anonpoll_votes_rejected_total",
		Help: "Votes rejected, by reason",
	}, []string{"reason"})
	PollsResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anonpoll_polls_resolved_total",
		Help: "Polls moved to resolved with a final report",
	})
	SubmitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "anonpoll_vote_submit_duration_seconds",
		Help:    "Latency of the consume-and-insert transaction",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(TokensIssued, VotesAccepted, VotesRejected, PollsResolved, SubmitDuration)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
