package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
	"github.com/govquorum/anonpoll/internal/metrics"
)

type aggregatorService struct {
	pollRepo   ports.PollRepository
	voteRepo   ports.VoteRepository
	credRepo   ports.CredentialRepository
	reportRepo ports.ReportRepository
	audit      ports.AuditService
}

func NewAggregatorService(pollRepo ports.PollRepository, voteRepo ports.VoteRepository, credRepo ports.CredentialRepository, reportRepo ports.ReportRepository, audit ports.AuditService) ports.AggregatorService {
	return &aggregatorService{
		pollRepo:   pollRepo,
		voteRepo:   voteRepo,
		credRepo:   credRepo,
		reportRepo: reportRepo,
		audit:      audit,
	}
}

// Aggregate produces the final report for a closed poll and moves it to
// resolved. Calling it on an already resolved poll returns the stored
// report unchanged.
func (s *aggregatorService) Aggregate(ctx context.Context, pollID uuid.UUID) (*domain.DecisionReport, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if poll.State == domain.StateResolved {
		return s.reportRepo.GetLatest(ctx, pollID)
	}
	if poll.State != domain.StateClosed {
		return nil, fmt.Errorf("%w: cannot aggregate a %s poll", domain.ErrInvalidStateTransition, poll.State)
	}

	report, err := s.compute(ctx, poll)
	if err != nil {
		return nil, err
	}

	// Winning the closed -> resolved update licenses the save: only one
	// caller persists a report row for the resolution.
	ok, err := s.pollRepo.UpdateState(ctx, pollID, domain.StateClosed, domain.StateResolved)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent Aggregate resolved it first; its report stands
		// but may still be in flight.
		log.Printf("poll %s resolved concurrently, keeping stored report", pollID)
		return s.waitForLatest(ctx, pollID)
	}

	if err := s.reportRepo.Save(ctx, report); err != nil {
		if _, rbErr := s.pollRepo.UpdateState(ctx, pollID, domain.StateResolved, domain.StateClosed); rbErr != nil {
			log.Printf("failed to reopen poll %s after report save error: %v", pollID, rbErr)
		}
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		Actor:  domain.SystemActor,
		Action: domain.ActionPollResolved,
		PollID: pollID,
	})
	metrics.PollsResolved.Inc()

	s.audit.Record(ctx, &domain.AuditEntry{
		Actor:  domain.SystemActor,
		Action: domain.ActionResultsComputed,
		PollID: pollID,
	})

	return report, nil
}

func (s *aggregatorService) waitForLatest(ctx context.Context, pollID uuid.UUID) (*domain.DecisionReport, error) {
	var report *domain.DecisionReport
	err := retry.Do(
		func() error {
			var getErr error
			report, getErr = s.reportRepo.GetLatest(ctx, pollID)
			return getErr
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(50*time.Millisecond),
		retry.RetryIf(func(err error) bool { return errors.Is(err, domain.ErrPollNotResolved) }),
		retry.LastErrorOnly(true),
	)
	return report, err
}

// Regenerate recomputes the report for an already resolved poll on an
// explicit admin action. The new report is appended, never overwritten,
// and the action is audited.
func (s *aggregatorService) Regenerate(ctx context.Context, actor string, pollID uuid.UUID) (*domain.DecisionReport, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.State != domain.StateResolved {
		return nil, domain.ErrPollNotResolved
	}

	report, err := s.compute(ctx, poll)
	if err != nil {
		return nil, err
	}
	if err := s.reportRepo.Save(ctx, report); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		Actor:  actor,
		Action: domain.ActionResultsComputed,
		PollID: pollID,
		Reason: "regenerated",
	})

	return report, nil
}

// GetReport serves the poll's report subject to its visibility policy. A
// live poll exposes an interim, unsaved tally; everything else waits for
// resolution.
func (s *aggregatorService) GetReport(ctx context.Context, pollID uuid.UUID) (*domain.DecisionReport, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if poll.State == domain.StateResolved {
		return s.reportRepo.GetLatest(ctx, pollID)
	}

	if poll.Visibility == domain.VisibilityLive && poll.EffectiveState(time.Now().UTC()) == domain.StateActive {
		return s.compute(ctx, poll)
	}

	return nil, domain.ErrPollNotResolved
}

func (s *aggregatorService) compute(ctx context.Context, poll *domain.Poll) (*domain.DecisionReport, error) {
	votes, err := s.voteRepo.GetByPoll(ctx, poll.ID)
	if err != nil {
		return nil, err
	}
	issued, err := s.credRepo.CountIssued(ctx, poll.ID)
	if err != nil {
		return nil, err
	}

	report := &domain.DecisionReport{
		ID:                uuid.New(),
		PollID:            poll.ID,
		PollType:          poll.Type,
		GeneratedAt:       time.Now().UTC(),
		VotesCast:         len(votes),
		CredentialsIssued: issued,
		QuorumThreshold:   poll.QuorumThreshold,
		QuorumMet:         len(votes) >= poll.QuorumThreshold,
	}
	if issued > 0 {
		report.Participation = float64(len(votes)) / float64(issued)
	}

	switch poll.Type {
	case domain.PollTypeSingleChoice, domain.PollTypeMultiChoice:
		s.tallyChoices(poll, votes, report)
	case domain.PollTypeRatingScale:
		s.tallyRatings(votes, report)
	case domain.PollTypeOpenResponse:
		s.collectComments(votes, report)
	case domain.PollTypeRanking:
		s.tallyRankings(poll, votes, report)
	case domain.PollTypeBudgetPercentage:
		s.tallyAllocations(poll, votes, report)
	}

	return report, nil
}

func (s *aggregatorService) tallyChoices(poll *domain.Poll, votes []*domain.Vote, report *domain.DecisionReport) {
	counts := make(map[uuid.UUID]int, len(poll.Options))
	for _, vote := range votes {
		if vote.Payload.OptionID != nil {
			counts[*vote.Payload.OptionID]++
		}
		for _, id := range vote.Payload.OptionIDs {
			counts[id]++
		}
	}

	maxCount := 0
	for _, opt := range poll.Options {
		count := counts[opt.ID]
		tally := domain.OptionTally{
			OptionID: opt.ID,
			Label:    opt.Label,
			Count:    count,
		}
		if len(votes) > 0 {
			tally.Share = float64(count) / float64(len(votes))
		}
		if count > maxCount {
			maxCount = count
		}
		report.Tallies = append(report.Tallies, tally)
	}

	// Consensus for choice polls is the share of voters on the modal
	// option. Descriptive only, never a gate.
	if len(votes) > 0 {
		report.Consensus = float64(maxCount) / float64(len(votes))
	}
}

func (s *aggregatorService) tallyRatings(votes []*domain.Vote, report *domain.DecisionReport) {
	ratings := make([]int, 0, len(votes))
	dist := make(map[int]int)
	sum := 0
	for _, vote := range votes {
		if vote.Payload.Rating == nil {
			continue
		}
		r := *vote.Payload.Rating
		ratings = append(ratings, r)
		dist[r]++
		sum += r
	}
	if len(ratings) == 0 {
		report.Rating = &domain.RatingStats{Distribution: dist}
		return
	}

	mean := float64(sum) / float64(len(ratings))

	sort.Ints(ratings)
	var median float64
	mid := len(ratings) / 2
	if len(ratings)%2 == 0 {
		median = float64(ratings[mid-1]+ratings[mid]) / 2
	} else {
		median = float64(ratings[mid])
	}

	variance := 0.0
	for _, r := range ratings {
		d := float64(r) - mean
		variance += d * d
	}
	variance /= float64(len(ratings))

	report.Rating = &domain.RatingStats{Mean: mean, Median: median, Distribution: dist}
	report.Consensus = 1 / (1 + variance)
}

func (s *aggregatorService) collectComments(votes []*domain.Vote, report *domain.DecisionReport) {
	// Stored without attribution; submission order is not preserved.
	for _, vote := range votes {
		if vote.Payload.Response != "" {
			report.Comments = append(report.Comments, vote.Payload.Response)
		}
	}
	sort.Strings(report.Comments)
}

func (s *aggregatorService) tallyRankings(poll *domain.Poll, votes []*domain.Vote, report *domain.DecisionReport) {
	firstPlace := make(map[uuid.UUID]int, len(poll.Options))
	positionSum := make(map[uuid.UUID]int, len(poll.Options))
	ballots := 0
	for _, vote := range votes {
		if len(vote.Payload.Ranking) == 0 {
			continue
		}
		ballots++
		firstPlace[vote.Payload.Ranking[0]]++
		for pos, id := range vote.Payload.Ranking {
			positionSum[id] += pos + 1
		}
	}

	maxFirst := 0
	for _, opt := range poll.Options {
		tally := domain.OptionTally{
			OptionID: opt.ID,
			Label:    opt.Label,
			Count:    firstPlace[opt.ID],
		}
		if ballots > 0 {
			tally.Share = float64(firstPlace[opt.ID]) / float64(ballots)
			tally.AvgPosition = float64(positionSum[opt.ID]) / float64(ballots)
		}
		if firstPlace[opt.ID] > maxFirst {
			maxFirst = firstPlace[opt.ID]
		}
		report.Tallies = append(report.Tallies, tally)
	}
	sort.Slice(report.Tallies, func(i, j int) bool {
		return report.Tallies[i].AvgPosition < report.Tallies[j].AvgPosition
	})

	if ballots > 0 {
		report.Consensus = float64(maxFirst) / float64(ballots)
	}
}

func (s *aggregatorService) tallyAllocations(poll *domain.Poll, votes []*domain.Vote, report *domain.DecisionReport) {
	sums := make(map[uuid.UUID]int, len(poll.Options))
	ballots := 0
	for _, vote := range votes {
		if len(vote.Payload.Allocations) == 0 {
			continue
		}
		ballots++
		for id, pct := range vote.Payload.Allocations {
			sums[id] += pct
		}
	}

	means := make(map[uuid.UUID]float64, len(poll.Options))
	for _, opt := range poll.Options {
		if ballots > 0 {
			means[opt.ID] = float64(sums[opt.ID]) / float64(ballots)
		}
		report.Tallies = append(report.Tallies, domain.OptionTally{
			OptionID:    opt.ID,
			Label:       opt.Label,
			Count:       ballots,
			AvgPosition: means[opt.ID],
		})
	}

	// Agreement is inverse spread of individual allocations around the
	// mean allocation, averaged over options.
	if ballots > 0 {
		totalVar := 0.0
		for _, opt := range poll.Options {
			variance := 0.0
			for _, vote := range votes {
				if len(vote.Payload.Allocations) == 0 {
					continue
				}
				d := float64(vote.Payload.Allocations[opt.ID]) - means[opt.ID]
				variance += d * d
			}
			totalVar += variance / float64(ballots)
		}
		avgVar := totalVar / float64(len(poll.Options))
		report.Consensus = 1 / (1 + avgVar/100)
	}
}
