package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"secure-voting/metrics"
	"secure-voting/models"
	"secure-voting/storage"
)

// TallyStore counts the relational votes of an election.
type TallyStore interface {
	FindElection(ctx context.Context, id uint) (*models.Election, error)
	ListCandidates(ctx context.Context, electionID uint) ([]models.Candidate, error)
	CountVotesByCandidate(ctx context.Context, electionID uint) (map[uint]int64, error)
	CountUnsyncedVotes(ctx context.Context, electionID uint) (int64, error)
}

// LedgerTally counts the ledger-recorded votes of an election.
type LedgerTally interface {
	CountVotes(ctx context.Context, electionID uint) (map[uint]int64, error)
}

// VoteCountingService produces election results from the store and the ledger.
type VoteCountingService struct {
	store   TallyStore
	ledger  LedgerTally
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	latest map[uint]*VotingResults
}

// CandidateResult is one row of the results table.
type CandidateResult struct {
	CandidateID uint   `json:"candidateId"`
	Name        string `json:"name"`
	Party       string `json:"party"`
	Votes       int64  `json:"votes"`
	LedgerVotes int64  `json:"ledgerVotes"`
}

// VotingResults is the tally of one election. Consistent is false when the
// ledger holds votes the relational store does not, or when the totals do
// not add up once pending votes are taken into account.
type VotingResults struct {
	ElectionID  uint              `json:"electionId"`
	Title       string            `json:"title"`
	Candidates  []CandidateResult `json:"candidates"`
	TotalVotes  int64             `json:"totalVotes"`
	LedgerVotes int64             `json:"ledgerVotes"`
	PendingSync int64             `json:"pendingSync"`
	Consistent  bool              `json:"consistent"`
	CountedAt   time.Time         `json:"countedAt"`
}

// NewVoteCountingService creates the counting service.
func NewVoteCountingService(store TallyStore, ledger LedgerTally, collector *metrics.Collector, logger *zap.Logger) *VoteCountingService {
	return &VoteCountingService{
		store:   store,
		ledger:  ledger,
		metrics: collector,
		logger:  logger.With(zap.String("service", "vote_counting")),
		now:     time.Now,
		latest:  make(map[uint]*VotingResults),
	}
}

// CountVotes tallies an election from the vote records and cross-checks the ledger.
func (vcs *VoteCountingService) CountVotes(ctx context.Context, electionID uint) (*VotingResults, error) {
	defer vcs.metrics.Track(metrics.OpCounting)()

	if err := validateID("electionId", electionID); err != nil {
		return nil, err
	}

	election, err := vcs.store.FindElection(ctx, electionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "election not found")
	}
	if err != nil {
		return nil, internalError("failed to load election", err)
	}

	candidates, err := vcs.store.ListCandidates(ctx, electionID)
	if err != nil {
		return nil, internalError("failed to load candidates", err)
	}
	counts, err := vcs.store.CountVotesByCandidate(ctx, electionID)
	if err != nil {
		return nil, internalError("failed to count votes", err)
	}
	pending, err := vcs.store.CountUnsyncedVotes(ctx, electionID)
	if err != nil {
		return nil, internalError("failed to count pending votes", err)
	}
	ledgerCounts, err := vcs.ledger.CountVotes(ctx, electionID)
	if err != nil {
		return nil, internalError("failed to count ledger votes", err)
	}

	results := &VotingResults{
		ElectionID:  election.ID,
		Title:       election.Title,
		Candidates:  make([]CandidateResult, 0, len(candidates)),
		PendingSync: pending,
		Consistent:  true,
		CountedAt:   vcs.now(),
	}

	known := make(map[uint]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
		result := CandidateResult{
			CandidateID: c.ID,
			Name:        c.Name,
			Party:       c.Party,
			Votes:       counts[c.ID],
			LedgerVotes: ledgerCounts[c.ID],
		}
		if result.LedgerVotes > result.Votes {
			results.Consistent = false
		}
		results.Candidates = append(results.Candidates, result)
	}

	for id, n := range counts {
		results.TotalVotes += n
		if !known[id] {
			results.Consistent = false
		}
	}
	for id, n := range ledgerCounts {
		results.LedgerVotes += n
		if !known[id] {
			results.Consistent = false
		}
	}
	if results.LedgerVotes+results.PendingSync != results.TotalVotes {
		results.Consistent = false
	}

	if !results.Consistent {
		vcs.logger.Warn("Ledger does not match recorded votes",
			zap.Uint("election_id", electionID),
			zap.Int64("total_votes", results.TotalVotes),
			zap.Int64("ledger_votes", results.LedgerVotes),
			zap.Int64("pending_sync", results.PendingSync))
	}

	vcs.mu.Lock()
	vcs.latest[electionID] = results
	vcs.mu.Unlock()

	return results, nil
}

// GetLatestResults returns the last tally computed for an election, if any.
func (vcs *VoteCountingService) GetLatestResults(electionID uint) (*VotingResults, bool) {
	vcs.mu.RLock()
	defer vcs.mu.RUnlock()

	results, ok := vcs.latest[electionID]
	return results, ok
}
