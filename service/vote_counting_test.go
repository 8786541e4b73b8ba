package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"secure-voting/blockchain"
	"secure-voting/metrics"
	"secure-voting/models"
	"secure-voting/service"
	"secure-voting/storage"
)

type tallyFixture struct {
	store    *storage.Store
	ledger   *blockchain.Ledger
	worker   *blockchain.SyncWorker
	counting *service.VoteCountingService
	election models.Election
}

func newTallyFixture(t *testing.T) *tallyFixture {
	t.Helper()

	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { storage.Close(db) })

	f := &tallyFixture{store: storage.NewStore(db)}
	f.election = models.Election{
		Title:      "E1",
		StartDate:  t0.Add(-time.Hour),
		EndDate:    t0.Add(time.Hour),
		Candidates: []models.Candidate{{Name: "X"}, {Name: "Y"}},
	}
	if err := db.Create(&f.election).Error; err != nil {
		t.Fatalf("failed to create election: %v", err)
	}

	f.ledger, err = blockchain.NewLedgerWithClock(context.Background(), f.store, 1, func() time.Time { return t0 }, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	collector := metrics.NewCollector()
	f.worker = blockchain.NewSyncWorker(f.store, f.ledger, 8, collector, zap.NewNop())
	f.counting = service.NewVoteCountingService(f.store, f.ledger, collector, zap.NewNop())
	return f
}

func (f *tallyFixture) castVote(t *testing.T, n int, candidateID uint) string {
	t.Helper()

	vote := &models.Vote{
		ID:               fmt.Sprintf("vote-%d", n),
		UserID:           uint(100 + n),
		ElectionID:       f.election.ID,
		CandidateID:      candidateID,
		VotingKeyID:      fmt.Sprintf("key-%d", n),
		VerificationHash: strings.Repeat("e", 128),
		CreatedAt:        t0.Add(time.Duration(n) * time.Second),
	}
	if err := f.store.DB().Create(vote).Error; err != nil {
		t.Fatalf("failed to create vote: %v", err)
	}
	return vote.ID
}

func TestCountVotes(t *testing.T) {
	f := newTallyFixture(t)
	ctx := context.Background()
	x, y := f.election.Candidates[0].ID, f.election.Candidates[1].ID

	f.castVote(t, 1, x)
	f.castVote(t, 2, x)
	f.castVote(t, 3, y)

	results, err := f.counting.CountVotes(ctx, f.election.ID)
	if err != nil {
		t.Fatalf("count votes failed: %v", err)
	}
	if results.TotalVotes != 3 || results.LedgerVotes != 0 || results.PendingSync != 3 || !results.Consistent {
		t.Fatalf("unexpected results before sync %+v", results)
	}
	if results.Candidates[0].Votes != 2 || results.Candidates[1].Votes != 1 {
		t.Fatalf("unexpected candidate tallies %+v", results.Candidates)
	}

	if _, err := f.worker.Resync(ctx, 10); err != nil {
		t.Fatalf("resync failed: %v", err)
	}

	results, err = f.counting.CountVotes(ctx, f.election.ID)
	if err != nil {
		t.Fatalf("count votes failed: %v", err)
	}
	if results.LedgerVotes != 3 || results.PendingSync != 0 || !results.Consistent {
		t.Fatalf("unexpected results after sync %+v", results)
	}
	if results.Candidates[0].LedgerVotes != 2 || results.Candidates[1].LedgerVotes != 1 {
		t.Fatalf("unexpected ledger tallies %+v", results.Candidates)
	}

	latest, ok := f.counting.GetLatestResults(f.election.ID)
	if !ok || latest != results {
		t.Fatalf("expected the last tally to be cached")
	}
}

func TestCountVotesDetectsLedgerMismatch(t *testing.T) {
	f := newTallyFixture(t)
	ctx := context.Background()

	id := f.castVote(t, 1, f.election.Candidates[0].ID)
	if result := f.worker.Sync(ctx, id); !result.Success {
		t.Fatalf("sync failed: %+v", result)
	}

	if err := f.store.DB().Where("id = ?", id).Delete(&models.Vote{}).Error; err != nil {
		t.Fatalf("failed to delete vote: %v", err)
	}

	results, err := f.counting.CountVotes(ctx, f.election.ID)
	if err != nil {
		t.Fatalf("count votes failed: %v", err)
	}
	if results.Consistent {
		t.Fatalf("a ledger vote without a record must be reported, got %+v", results)
	}
}

func TestCountVotesUnknownElection(t *testing.T) {
	f := newTallyFixture(t)

	_, err := f.counting.CountVotes(context.Background(), 999)
	expectKind(t, err, service.KindNotFound)

	_, err = f.counting.CountVotes(context.Background(), 0)
	expectKind(t, err, service.KindValidation)
}
