package blockchain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"secure-voting/encryption"
	"secure-voting/metrics"
	"secure-voting/models"
)

// VoteStore is the subset of persistence the sync worker needs.
type VoteStore interface {
	FindVote(ctx context.Context, id string) (*models.Vote, error)
	ListUnsyncedVotes(ctx context.Context, limit int) ([]models.Vote, error)
	AttachLedgerReceipt(ctx context.Context, voteID, txHash string, blockIndex uint64, blockTime time.Time) (bool, error)
	CompleteStrandedVotingKeys(ctx context.Context) (int64, error)
}

// Appender records a vote payload in the ledger.
type Appender interface {
	AppendVote(ctx context.Context, payload models.VotePayload) (*Receipt, error)
}

// SyncRequest is a queued request to record one vote in the ledger.
type SyncRequest struct {
	VoteID   string
	ResultCh chan<- *SyncResult
}

// SyncResult contains the outcome of one sync attempt.
type SyncResult struct {
	VoteID       string   `json:"voteId"`
	Success      bool     `json:"success"`
	Skipped      bool     `json:"skipped"`
	Receipt      *Receipt `json:"receipt,omitempty"`
	ErrorMessage string   `json:"error,omitempty"`
}

// ResyncReport summarizes one Resync pass.
type ResyncReport struct {
	Attempted     int   `json:"attempted"`
	Synced        int   `json:"synced"`
	Skipped       int   `json:"skipped"`
	Failed        int   `json:"failed"`
	CompletedKeys int64 `json:"completedKeys"`
}

// SyncWorker is the single writer of the ledger. Votes are queued by the
// protocol after submission and recorded one at a time.
type SyncWorker struct {
	votes      VoteStore
	ledger     Appender
	metrics    *metrics.Collector
	logger     *zap.Logger
	queue      chan *SyncRequest
	shutdownCh chan struct{}
	wg         sync.WaitGroup

	// syncMu serializes the check-append-attach sequence between the
	// queue consumer and Resync.
	syncMu sync.Mutex
}

// NewSyncWorker creates a worker with a bounded queue. Requests that do not fit
// are dropped and picked up by the next Resync.
func NewSyncWorker(votes VoteStore, ledger Appender, queueSize int, collector *metrics.Collector, logger *zap.Logger) *SyncWorker {
	return &SyncWorker{
		votes:      votes,
		ledger:     ledger,
		metrics:    collector,
		logger:     logger.With(zap.String("component", "ledger_sync")),
		queue:      make(chan *SyncRequest, queueSize),
		shutdownCh: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *SyncWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop waits for the in-flight request. Requests still queued are left to Resync.
func (w *SyncWorker) Stop() {
	close(w.shutdownCh)
	w.wg.Wait()
}

// Enqueue queues a vote without waiting. A full queue drops the request.
func (w *SyncWorker) Enqueue(voteID string) {
	select {
	case w.queue <- &SyncRequest{VoteID: voteID}:
	default:
		w.metrics.Increment("ledger_sync_dropped", "")
		w.logger.Warn("Ledger sync queue is full, request dropped", zap.String("vote_id", voteID))
	}
}

// Submit queues a vote and returns a channel carrying its result.
func (w *SyncWorker) Submit(voteID string) <-chan *SyncResult {
	resultCh := make(chan *SyncResult, 1)
	select {
	case w.queue <- &SyncRequest{VoteID: voteID, ResultCh: resultCh}:
	default:
		resultCh <- &SyncResult{VoteID: voteID, ErrorMessage: "ledger sync queue is full"}
		close(resultCh)
	}
	return resultCh
}

func (w *SyncWorker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.shutdownCh:
			return
		case req := <-w.queue:
			result := w.Sync(context.Background(), req.VoteID)
			if req.ResultCh != nil {
				req.ResultCh <- result
				close(req.ResultCh)
			}
		}
	}
}

// Sync records one vote in the ledger unless it already carries a transaction hash.
func (w *SyncWorker) Sync(ctx context.Context, voteID string) *SyncResult {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	result := &SyncResult{VoteID: voteID}

	vote, err := w.votes.FindVote(ctx, voteID)
	if err != nil {
		result.ErrorMessage = err.Error()
		w.logger.Error("Failed to load vote for ledger sync", zap.String("vote_id", voteID), zap.Error(err))
		return result
	}
	if vote.Synced() {
		result.Success = true
		result.Skipped = true
		return result
	}

	receipt, err := w.record(ctx, vote)
	if err != nil {
		w.metrics.Increment("ledger_sync", "failed")
		result.ErrorMessage = err.Error()
		w.logger.Error("Ledger sync failed", zap.String("vote_id", voteID), zap.Error(err))
		return result
	}

	w.metrics.Increment("ledger_sync", "synced")
	result.Success = true
	result.Receipt = receipt
	return result
}

func (w *SyncWorker) record(ctx context.Context, vote *models.Vote) (*Receipt, error) {
	defer w.metrics.Track(metrics.OpLedgerAppend)()

	payload := models.VotePayload{
		VoteID:       vote.ID,
		ElectionID:   vote.ElectionID,
		CandidateID:  vote.CandidateID,
		VoterAddress: encryption.VoterAddress(vote.UserID, vote.ElectionID),
		Timestamp:    vote.CreatedAt.UnixMilli(),
	}

	receipt, err := w.ledger.AppendVote(ctx, payload)
	if err != nil {
		return nil, err
	}

	attached, err := w.votes.AttachLedgerReceipt(ctx, vote.ID, receipt.Hash, receipt.BlockIndex, receipt.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("block %d mined but receipt not stored: %w", receipt.BlockIndex, err)
	}
	if !attached {
		return nil, errors.New("vote was synced concurrently")
	}

	w.logger.Info("Vote recorded in ledger",
		zap.String("vote_id", vote.ID),
		zap.Uint64("block_index", receipt.BlockIndex),
		zap.String("hash", receipt.Hash))
	return receipt, nil
}

// Resync records every vote still missing a transaction hash, in batches,
// and completes voting keys stranded at voted. Running it twice is harmless.
func (w *SyncWorker) Resync(ctx context.Context, batchSize int) (*ResyncReport, error) {
	report := &ResyncReport{}
	if batchSize <= 0 {
		batchSize = 100
	}

	completed, err := w.votes.CompleteStrandedVotingKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to complete stranded keys: %w", err)
	}
	report.CompletedKeys = completed

	failed := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		limit := batchSize + len(failed)
		votes, err := w.votes.ListUnsyncedVotes(ctx, limit)
		if err != nil {
			return report, fmt.Errorf("failed to list unsynced votes: %w", err)
		}

		progressed := false
		for _, vote := range votes {
			if failed[vote.ID] {
				continue
			}
			report.Attempted++
			result := w.Sync(ctx, vote.ID)
			switch {
			case !result.Success:
				report.Failed++
				failed[vote.ID] = true
			case result.Skipped:
				report.Skipped++
			default:
				report.Synced++
				progressed = true
			}
		}

		if !progressed || len(votes) < limit {
			break
		}
	}

	w.logger.Info("Ledger resync finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("synced", report.Synced),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int64("completed_keys", report.CompletedKeys))
	return report, nil
}
