package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"secure-voting/models"
)

const genesisData = "genesis"

// BlockStore persists ledger blocks.
type BlockStore interface {
	LoadBlocks(ctx context.Context) ([]*models.Block, error)
	SaveBlock(ctx context.Context, block *models.Block) error
}

// Receipt describes the block that recorded a vote.
type Receipt struct {
	BlockIndex   uint64    `json:"blockIndex"`
	Hash         string    `json:"hash"`
	PreviousHash string    `json:"previousHash"`
	Timestamp    time.Time `json:"timestamp"`
}

// Statistics describes the chain for the stats endpoint.
type Statistics struct {
	ChainLength int    `json:"chainLength"`
	TotalVotes  int    `json:"totalVotes"`
	IsValid     bool   `json:"isValid"`
	Difficulty  uint8  `json:"difficulty"`
	LastHash    string `json:"lastHash"`
}

// Ledger is the hash-chained, append-only vote log. All appends are
// serialized; the chain is mirrored in memory and persisted block by block.
type Ledger struct {
	mu         sync.RWMutex
	store      BlockStore
	blocks     []*models.Block
	byVote     map[string]int // voteID -> position in blocks
	difficulty uint8
	now        func() time.Time
	logger     *zap.Logger
}

// NewLedger loads the persisted chain, mining and saving a genesis block
// when the store is empty.
func NewLedger(ctx context.Context, store BlockStore, difficulty uint8, logger *zap.Logger) (*Ledger, error) {
	return NewLedgerWithClock(ctx, store, difficulty, time.Now, logger)
}

// NewLedgerWithClock is NewLedger with an injectable clock for block timestamps.
func NewLedgerWithClock(ctx context.Context, store BlockStore, difficulty uint8, now func() time.Time, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{
		store:      store,
		difficulty: difficulty,
		now:        now,
		logger:     logger.With(zap.String("component", "ledger")),
	}

	blocks, err := store.LoadBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	if len(blocks) == 0 {
		genesis := models.NewBlock(0, now().UnixMilli(), genesisData, models.GenesisPreviousHash, difficulty)
		if err := store.SaveBlock(ctx, genesis); err != nil {
			return nil, fmt.Errorf("failed to save genesis block: %w", err)
		}
		l.logger.Info("Created genesis block", zap.String("hash", genesis.Hash))
		blocks = []*models.Block{genesis}
	} else if !models.ValidateChain(blocks) {
		l.logger.Warn("Persisted ledger failed validation", zap.Int("blocks", len(blocks)))
	}

	l.setBlocks(blocks)
	l.logger.Info("Ledger loaded",
		zap.Int("chain_length", len(blocks)),
		zap.Uint8("difficulty", difficulty))
	return l, nil
}

// AppendVote mines a block holding the payload on top of the current tail
// and persists it before it becomes part of the in-memory chain. A vote
// already in the chain is not appended again; its existing receipt is returned.
func (l *Ledger) AppendVote(ctx context.Context, payload models.VotePayload) (*Receipt, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vote payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if pos, ok := l.byVote[payload.VoteID]; ok {
		existing := l.blocks[pos]
		l.logger.Info("Vote already in ledger",
			zap.String("vote_id", payload.VoteID),
			zap.Uint64("index", existing.Index))
		return receiptFor(existing), nil
	}

	tail := l.blocks[len(l.blocks)-1]
	timestamp := l.now().UnixMilli()
	if timestamp < tail.Timestamp {
		timestamp = tail.Timestamp
	}

	block := models.NewBlock(tail.Index+1, timestamp, string(data), tail.Hash, l.difficulty)
	if err := l.store.SaveBlock(ctx, block); err != nil {
		// Another writer may have extended the chain; pick up its blocks.
		if reloadErr := l.reload(ctx); reloadErr != nil {
			l.logger.Error("Failed to reload ledger", zap.Error(reloadErr))
		}
		return nil, fmt.Errorf("failed to save block %d: %w", block.Index, err)
	}
	l.blocks = append(l.blocks, block)
	l.byVote[payload.VoteID] = len(l.blocks) - 1

	l.logger.Debug("Appended block",
		zap.Uint64("index", block.Index),
		zap.String("hash", block.Hash),
		zap.Uint64("nonce", block.Nonce))

	return receiptFor(block), nil
}

// FindVote returns the receipt of the block recording voteID, if any.
func (l *Ledger) FindVote(voteID string) (*Receipt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.byVote[voteID]
	if !ok {
		return nil, false
	}
	return receiptFor(l.blocks[pos]), true
}

func receiptFor(block *models.Block) *Receipt {
	return &Receipt{
		BlockIndex:   block.Index,
		Hash:         block.Hash,
		PreviousHash: block.PreviousHash,
		Timestamp:    time.UnixMilli(block.Timestamp).UTC(),
	}
}

// setBlocks replaces the in-memory chain and rebuilds the vote index.
func (l *Ledger) setBlocks(blocks []*models.Block) {
	byVote := make(map[string]int, len(blocks))
	for i, block := range blocks {
		if block.Index == 0 {
			continue
		}
		var payload models.VotePayload
		if err := json.Unmarshal([]byte(block.Data), &payload); err != nil || payload.VoteID == "" {
			continue
		}
		if _, dup := byVote[payload.VoteID]; dup {
			l.logger.Warn("Vote recorded in more than one block",
				zap.String("vote_id", payload.VoteID),
				zap.Uint64("index", block.Index))
			continue
		}
		byVote[payload.VoteID] = i
	}
	l.blocks = blocks
	l.byVote = byVote
}

func (l *Ledger) reload(ctx context.Context) error {
	blocks, err := l.store.LoadBlocks(ctx)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return errors.New("ledger is empty")
	}
	l.setBlocks(blocks)
	return nil
}

// VerifyChainIntegrity re-reads every persisted block and recomputes hashes and linkage.
func (l *Ledger) VerifyChainIntegrity(ctx context.Context) (bool, error) {
	blocks, err := l.store.LoadBlocks(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load ledger: %w", err)
	}
	if len(blocks) == 0 {
		return false, nil
	}
	return models.ValidateChain(blocks), nil
}

// Statistics reports chain length, difficulty and integrity.
func (l *Ledger) Statistics(ctx context.Context) (*Statistics, error) {
	valid, err := l.VerifyChainIntegrity(ctx)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return &Statistics{
		ChainLength: len(l.blocks),
		TotalVotes:  len(l.blocks) - 1,
		IsValid:     valid,
		Difficulty:  l.difficulty,
		LastHash:    l.blocks[len(l.blocks)-1].Hash,
	}, nil
}

// Blocks returns a copy of the in-memory chain.
func (l *Ledger) Blocks() []models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	blocks := make([]models.Block, len(l.blocks))
	for i, b := range l.blocks {
		blocks[i] = *b
	}
	return blocks
}

// CountVotes tallies the ledger-recorded votes of one election per candidate.
func (l *Ledger) CountVotes(ctx context.Context, electionID uint) (map[uint]int64, error) {
	blocks, err := l.store.LoadBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	counts := make(map[uint]int64)
	for _, block := range blocks {
		if block.Index == 0 {
			continue
		}
		var payload models.VotePayload
		if err := json.Unmarshal([]byte(block.Data), &payload); err != nil {
			l.logger.Warn("Skipping undecodable block", zap.Uint64("index", block.Index), zap.Error(err))
			continue
		}
		if payload.ElectionID == electionID {
			counts[payload.CandidateID]++
		}
	}
	return counts, nil
}
