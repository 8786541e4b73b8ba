package storage

import (
	"context"
	"time"

	"secure-voting/models"
)

// FindVote loads a vote by id.
func (s *Store) FindVote(ctx context.Context, id string) (*models.Vote, error) {
	var vote models.Vote
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&vote).Error; err != nil {
		return nil, translate(err)
	}
	return &vote, nil
}

// FindVoteByVotingKey loads the vote cast with a voting key.
func (s *Store) FindVoteByVotingKey(ctx context.Context, votingKeyID string) (*models.Vote, error) {
	var vote models.Vote
	if err := s.db.WithContext(ctx).Where("voting_key_id = ?", votingKeyID).First(&vote).Error; err != nil {
		return nil, translate(err)
	}
	return &vote, nil
}

// HasVoted reports whether the user already has a vote in the election.
func (s *Store) HasVoted(ctx context.Context, userID, electionID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND election_id = ?", userID, electionID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// ListUnsyncedVotes returns votes that have no ledger transaction hash yet, oldest first.
func (s *Store) ListUnsyncedVotes(ctx context.Context, limit int) ([]models.Vote, error) {
	var votes []models.Vote
	query := s.db.WithContext(ctx).
		Where("blockchain_tx_hash IS NULL OR blockchain_tx_hash = ''").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&votes).Error; err != nil {
		return nil, translate(err)
	}
	return votes, nil
}

// AttachLedgerReceipt records the block that holds a vote. A vote that
// already carries a transaction hash is left untouched.
func (s *Store) AttachLedgerReceipt(ctx context.Context, voteID, txHash string, blockIndex uint64, blockTime time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ? AND (blockchain_tx_hash IS NULL OR blockchain_tx_hash = '')", voteID).
		Updates(map[string]any{
			"blockchain_tx_hash": txHash,
			"block_index":        blockIndex,
			"block_timestamp":    blockTime,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CountVotesByCandidate tallies stored votes per candidate.
func (s *Store) CountVotesByCandidate(ctx context.Context, electionID uint) (map[uint]int64, error) {
	var rows []struct {
		CandidateID uint
		Total       int64
	}
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("candidate_id, COUNT(*) AS total").
		Where("election_id = ?", electionID).
		Group("candidate_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CandidateID] = row.Total
	}
	return counts, nil
}

// CountUnsyncedVotes counts votes in the election still waiting for a ledger receipt.
func (s *Store) CountUnsyncedVotes(ctx context.Context, electionID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("election_id = ? AND (blockchain_tx_hash IS NULL OR blockchain_tx_hash = '')", electionID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}
