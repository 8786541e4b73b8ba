package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"secure-voting/models"
)

// FindVotingKey returns the key issued to a user for an election.
func (s *Store) FindVotingKey(ctx context.Context, userID, electionID uint) (*models.VotingKey, error) {
	var key models.VotingKey
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND election_id = ?", userID, electionID).
		First(&key).Error
	if err != nil {
		return nil, translate(err)
	}
	return &key, nil
}

// FindVotingKeyByPrimaryKey looks up a key by its primary key value within an election.
func (s *Store) FindVotingKeyByPrimaryKey(ctx context.Context, primaryKey string, electionID uint) (*models.VotingKey, error) {
	var key models.VotingKey
	err := s.db.WithContext(ctx).
		Where("primary_key = ? AND election_id = ?", primaryKey, electionID).
		First(&key).Error
	if err != nil {
		return nil, translate(err)
	}
	return &key, nil
}

// FindVotingKeyByConfirmationKey looks up a key by its confirmation key within an election.
func (s *Store) FindVotingKeyByConfirmationKey(ctx context.Context, confirmationKey string, electionID uint) (*models.VotingKey, error) {
	var key models.VotingKey
	err := s.db.WithContext(ctx).
		Where("confirmation_key = ? AND election_id = ?", confirmationKey, electionID).
		First(&key).Error
	if err != nil {
		return nil, translate(err)
	}
	return &key, nil
}

// CreateVotingKey inserts a new key. A second key for the same user and election returns ErrDuplicate.
func (s *Store) CreateVotingKey(ctx context.Context, key *models.VotingKey) error {
	return translate(s.db.WithContext(ctx).Create(key).Error)
}

// ReissuePrimaryKey replaces the primary key of a record whose previous key
// can no longer be used. The update only applies while the record still
// carries oldPrimaryKey, so two concurrent reissues cannot both win.
func (s *Store) ReissuePrimaryKey(ctx context.Context, id, oldPrimaryKey, newPrimaryKey string, expiry, now time.Time, ipAddress, userAgent string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.VotingKey{}).
		Where("id = ? AND primary_key = ? AND status IN ?", id, oldPrimaryKey,
			[]models.KeyStatus{models.KeyStatusGenerated, models.KeyStatusConfirmed}).
		Updates(map[string]any{
			"primary_key":             newPrimaryKey,
			"status":                  models.KeyStatusGenerated,
			"primary_key_expiry":      expiry,
			"key_generated_at":        now,
			"confirmation_key":        nil,
			"confirmation_key_expiry": nil,
			"key_confirmed_at":        nil,
			"ip_address":              ipAddress,
			"user_agent":              userAgent,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ConfirmVotingKey moves a record from generated to confirmed.
func (s *Store) ConfirmVotingKey(ctx context.Context, id, confirmationKey string, expiry, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.VotingKey{}).
		Where("id = ? AND status = ?", id, models.KeyStatusGenerated).
		Updates(map[string]any{
			"status":                  models.KeyStatusConfirmed,
			"confirmation_key":        confirmationKey,
			"confirmation_key_expiry": expiry,
			"key_confirmed_at":        now,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RecordVote claims a confirmed record and creates its vote in one
// transaction. It returns false without writing anything when another
// submission already claimed the record.
func (s *Store) RecordVote(ctx context.Context, keyID string, vote *models.Vote, now time.Time) (bool, error) {
	claimed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.VotingKey{}).
			Where("id = ? AND status = ?", keyID, models.KeyStatusConfirmed).
			Updates(map[string]any{
				"status":            models.KeyStatusVoted,
				"verification_hash": vote.VerificationHash,
				"vote_submitted_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		if err := tx.Create(vote).Error; err != nil {
			return fmt.Errorf("failed to create vote: %w", err)
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, translate(err)
	}
	return claimed, nil
}

// CompleteVotingKey moves a record from voted to completed.
func (s *Store) CompleteVotingKey(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.VotingKey{}).
		Where("id = ? AND status = ?", id, models.KeyStatusVoted).
		Update("status", models.KeyStatusCompleted)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompleteStrandedVotingKeys completes records left at voted whose vote exists.
func (s *Store) CompleteStrandedVotingKeys(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.VotingKey{}).
		Where("status = ? AND id IN (?)", models.KeyStatusVoted,
			s.db.Model(&models.Vote{}).Select("voting_key_id")).
		Update("status", models.KeyStatusCompleted)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}
