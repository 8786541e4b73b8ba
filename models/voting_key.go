package models

import "time"

// KeyStatus is the lifecycle state of a voting key.
type KeyStatus string

const (
	KeyStatusGenerated KeyStatus = "generated"
	KeyStatusConfirmed KeyStatus = "confirmed"
	KeyStatusVoted     KeyStatus = "voted"
	KeyStatusCompleted KeyStatus = "completed"
)

// VotingKey tracks the handshake state of one user in one election.
// Expiry is never stored as a status; callers compare the expiry fields with the clock.
type VotingKey struct {
	ID                    string     `gorm:"primaryKey;size:36" json:"id"`
	UserID                uint       `gorm:"not null;uniqueIndex:idx_voting_keys_user_election" json:"userId"`
	ElectionID            uint       `gorm:"not null;uniqueIndex:idx_voting_keys_user_election" json:"electionId"`
	PrimaryKey            string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ConfirmationKey       *string    `gorm:"size:64;uniqueIndex" json:"-"`
	Status                KeyStatus  `gorm:"size:16;not null;index" json:"status"`
	PrimaryKeyExpiry      time.Time  `gorm:"not null" json:"primaryKeyExpiry"`
	ConfirmationKeyExpiry *time.Time `json:"confirmationKeyExpiry,omitempty"`
	KeyGeneratedAt        time.Time  `gorm:"not null" json:"keyGeneratedAt"`
	KeyConfirmedAt        *time.Time `json:"keyConfirmedAt,omitempty"`
	VoteSubmittedAt       *time.Time `json:"voteSubmittedAt,omitempty"`
	VerificationHash      *string    `gorm:"size:128" json:"verificationHash,omitempty"`
	IPAddress             string     `gorm:"size:64" json:"-"`
	UserAgent             string     `gorm:"size:512" json:"-"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func (VotingKey) TableName() string {
	return "voting_keys"
}

// PrimaryKeyExpired reports whether the primary key is past its expiry at now.
func (k *VotingKey) PrimaryKeyExpired(now time.Time) bool {
	return now.After(k.PrimaryKeyExpiry)
}

// ConfirmationKeyExpired is also true when no confirmation key was issued.
func (k *VotingKey) ConfirmationKeyExpired(now time.Time) bool {
	return k.ConfirmationKeyExpiry == nil || now.After(*k.ConfirmationKeyExpiry)
}

// Used reports whether a vote has been recorded against the key.
func (k *VotingKey) Used() bool {
	return k.Status == KeyStatusVoted || k.Status == KeyStatusCompleted
}
