package models

import "time"

// Vote is the durable record of a cast ballot. Only the ledger fields are
// written after creation.
type Vote struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UserID           uint       `gorm:"not null;uniqueIndex:idx_votes_user_election" json:"userId"`
	ElectionID       uint       `gorm:"not null;uniqueIndex:idx_votes_user_election;index" json:"electionId"`
	CandidateID      uint       `gorm:"not null;index" json:"candidateId"`
	VotingKeyID      string     `gorm:"size:36;not null;uniqueIndex" json:"votingKeyId"`
	VerificationHash string     `gorm:"size:128;not null" json:"verificationHash"`
	BlockchainTxHash *string    `gorm:"size:64;index" json:"blockchainTxHash,omitempty"`
	BlockIndex       *uint64    `json:"blockIndex,omitempty"`
	BlockTimestamp   *time.Time `json:"blockTimestamp,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (Vote) TableName() string {
	return "votes"
}

// Synced reports whether the vote has a ledger receipt.
func (v *Vote) Synced() bool {
	return v.BlockchainTxHash != nil && *v.BlockchainTxHash != ""
}

// VotePayload is the data embedded in a ledger block.
type VotePayload struct {
	VoteID       string `json:"voteId"`
	ElectionID   uint   `json:"electionId"`
	CandidateID  uint   `json:"candidateId"`
	VoterAddress string `json:"voterAddress"`
	Timestamp    int64  `json:"timestamp"`
}
