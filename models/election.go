package models

import (
	"time"

	"gorm.io/gorm"
)

// User, Election and Candidate are owned by the registration and admin
// surfaces; the voting-key protocol only reads them.

// User is a registered voter.
type User struct {
	gorm.Model
	Name       string `gorm:"not null" json:"name"`
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	IsVerified bool   `gorm:"not null;default:false" json:"isVerified"`
}

// Election is a voting window with its candidates.
type Election struct {
	gorm.Model
	Title       string      `gorm:"not null" json:"title"`
	Description string      `json:"description"`
	StartDate   time.Time   `gorm:"not null" json:"startDate"`
	EndDate     time.Time   `gorm:"not null" json:"endDate"`
	Candidates  []Candidate `json:"candidates,omitempty"`
}

// IsActive reports whether now falls inside the voting window.
func (e *Election) IsActive(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// Candidate belongs to exactly one election.
type Candidate struct {
	gorm.Model
	Name       string `gorm:"not null" json:"name"`
	Party      string `json:"party"`
	ElectionID uint   `gorm:"index;not null" json:"electionId"`
}
