package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"secure-voting/models"
)

// Seed is the registry of voters and elections loaded into an empty database.
// Registration and election administration live outside this service.
type Seed struct {
	Users     []SeedUser     `json:"users"`
	Elections []SeedElection `json:"elections"`
}

// SeedUser is one user entry of the seed file.
type SeedUser struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

// SeedElection is one election entry of the seed file, with its candidates.
type SeedElection struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Candidates  []SeedCandidate `json:"candidates"`
}

// SeedCandidate is one candidate of a seeded election.
type SeedCandidate struct {
	Name  string `json:"name"`
	Party string `json:"party"`
}

// Load reads the seed file. When the file is missing and createDefault is
// set, a default seed is written and returned.
func Load(path string, createDefault bool, now time.Time) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && createDefault {
			return createDefaultSeed(path, now)
		}
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal registry data: %w", err)
	}
	if err := validateSeed(&seed); err != nil {
		return nil, fmt.Errorf("invalid registry data: %w", err)
	}
	return &seed, nil
}

// DefaultSeed has two voters and one election open for thirty days from now.
func DefaultSeed(now time.Time) *Seed {
	now = now.UTC().Truncate(time.Second)
	return &Seed{
		Users: []SeedUser{
			{Name: "Alice Voter", Email: "alice@example.com", IsVerified: true},
			{Name: "Bob Voter", Email: "bob@example.com", IsVerified: true},
		},
		Elections: []SeedElection{
			{
				Title:       "Student Council",
				Description: "Annual student council election",
				StartDate:   now.Add(-time.Hour),
				EndDate:     now.Add(30 * 24 * time.Hour),
				Candidates: []SeedCandidate{
					{Name: "Jordan Lee", Party: "Independent"},
					{Name: "Sam Rivera", Party: "Progress"},
				},
			},
		},
	}
}

func createDefaultSeed(path string, now time.Time) (*Seed, error) {
	seed := DefaultSeed(now)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to save default registry file: %w", err)
	}
	return seed, nil
}

func validateSeed(seed *Seed) error {
	emails := make(map[string]bool, len(seed.Users))
	for i, u := range seed.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return fmt.Errorf("user %d: email is required", i)
		}
		if u.Name == "" {
			return fmt.Errorf("user %s: name is required", email)
		}
		if emails[email] {
			return fmt.Errorf("user %s: duplicate email", email)
		}
		emails[email] = true
	}

	for i, e := range seed.Elections {
		if e.Title == "" {
			return fmt.Errorf("election %d: title is required", i)
		}
		if e.StartDate.IsZero() || e.EndDate.IsZero() {
			return fmt.Errorf("election %q: start and end dates are required", e.Title)
		}
		if !e.EndDate.After(e.StartDate) {
			return fmt.Errorf("election %q: end date must be after start date", e.Title)
		}
		if len(e.Candidates) == 0 {
			return fmt.Errorf("election %q: at least one candidate is required", e.Title)
		}
		for _, c := range e.Candidates {
			if c.Name == "" {
				return fmt.Errorf("election %q: candidate name is required", e.Title)
			}
		}
	}
	return nil
}

// Apply inserts the seed when the database holds no users and no elections.
// It reports whether anything was written.
func Apply(ctx context.Context, db *gorm.DB, seed *Seed, logger *zap.Logger) (bool, error) {
	var users, elections int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return false, err
	}
	if err := db.WithContext(ctx).Model(&models.Election{}).Count(&elections).Error; err != nil {
		return false, err
	}
	if users > 0 || elections > 0 {
		logger.Debug("Registry already populated, skipping seed",
			zap.Int64("users", users),
			zap.Int64("elections", elections))
		return false, nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range seed.Users {
			user := models.User{
				Name:       u.Name,
				Email:      strings.ToLower(strings.TrimSpace(u.Email)),
				IsVerified: u.IsVerified,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user %s: %w", u.Email, err)
			}
		}

		for _, e := range seed.Elections {
			election := models.Election{
				Title:       e.Title,
				Description: e.Description,
				StartDate:   e.StartDate,
				EndDate:     e.EndDate,
			}
			for _, c := range e.Candidates {
				election.Candidates = append(election.Candidates, models.Candidate{Name: c.Name, Party: c.Party})
			}
			if err := tx.Create(&election).Error; err != nil {
				return fmt.Errorf("failed to create election %q: %w", e.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	logger.Info("Registry seeded",
		zap.Int("users", len(seed.Users)),
		zap.Int("elections", len(seed.Elections)))
	return true, nil
}

// LoadAndApply loads the seed file and applies it to an empty database.
func LoadAndApply(ctx context.Context, db *gorm.DB, path string, createDefault bool, logger *zap.Logger) error {
	seed, err := Load(path, createDefault, time.Now())
	if err != nil {
		return err
	}
	if len(seed.Users) == 0 && len(seed.Elections) == 0 {
		logger.Warn("Registry seed is empty", zap.String("path", path))
		return nil
	}
	_, err = Apply(ctx, db, seed, logger)
	return err
}
