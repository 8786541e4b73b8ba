package storage

import (
	"context"
	"strings"

	"secure-voting/models"
)

// Lookups into entities owned by the registration and admin surfaces.

// FindElection loads an election by id.
func (s *Store) FindElection(ctx context.Context, id uint) (*models.Election, error) {
	var election models.Election
	if err := s.db.WithContext(ctx).First(&election, id).Error; err != nil {
		return nil, translate(err)
	}
	return &election, nil
}

// FindUserByEmail matches the address case-insensitively.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByID loads a user by id.
func (s *Store) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindCandidate loads a candidate by id.
func (s *Store) FindCandidate(ctx context.Context, id uint) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := s.db.WithContext(ctx).First(&candidate, id).Error; err != nil {
		return nil, translate(err)
	}
	return &candidate, nil
}

// ListCandidates returns the candidates of an election ordered by id.
func (s *Store) ListCandidates(ctx context.Context, electionID uint) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if err := s.db.WithContext(ctx).Where("election_id = ?", electionID).Order("id ASC").Find(&candidates).Error; err != nil {
		return nil, translate(err)
	}
	return candidates, nil
}
