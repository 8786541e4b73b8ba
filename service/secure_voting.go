package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"secure-voting/encryption"
	"secure-voting/mailer"
	"secure-voting/metrics"
	"secure-voting/models"
	"secure-voting/storage"
)

// Store persists voting keys and votes.
type Store interface {
	FindVotingKey(ctx context.Context, userID, electionID uint) (*models.VotingKey, error)
	FindVotingKeyByPrimaryKey(ctx context.Context, primaryKey string, electionID uint) (*models.VotingKey, error)
	FindVotingKeyByConfirmationKey(ctx context.Context, confirmationKey string, electionID uint) (*models.VotingKey, error)
	CreateVotingKey(ctx context.Context, key *models.VotingKey) error
	ReissuePrimaryKey(ctx context.Context, id, oldPrimaryKey, newPrimaryKey string, expiry, now time.Time, ipAddress, userAgent string) (bool, error)
	ConfirmVotingKey(ctx context.Context, id, confirmationKey string, expiry, now time.Time) (bool, error)
	RecordVote(ctx context.Context, keyID string, vote *models.Vote, now time.Time) (bool, error)
	CompleteVotingKey(ctx context.Context, id string) (bool, error)
	FindVoteByVotingKey(ctx context.Context, votingKeyID string) (*models.Vote, error)
}

// Directory resolves users, elections and candidates.
type Directory interface {
	FindElection(ctx context.Context, id uint) (*models.Election, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindCandidate(ctx context.Context, id uint) (*models.Candidate, error)
}

// LedgerQueue accepts votes for asynchronous ledger recording.
type LedgerQueue interface {
	Enqueue(voteID string)
}

// Options configures key lifetimes, key redisplay and the clock.
type Options struct {
	PrimaryKeyTTL      time.Duration
	ConfirmationKeyTTL time.Duration
	AllowKeyRedisplay  bool
	Clock              func() time.Time
}

const maxKeyAttempts = 3

// SecureVotingService runs the request-key, verify-key and submit-vote handshake.
type SecureVotingService struct {
	store     Store
	directory Directory
	keys      *encryption.KeyGenerator
	limiter   *RateLimiter
	mailer    mailer.Mailer
	ledger    LedgerQueue
	metrics   *metrics.Collector
	logger    *zap.Logger
	opts      Options

	notifications sync.WaitGroup
}

// NewSecureVotingService wires the protocol to its store, ledger worker and mailer.
func NewSecureVotingService(
	store Store,
	directory Directory,
	keys *encryption.KeyGenerator,
	limiter *RateLimiter,
	m mailer.Mailer,
	ledger LedgerQueue,
	collector *metrics.Collector,
	logger *zap.Logger,
	opts Options,
) *SecureVotingService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &SecureVotingService{
		store:     store,
		directory: directory,
		keys:      keys,
		limiter:   limiter,
		mailer:    m,
		ledger:    ledger,
		metrics:   collector,
		logger:    logger.With(zap.String("service", "secure_voting")),
		opts:      opts,
	}
}

// RequestKeyInput identifies the voter and election for step one.
type RequestKeyInput struct {
	Email      string
	ElectionID uint
	IPAddress  string
	UserAgent  string
}

// RequestKeyResult is returned after a primary key is issued.
type RequestKeyResult struct {
	Message   string    `json:"message"`
	KeyExpiry time.Time `json:"keyExpiry"`
	Resent    bool      `json:"resent"`
}

type ElectionSummary struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type UserSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CandidateSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Party string `json:"party"`
}

// VerifyKeyInput carries the primary key presented in step two.
type VerifyKeyInput struct {
	PrimaryKey string
	ElectionID uint
}

// VerifyKeyResult describes the election a verified key may vote in.
type VerifyKeyResult struct {
	ConfirmationKey    string          `json:"confirmationKey"`
	ConfirmationExpiry time.Time       `json:"confirmationExpiry"`
	Election           ElectionSummary `json:"election"`
	User               UserSummary     `json:"user"`
}

// SubmitVoteInput is the ballot for step three.
type SubmitVoteInput struct {
	ConfirmationKey string
	ElectionID      uint
	CandidateID     uint
}

type SecurityInfo struct {
	KeyVerified  bool      `json:"keyVerified"`
	SubmittedAt  time.Time `json:"submittedAt"`
	LedgerStatus string    `json:"ledgerStatus"`
}

// SubmitVoteResult is returned once the vote is stored.
type SubmitVoteResult struct {
	VoteID           string           `json:"voteId"`
	VerificationHash string           `json:"verificationHash"`
	Candidate        CandidateSummary `json:"candidate"`
	Security         SecurityInfo     `json:"security"`
}

// VoteVerification is the answer to a confirmation key lookup.
type VoteVerification struct {
	VoteID           string     `json:"voteId"`
	ElectionID       uint       `json:"electionId"`
	CandidateID      uint       `json:"candidateId"`
	VerificationHash string     `json:"verificationHash"`
	Status           string     `json:"status"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	LedgerRecorded   bool       `json:"ledgerRecorded"`
	BlockchainTxHash string     `json:"blockchainTxHash,omitempty"`
	BlockIndex       *uint64    `json:"blockIndex,omitempty"`
	BlockTimestamp   *time.Time `json:"blockTimestamp,omitempty"`
}

// KeyStatusReport describes where a voter is in the handshake.
type KeyStatusReport struct {
	HasKey                bool       `json:"hasKey"`
	Status                string     `json:"status"`
	Expired               bool       `json:"expired"`
	HasVoted              bool       `json:"hasVoted"`
	PrimaryKeyExpiry      *time.Time `json:"primaryKeyExpiry,omitempty"`
	ConfirmationKeyExpiry *time.Time `json:"confirmationKeyExpiry,omitempty"`
	KeyGeneratedAt        *time.Time `json:"keyGeneratedAt,omitempty"`
	KeyConfirmedAt        *time.Time `json:"keyConfirmedAt,omitempty"`
	VoteSubmittedAt       *time.Time `json:"voteSubmittedAt,omitempty"`
}

// KeyRedisplay returns an unexpired primary key when redisplay is enabled.
type KeyRedisplay struct {
	PrimaryKey string    `json:"primaryKey"`
	KeyExpiry  time.Time `json:"keyExpiry"`
}

// RequestKey issues a primary key for (user, election) and emails it. While
// a primary key is still valid the same key is sent again.
func (s *SecureVotingService) RequestKey(ctx context.Context, in RequestKeyInput) (_ *RequestKeyResult, err error) {
	defer s.metrics.Track(metrics.OpRequestKey)()
	defer func() { s.countOutcome(metrics.OpRequestKey, err) }()

	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validateID("electionId", in.ElectionID); err != nil {
		return nil, err
	}

	if !s.limiter.Allow(in.Email, in.IPAddress) {
		s.logger.Warn("Key request rate limited",
			zap.String("email", in.Email),
			zap.String("ip", in.IPAddress))
		return nil, newError(KindRateLimited, "too many key requests, try again later")
	}

	now := s.opts.Clock()
	election, err := s.findActiveElection(ctx, in.ElectionID, now)
	if err != nil {
		return nil, err
	}
	user, err := s.findUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	key, resent, err := s.obtainPrimaryKey(ctx, user, election, in, now)
	if err != nil {
		return nil, err
	}

	msg := mailer.VotingKeyMessage{
		To:            user.Email,
		Key:           key.PrimaryKey,
		ElectionTitle: election.Title,
		ExpiresAt:     key.PrimaryKeyExpiry,
	}
	if err := s.mailer.SendVotingKey(ctx, msg); err != nil {
		s.logger.Error("Failed to deliver voting key",
			zap.Uint("user_id", user.ID),
			zap.Uint("election_id", election.ID),
			zap.Error(err))
		return nil, internalError("failed to deliver voting key", err)
	}

	s.logger.Info("Voting key issued",
		zap.Uint("user_id", user.ID),
		zap.Uint("election_id", election.ID),
		zap.String("key", encryption.MaskKey(key.PrimaryKey)),
		zap.Bool("resent", resent))

	message := "Voting key sent to your email"
	if resent {
		message = "Voting key resent to your email"
	}
	return &RequestKeyResult{Message: message, KeyExpiry: key.PrimaryKeyExpiry, Resent: resent}, nil
}

// obtainPrimaryKey returns the record whose key should be emailed and
// whether that key had been issued before.
func (s *SecureVotingService) obtainPrimaryKey(ctx context.Context, user *models.User, election *models.Election, in RequestKeyInput, now time.Time) (*models.VotingKey, bool, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		existing, err := s.store.FindVotingKey(ctx, user.ID, election.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, false, internalError("failed to load voting key", err)
		}

		if existing == nil {
			key, err := s.createPrimaryKey(ctx, user, election, in, now)
			if errors.Is(err, storage.ErrDuplicate) {
				// A concurrent request created the record first.
				continue
			}
			return key, false, err
		}

		switch {
		case existing.Used():
			return nil, false, newError(KindAlreadyUsed, "a vote has already been submitted for this election")
		case existing.Status == models.KeyStatusConfirmed && !existing.ConfirmationKeyExpired(now):
			return nil, false, newError(KindAlreadyUsed, "voting key already verified, submit your vote with the confirmation key")
		case existing.Status == models.KeyStatusGenerated && !existing.PrimaryKeyExpired(now):
			return existing, true, nil
		}

		key, ok, err := s.reissuePrimaryKey(ctx, existing, in, now)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return key, false, nil
		}
	}

	return nil, false, internalError("failed to issue voting key", errors.New("too many concurrent updates"))
}

func (s *SecureVotingService) createPrimaryKey(ctx context.Context, user *models.User, election *models.Election, in RequestKeyInput, now time.Time) (*models.VotingKey, error) {
	primaryKey, err := s.keys.GeneratePrimaryKey()
	if err != nil {
		return nil, internalError("failed to generate voting key", err)
	}

	key := &models.VotingKey{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		ElectionID:       election.ID,
		PrimaryKey:       primaryKey,
		Status:           models.KeyStatusGenerated,
		PrimaryKeyExpiry: now.Add(s.opts.PrimaryKeyTTL),
		KeyGeneratedAt:   now,
		IPAddress:        in.IPAddress,
		UserAgent:        in.UserAgent,
	}
	if err := s.store.CreateVotingKey(ctx, key); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, err
		}
		return nil, internalError("failed to store voting key", err)
	}
	return key, nil
}

func (s *SecureVotingService) reissuePrimaryKey(ctx context.Context, existing *models.VotingKey, in RequestKeyInput, now time.Time) (*models.VotingKey, bool, error) {
	primaryKey, err := s.keys.GeneratePrimaryKey()
	if err != nil {
		return nil, false, internalError("failed to generate voting key", err)
	}

	expiry := now.Add(s.opts.PrimaryKeyTTL)
	ok, err := s.store.ReissuePrimaryKey(ctx, existing.ID, existing.PrimaryKey, primaryKey, expiry, now, in.IPAddress, in.UserAgent)
	if err != nil {
		return nil, false, internalError("failed to reissue voting key", err)
	}
	if !ok {
		return nil, false, nil
	}

	key := *existing
	key.PrimaryKey = primaryKey
	key.Status = models.KeyStatusGenerated
	key.PrimaryKeyExpiry = expiry
	key.KeyGeneratedAt = now
	key.ConfirmationKey = nil
	key.ConfirmationKeyExpiry = nil
	key.KeyConfirmedAt = nil
	key.IPAddress = in.IPAddress
	key.UserAgent = in.UserAgent

	s.logger.Info("Expired voting key reissued",
		zap.String("voting_key_id", existing.ID),
		zap.String("previous_status", string(existing.Status)))
	return &key, true, nil
}

// VerifyKey exchanges a valid primary key for a confirmation key.
func (s *SecureVotingService) VerifyKey(ctx context.Context, in VerifyKeyInput) (_ *VerifyKeyResult, err error) {
	defer s.metrics.Track(metrics.OpVerifyKey)()
	defer func() { s.countOutcome(metrics.OpVerifyKey, err) }()

	if err := validateKey("primary key", in.PrimaryKey); err != nil {
		return nil, err
	}
	if err := validateID("electionId", in.ElectionID); err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	key, err := s.store.FindVotingKeyByPrimaryKey(ctx, encryption.NormalizeKey(in.PrimaryKey), in.ElectionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindInvalidKey, "invalid primary key")
	}
	if err != nil {
		return nil, internalError("failed to load voting key", err)
	}

	switch {
	case key.Used():
		return nil, newError(KindAlreadyUsed, "a vote has already been submitted with this key")
	case key.Status != models.KeyStatusGenerated:
		return nil, newError(KindInvalidKey, "primary key has already been verified")
	case key.PrimaryKeyExpired(now):
		return nil, newError(KindKeyExpired, "primary key has expired, request a new one")
	}

	election, err := s.findActiveElection(ctx, key.ElectionID, now)
	if err != nil {
		return nil, err
	}
	user, err := s.findUserByID(ctx, key.UserID)
	if err != nil {
		return nil, err
	}

	confirmationKey, err := s.keys.GenerateConfirmationKey()
	if err != nil {
		return nil, internalError("failed to generate confirmation key", err)
	}
	expiry := now.Add(s.opts.ConfirmationKeyTTL)

	ok, err := s.store.ConfirmVotingKey(ctx, key.ID, confirmationKey, expiry, now)
	if err != nil {
		return nil, internalError("failed to confirm voting key", err)
	}
	if !ok {
		return nil, newError(KindInvalidKey, "primary key is no longer valid")
	}

	s.logger.Info("Voting key verified",
		zap.String("voting_key_id", key.ID),
		zap.Uint("election_id", election.ID),
		zap.String("confirmation_key", encryption.MaskKey(confirmationKey)))

	return &VerifyKeyResult{
		ConfirmationKey:    confirmationKey,
		ConfirmationExpiry: expiry,
		Election:           summarizeElection(election),
		User:               summarizeUser(user),
	}, nil
}

// SubmitVote redeems a confirmation key. Exactly one submission per key can
// succeed; the ledger append and the confirmation email happen afterwards
// and never affect the result.
func (s *SecureVotingService) SubmitVote(ctx context.Context, in SubmitVoteInput) (_ *SubmitVoteResult, err error) {
	defer s.metrics.Track(metrics.OpSubmitVote)()
	defer func() { s.countOutcome(metrics.OpSubmitVote, err) }()

	if err := validateKey("confirmation key", in.ConfirmationKey); err != nil {
		return nil, err
	}
	if err := validateID("electionId", in.ElectionID); err != nil {
		return nil, err
	}
	if err := validateID("candidateId", in.CandidateID); err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	confirmationKey := encryption.NormalizeKey(in.ConfirmationKey)
	key, err := s.store.FindVotingKeyByConfirmationKey(ctx, confirmationKey, in.ElectionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindInvalidKey, "invalid confirmation key")
	}
	if err != nil {
		return nil, internalError("failed to load voting key", err)
	}

	switch {
	case key.Used():
		return nil, newError(KindAlreadyUsed, "a vote has already been submitted with this key")
	case key.Status != models.KeyStatusConfirmed:
		return nil, newError(KindInvalidKey, "invalid confirmation key")
	case key.ConfirmationKeyExpired(now):
		return nil, newError(KindKeyExpired, "confirmation key has expired, request a new voting key")
	}

	election, err := s.findActiveElection(ctx, key.ElectionID, now)
	if err != nil {
		return nil, err
	}
	candidate, err := s.findCandidate(ctx, in.CandidateID)
	if err != nil {
		return nil, err
	}
	if candidate.ElectionID != election.ID {
		return nil, newError(KindValidation, "candidate does not belong to this election")
	}

	verificationHash := encryption.ComputeVerificationHash(
		key.PrimaryKey, confirmationKey, key.UserID, election.ID, candidate.ID)
	vote := &models.Vote{
		ID:               uuid.New().String(),
		UserID:           key.UserID,
		ElectionID:       election.ID,
		CandidateID:      candidate.ID,
		VotingKeyID:      key.ID,
		VerificationHash: verificationHash,
		CreatedAt:        now,
	}

	claimed, err := s.store.RecordVote(ctx, key.ID, vote, now)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, newError(KindAlreadyUsed, "a vote has already been submitted for this election")
	}
	if err != nil {
		return nil, internalError("failed to record vote", err)
	}
	if !claimed {
		return nil, newError(KindAlreadyUsed, "a vote has already been submitted with this key")
	}

	if _, err := s.store.CompleteVotingKey(ctx, key.ID); err != nil {
		// The vote is durable; resync completes the key later.
		s.logger.Error("Failed to complete voting key",
			zap.String("voting_key_id", key.ID),
			zap.Error(err))
	}

	s.ledger.Enqueue(vote.ID)
	s.notifyVoteRecorded(key.UserID, confirmationKey, election.Title, candidate.Name)

	s.logger.Info("Vote submitted",
		zap.String("vote_id", vote.ID),
		zap.Uint("election_id", election.ID))

	return &SubmitVoteResult{
		VoteID:           vote.ID,
		VerificationHash: vote.VerificationHash,
		Candidate:        summarizeCandidate(candidate),
		Security: SecurityInfo{
			KeyVerified:  true,
			SubmittedAt:  now,
			LedgerStatus: "pending",
		},
	}, nil
}

func (s *SecureVotingService) notifyVoteRecorded(userID uint, confirmationKey, electionTitle, candidateName string) {
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		ctx := context.Background()
		user, err := s.directory.FindUserByID(ctx, userID)
		if err != nil {
			s.logger.Warn("Skipping vote confirmation email", zap.Uint("user_id", userID), zap.Error(err))
			return
		}

		err = s.mailer.SendConfirmationKey(ctx, mailer.ConfirmationMessage{
			To:              user.Email,
			ConfirmationKey: confirmationKey,
			ElectionTitle:   electionTitle,
			CandidateName:   candidateName,
		})
		if err != nil {
			s.logger.Warn("Failed to send vote confirmation email", zap.Uint("user_id", userID), zap.Error(err))
		}
	}()
}

// Wait blocks until pending notification emails have been handed to the mailer.
func (s *SecureVotingService) Wait() {
	s.notifications.Wait()
}

// VerifyVote looks up the vote cast with a confirmation key.
func (s *SecureVotingService) VerifyVote(ctx context.Context, confirmationKey string, electionID uint) (*VoteVerification, error) {
	if err := validateKey("confirmation key", confirmationKey); err != nil {
		return nil, err
	}
	if err := validateID("electionId", electionID); err != nil {
		return nil, err
	}

	key, err := s.store.FindVotingKeyByConfirmationKey(ctx, encryption.NormalizeKey(confirmationKey), electionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "vote not found")
	}
	if err != nil {
		return nil, internalError("failed to load voting key", err)
	}
	if !key.Used() {
		return nil, newError(KindNotFound, "vote not found")
	}

	vote, err := s.store.FindVoteByVotingKey(ctx, key.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "vote not found")
	}
	if err != nil {
		return nil, internalError("failed to load vote", err)
	}

	result := &VoteVerification{
		VoteID:           vote.ID,
		ElectionID:       vote.ElectionID,
		CandidateID:      vote.CandidateID,
		VerificationHash: vote.VerificationHash,
		Status:           string(key.Status),
		SubmittedAt:      key.VoteSubmittedAt,
		LedgerRecorded:   vote.Synced(),
		BlockIndex:       vote.BlockIndex,
		BlockTimestamp:   vote.BlockTimestamp,
	}
	if vote.BlockchainTxHash != nil {
		result.BlockchainTxHash = *vote.BlockchainTxHash
	}
	return result, nil
}

// Status reports the handshake state of a user in an election.
func (s *SecureVotingService) Status(ctx context.Context, email string, electionID uint) (*KeyStatusReport, error) {
	key, err := s.lookupKey(ctx, email, electionID)
	if errors.Is(err, storage.ErrNotFound) {
		return &KeyStatusReport{Status: "none"}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	status := &KeyStatusReport{
		HasKey:                true,
		Status:                string(key.Status),
		HasVoted:              key.Used(),
		PrimaryKeyExpiry:      &key.PrimaryKeyExpiry,
		ConfirmationKeyExpiry: key.ConfirmationKeyExpiry,
		KeyGeneratedAt:        &key.KeyGeneratedAt,
		KeyConfirmedAt:        key.KeyConfirmedAt,
		VoteSubmittedAt:       key.VoteSubmittedAt,
	}
	switch key.Status {
	case models.KeyStatusGenerated:
		status.Expired = key.PrimaryKeyExpired(now)
	case models.KeyStatusConfirmed:
		status.Expired = key.ConfirmationKeyExpired(now)
	}
	return status, nil
}

// GetKey shows an unexpired primary key again. It is disabled unless
// AllowKeyRedisplay is set.
func (s *SecureVotingService) GetKey(ctx context.Context, email string, electionID uint) (*KeyRedisplay, error) {
	if !s.opts.AllowKeyRedisplay {
		return nil, newError(KindNotFound, "key redisplay is disabled")
	}

	key, err := s.lookupKey(ctx, email, electionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "no voting key has been requested")
	}
	if err != nil {
		return nil, err
	}

	if key.Status != models.KeyStatusGenerated {
		return nil, newError(KindNotFound, "no active primary key")
	}
	if key.PrimaryKeyExpired(s.opts.Clock()) {
		return nil, newError(KindKeyExpired, "primary key has expired, request a new one")
	}
	return &KeyRedisplay{PrimaryKey: key.PrimaryKey, KeyExpiry: key.PrimaryKeyExpiry}, nil
}

// lookupKey returns storage.ErrNotFound unwrapped when the user has no record.
func (s *SecureVotingService) lookupKey(ctx context.Context, email string, electionID uint) (*models.VotingKey, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateID("electionId", electionID); err != nil {
		return nil, err
	}

	if _, err := s.findElection(ctx, electionID); err != nil {
		return nil, err
	}
	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	key, err := s.store.FindVotingKey(ctx, user.ID, electionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, internalError("failed to load voting key", err)
	}
	return key, nil
}

func (s *SecureVotingService) findElection(ctx context.Context, id uint) (*models.Election, error) {
	election, err := s.directory.FindElection(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "election not found")
	}
	if err != nil {
		return nil, internalError("failed to load election", err)
	}
	return election, nil
}

func (s *SecureVotingService) findActiveElection(ctx context.Context, id uint, now time.Time) (*models.Election, error) {
	election, err := s.findElection(ctx, id)
	if err != nil {
		return nil, err
	}
	if !election.IsActive(now) {
		return nil, newError(KindValidation, "election is not currently active")
	}
	return election, nil
}

func (s *SecureVotingService) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.directory.FindUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "user not found")
	}
	if err != nil {
		return nil, internalError("failed to load user", err)
	}
	return user, nil
}

func (s *SecureVotingService) findUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.directory.FindUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "user not found")
	}
	if err != nil {
		return nil, internalError("failed to load user", err)
	}
	return user, nil
}

func (s *SecureVotingService) findCandidate(ctx context.Context, id uint) (*models.Candidate, error) {
	candidate, err := s.directory.FindCandidate(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "candidate not found")
	}
	if err != nil {
		return nil, internalError("failed to load candidate", err)
	}
	return candidate, nil
}

func (s *SecureVotingService) countOutcome(op string, err error) {
	if err == nil {
		s.metrics.Increment(op, "success")
		return
	}
	s.metrics.Increment(op, string(KindOf(err)))
}

func summarizeElection(e *models.Election) ElectionSummary {
	return ElectionSummary{ID: e.ID, Title: e.Title, StartDate: e.StartDate, EndDate: e.EndDate}
}

func summarizeUser(u *models.User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func summarizeCandidate(c *models.Candidate) CandidateSummary {
	return CandidateSummary{ID: c.ID, Name: c.Name, Party: c.Party}
}
