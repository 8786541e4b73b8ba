package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"

	"secure-voting/encryption"
	"secure-voting/mailer"
	"secure-voting/mailer/mocks"
	"secure-voting/metrics"
	"secure-voting/models"
	"secure-voting/service"
	"secure-voting/storage"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) Enqueue(voteID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, voteID)
}

func (q *recordingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// mailbox records what the mocked mailer was asked to deliver.
type mailbox struct {
	mu            sync.Mutex
	keys          []mailer.VotingKeyMessage
	confirmations []mailer.ConfirmationMessage
	err           error
}

func (m *mailbox) votingKey(_ context.Context, msg mailer.VotingKeyMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, msg)
	return nil
}

func (m *mailbox) confirmation(_ context.Context, msg mailer.ConfirmationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, msg)
	return nil
}

func (m *mailbox) lastKey(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.keys) == 0 {
		t.Fatalf("no voting key was mailed")
	}
	return m.keys[len(m.keys)-1].Key
}

func (m *mailbox) keyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

type fixture struct {
	svc       *service.SecureVotingService
	store     *storage.Store
	clock     *testClock
	mail      *mailbox
	queue     *recordingQueue
	limiter   *service.RateLimiter
	collector *metrics.Collector

	user      models.User
	other     models.User
	election  models.Election
	election2 models.Election
	upcoming  models.Election
}

func defaultOptions() service.Options {
	return service.Options{
		PrimaryKeyTTL:      5 * time.Minute,
		ConfirmationKeyTTL: 5 * time.Minute,
		AllowKeyRedisplay:  true,
	}
}

func newFixture(t *testing.T, opts service.Options) *fixture {
	t.Helper()

	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { storage.Close(db) })

	f := &fixture{
		store:     storage.NewStore(db),
		clock:     &testClock{now: t0},
		mail:      &mailbox{},
		queue:     &recordingQueue{},
		collector: metrics.NewCollector(),
	}

	f.user = models.User{Name: "Ada", Email: "a@x.com", IsVerified: true}
	f.other = models.User{Name: "Bea", Email: "b@x.com", IsVerified: true}
	f.election = models.Election{
		Title:      "E1",
		StartDate:  t0.Add(-time.Hour),
		EndDate:    t0.Add(24 * time.Hour),
		Candidates: []models.Candidate{{Name: "X", Party: "P1"}, {Name: "Y", Party: "P2"}},
	}
	f.election2 = models.Election{
		Title:      "E2",
		StartDate:  t0.Add(-time.Hour),
		EndDate:    t0.Add(24 * time.Hour),
		Candidates: []models.Candidate{{Name: "Z"}},
	}
	f.upcoming = models.Election{
		Title:     "E3",
		StartDate: t0.Add(48 * time.Hour),
		EndDate:   t0.Add(72 * time.Hour),
	}
	for _, v := range []any{&f.user, &f.other, &f.election, &f.election2, &f.upcoming} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("failed to seed fixture: %v", err)
		}
	}

	ctrl := gomock.NewController(t)
	mockMailer := mocks.NewMockMailer(ctrl)
	mockMailer.EXPECT().SendVotingKey(gomock.Any(), gomock.Any()).DoAndReturn(f.mail.votingKey).AnyTimes()
	mockMailer.EXPECT().SendConfirmationKey(gomock.Any(), gomock.Any()).DoAndReturn(f.mail.confirmation).AnyTimes()

	f.limiter = service.NewRateLimiter(5, 15*time.Minute, f.clock.Now)
	opts.Clock = f.clock.Now
	f.svc = service.NewSecureVotingService(
		f.store,
		f.store,
		encryption.NewKeyGenerator(),
		f.limiter,
		mockMailer,
		f.queue,
		f.collector,
		zap.NewNop(),
		opts,
	)
	// Registered after the controller so notifications finish before it is checked.
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) requestKey(t *testing.T, email string) *service.RequestKeyResult {
	t.Helper()

	result, err := f.svc.RequestKey(context.Background(), service.RequestKeyInput{
		Email:      email,
		ElectionID: f.election.ID,
		IPAddress:  "10.0.0.1",
		UserAgent:  "test",
	})
	if err != nil {
		t.Fatalf("request key failed: %v", err)
	}
	return result
}

func (f *fixture) verifyKey(t *testing.T, primaryKey string) *service.VerifyKeyResult {
	t.Helper()

	result, err := f.svc.VerifyKey(context.Background(), service.VerifyKeyInput{
		PrimaryKey: primaryKey,
		ElectionID: f.election.ID,
	})
	if err != nil {
		t.Fatalf("verify key failed: %v", err)
	}
	return result
}

func expectKind(t *testing.T, err error, kind service.ErrorKind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := service.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func TestVotingHandshake(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()
	candidate := f.election.Candidates[0]

	requested := f.requestKey(t, "a@x.com")
	if requested.Resent || !requested.KeyExpiry.Equal(t0.Add(5*time.Minute)) {
		t.Fatalf("unexpected request result %+v", requested)
	}
	primaryKey := f.mail.lastKey(t)
	if !encryption.VerifyKeyFormat(primaryKey) {
		t.Fatalf("mailed key has the wrong format: %q", primaryKey)
	}

	f.clock.Advance(time.Minute)
	verified := f.verifyKey(t, primaryKey)
	if verified.ConfirmationKey == primaryKey || !encryption.VerifyKeyFormat(verified.ConfirmationKey) {
		t.Fatalf("unexpected confirmation key %q", verified.ConfirmationKey)
	}
	if verified.User.Email != "a@x.com" || verified.Election.ID != f.election.ID {
		t.Fatalf("unexpected verify result %+v", verified)
	}

	f.clock.Advance(time.Minute)
	submitted, err := f.svc.SubmitVote(ctx, service.SubmitVoteInput{
		ConfirmationKey: verified.ConfirmationKey,
		ElectionID:      f.election.ID,
		CandidateID:     candidate.ID,
	})
	if err != nil {
		t.Fatalf("submit vote failed: %v", err)
	}

	wantHash := encryption.ComputeVerificationHash(primaryKey, verified.ConfirmationKey, f.user.ID, f.election.ID, candidate.ID)
	if submitted.VerificationHash != wantHash {
		t.Fatalf("unexpected verification hash %s", submitted.VerificationHash)
	}
	if submitted.Candidate.Name != "X" || !submitted.Security.KeyVerified || submitted.Security.LedgerStatus != "pending" {
		t.Fatalf("unexpected submit result %+v", submitted)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("expected vote to be queued for the ledger")
	}

	key, err := f.store.FindVotingKey(ctx, f.user.ID, f.election.ID)
	if err != nil {
		t.Fatalf("failed to load voting key: %v", err)
	}
	if key.Status != models.KeyStatusCompleted || key.VerificationHash == nil || *key.VerificationHash != wantHash {
		t.Fatalf("unexpected key after vote: %+v", key)
	}

	_, err = f.svc.SubmitVote(ctx, service.SubmitVoteInput{
		ConfirmationKey: verified.ConfirmationKey,
		ElectionID:      f.election.ID,
		CandidateID:     f.election.Candidates[1].ID,
	})
	expectKind(t, err, service.KindAlreadyUsed)

	_, err = f.svc.RequestKey(ctx, service.RequestKeyInput{Email: "a@x.com", ElectionID: f.election.ID, IPAddress: "10.0.0.1"})
	expectKind(t, err, service.KindAlreadyUsed)

	f.svc.Wait()
	f.mail.mu.Lock()
	confirmations := len(f.mail.confirmations)
	f.mail.mu.Unlock()
	if confirmations != 1 {
		t.Fatalf("expected one confirmation email, got %d", confirmations)
	}

	if n := f.collector.Counter(metrics.OpSubmitVote, "success"); n != 1 {
		t.Fatalf("expected one successful submission, got %d", n)
	}
}

func TestRequestKeyResendsUnexpiredKey(t *testing.T) {
	f := newFixture(t, defaultOptions())

	f.requestKey(t, "a@x.com")
	first := f.mail.lastKey(t)

	f.clock.Advance(2 * time.Minute)
	again := f.requestKey(t, "A@X.com")
	if !again.Resent || !again.KeyExpiry.Equal(t0.Add(5*time.Minute)) {
		t.Fatalf("expected the original key to be resent, got %+v", again)
	}
	if second := f.mail.lastKey(t); second != first {
		t.Fatalf("expected the same key to be mailed again")
	}

	var count int64
	f.store.DB().Model(&models.VotingKey{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single voting key record, got %d", count)
	}
}

func TestVerifyKeyExpired(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	f.requestKey(t, "a@x.com")
	primaryKey := f.mail.lastKey(t)

	f.clock.Advance(6 * time.Minute)
	_, err := f.svc.VerifyKey(ctx, service.VerifyKeyInput{PrimaryKey: primaryKey, ElectionID: f.election.ID})
	expectKind(t, err, service.KindKeyExpired)
	if !errors.Is(err, service.ErrKeyExpired) {
		t.Fatalf("expected errors.Is to match ErrKeyExpired")
	}

	status, err := f.svc.Status(ctx, "a@x.com", f.election.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Status != string(models.KeyStatusGenerated) || !status.Expired {
		t.Fatalf("expected an expired generated key, got %+v", status)
	}
}

func TestVerifyKeyAtExpiryInstant(t *testing.T) {
	f := newFixture(t, defaultOptions())

	f.requestKey(t, "a@x.com")
	f.clock.Advance(5 * time.Minute)
	f.verifyKey(t, f.mail.lastKey(t))
}

func TestExpiredKeyIsReissued(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	f.requestKey(t, "a@x.com")
	oldKey := f.mail.lastKey(t)

	f.clock.Advance(6 * time.Minute)
	result := f.requestKey(t, "a@x.com")
	newKey := f.mail.lastKey(t)
	if result.Resent || newKey == oldKey {
		t.Fatalf("expected a fresh key after expiry")
	}
	if !result.KeyExpiry.Equal(t0.Add(11 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", result.KeyExpiry)
	}

	_, err := f.svc.VerifyKey(ctx, service.VerifyKeyInput{PrimaryKey: oldKey, ElectionID: f.election.ID})
	expectKind(t, err, service.KindInvalidKey)

	f.verifyKey(t, newKey)
}

func TestExpiredConfirmationKeyIsReissued(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	f.requestKey(t, "a@x.com")
	verified := f.verifyKey(t, f.mail.lastKey(t))

	_, err := f.svc.RequestKey(ctx, service.RequestKeyInput{Email: "a@x.com", ElectionID: f.election.ID, IPAddress: "10.0.0.1"})
	expectKind(t, err, service.KindAlreadyUsed)

	f.clock.Advance(6 * time.Minute)
	_, err = f.svc.SubmitVote(ctx, service.SubmitVoteInput{
		ConfirmationKey: verified.ConfirmationKey,
		ElectionID:      f.election.ID,
		CandidateID:     f.election.Candidates[0].ID,
	})
	expectKind(t, err, service.KindKeyExpired)

	f.requestKey(t, "a@x.com")
	key, err := f.store.FindVotingKey(ctx, f.user.ID, f.election.ID)
	if err != nil {
		t.Fatalf("failed to load voting key: %v", err)
	}
	if key.Status != models.KeyStatusGenerated || key.ConfirmationKey != nil {
		t.Fatalf("expected the record to restart at generated, got %+v", key)
	}
}

func TestConcurrentSubmissionsRecordOneVote(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	f.requestKey(t, "a@x.com")
	verified := f.verifyKey(t, f.mail.lastKey(t))

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		used      int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.SubmitVote(ctx, service.SubmitVoteInput{
				ConfirmationKey: verified.ConfirmationKey,
				ElectionID:      f.election.ID,
				CandidateID:     f.election.Candidates[i%2].ID,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case service.KindOf(err) == service.KindAlreadyUsed:
				used++
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || used != workers-1 {
		t.Fatalf("expected 1 success and %d AlreadyUsed, got %d and %d", workers-1, successes, used)
	}

	var count int64
	f.store.DB().Model(&models.Vote{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one vote row, got %d", count)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("expected exactly one ledger request, got %d", f.queue.Len())
	}
}

func TestRequestKeyRateLimited(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.requestKey(t, "a@x.com")
	}
	_, err := f.svc.RequestKey(ctx, service.RequestKeyInput{Email: "a@x.com", ElectionID: f.election.ID, IPAddress: "10.0.0.1"})
	expectKind(t, err, service.KindRateLimited)
	if f.mail.keyCount() != 5 {
		t.Fatalf("expected 5 mailed keys, got %d", f.mail.keyCount())
	}

	for i := 0; i < 5; i++ {
		f.limiter.Allow("b@x.com", "10.0.0.2")
	}
	_, err = f.svc.RequestKey(ctx, service.RequestKeyInput{Email: "b@x.com", ElectionID: f.election.ID, IPAddress: "10.0.0.2"})
	expectKind(t, err, service.KindRateLimited)

	status, err := f.svc.Status(ctx, "b@x.com", f.election.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.HasKey || status.Status != "none" {
		t.Fatalf("rate limited request must not create a record, got %+v", status)
	}

	f.clock.Advance(16 * time.Minute)
	f.requestKey(t, "a@x.com")
}

func TestRequestKeyErrors(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	tests := []struct {
		name string
		in   service.RequestKeyInput
		kind service.ErrorKind
	}{
		{"empty email", service.RequestKeyInput{ElectionID: f.election.ID}, service.KindValidation},
		{"malformed email", service.RequestKeyInput{Email: "not-an-email", ElectionID: f.election.ID}, service.KindValidation},
		{"missing election", service.RequestKeyInput{Email: "a@x.com"}, service.KindValidation},
		{"unknown email", service.RequestKeyInput{Email: "nobody@x.com", ElectionID: f.election.ID}, service.KindNotFound},
		{"unknown election", service.RequestKeyInput{Email: "a@x.com", ElectionID: 999}, service.KindNotFound},
		{"inactive election", service.RequestKeyInput{Email: "a@x.com", ElectionID: f.upcoming.ID}, service.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestKey(ctx, tt.in)
			expectKind(t, err, tt.kind)
		})
	}

	if f.mail.keyCount() != 0 {
		t.Fatalf("no key should have been mailed")
	}
}

func TestRequestKeyMailFailure(t *testing.T) {
	f := newFixture(t, defaultOptions())
	f.mail.err = errors.New("smtp unavailable")

	_, err := f.svc.RequestKey(context.Background(), service.RequestKeyInput{Email: "a@x.com", ElectionID: f.election.ID})
	expectKind(t, err, service.KindInternal)
	if strings.Contains(service.PublicMessage(err), "smtp") {
		t.Fatalf("internal detail leaked: %s", service.PublicMessage(err))
	}
}

func TestVerifyKeyErrors(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	f.requestKey(t, "a@x.com")
	primaryKey := f.mail.lastKey(t)

	tests := []struct {
		name string
		in   service.VerifyKeyInput
		kind service.ErrorKind
	}{
		{"empty key", service.VerifyKeyInput{ElectionID: f.election.ID}, service.KindValidation},
		{"malformed key", service.VerifyKeyInput{PrimaryKey: "abc123", ElectionID: f.election.ID}, service.KindInvalidKey},
		{"unknown key", service.VerifyKeyInput{PrimaryKey: strings.Repeat("0", 64), ElectionID: f.election.ID}, service.KindInvalidKey},
		{"other election", service.VerifyKeyInput{PrimaryKey: primaryKey, ElectionID: f.election2.ID}, service.KindInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.VerifyKey(ctx, tt.in)
			expectKind(t, err, tt.kind)
		})
	}

	f.verifyKey(t, strings.ToUpper(primaryKey))
	_, err := f.svc.VerifyKey(ctx, service.VerifyKeyInput{PrimaryKey: primaryKey, ElectionID: f.election.ID})
	expectKind(t, err, service.KindInvalidKey)
}

func TestSubmitVoteErrors(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	f.requestKey(t, "a@x.com")
	verified := f.verifyKey(t, f.mail.lastKey(t))

	tests := []struct {
		name string
		in   service.SubmitVoteInput
		kind service.ErrorKind
	}{
		{"missing candidate", service.SubmitVoteInput{ConfirmationKey: verified.ConfirmationKey, ElectionID: f.election.ID}, service.KindValidation},
		{"malformed key", service.SubmitVoteInput{ConfirmationKey: "xyz", ElectionID: f.election.ID, CandidateID: 1}, service.KindInvalidKey},
		{"unknown key", service.SubmitVoteInput{ConfirmationKey: strings.Repeat("1", 64), ElectionID: f.election.ID, CandidateID: 1}, service.KindInvalidKey},
		{"unknown candidate", service.SubmitVoteInput{ConfirmationKey: verified.ConfirmationKey, ElectionID: f.election.ID, CandidateID: 999}, service.KindNotFound},
		{"foreign candidate", service.SubmitVoteInput{ConfirmationKey: verified.ConfirmationKey, ElectionID: f.election.ID, CandidateID: f.election2.Candidates[0].ID}, service.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitVote(ctx, tt.in)
			expectKind(t, err, tt.kind)
		})
	}

	key, err := f.store.FindVotingKey(ctx, f.user.ID, f.election.ID)
	if err != nil {
		t.Fatalf("failed to load voting key: %v", err)
	}
	if key.Status != models.KeyStatusConfirmed {
		t.Fatalf("failed submissions must not change state, got %s", key.Status)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("no vote should have been queued")
	}
}

func TestVerifyVote(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	f.requestKey(t, "a@x.com")
	verified := f.verifyKey(t, f.mail.lastKey(t))

	_, err := f.svc.VerifyVote(ctx, verified.ConfirmationKey, f.election.ID)
	expectKind(t, err, service.KindNotFound)

	submitted, err := f.svc.SubmitVote(ctx, service.SubmitVoteInput{
		ConfirmationKey: verified.ConfirmationKey,
		ElectionID:      f.election.ID,
		CandidateID:     f.election.Candidates[1].ID,
	})
	if err != nil {
		t.Fatalf("submit vote failed: %v", err)
	}

	vote, err := f.svc.VerifyVote(ctx, verified.ConfirmationKey, f.election.ID)
	if err != nil {
		t.Fatalf("verify vote failed: %v", err)
	}
	if vote.VoteID != submitted.VoteID || vote.CandidateID != f.election.Candidates[1].ID {
		t.Fatalf("unexpected vote %+v", vote)
	}
	if vote.VerificationHash != submitted.VerificationHash || vote.LedgerRecorded {
		t.Fatalf("unexpected vote %+v", vote)
	}
	if vote.Status != string(models.KeyStatusCompleted) {
		t.Fatalf("unexpected status %s", vote.Status)
	}
}

func TestStatusAndGetKey(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	status, err := f.svc.Status(ctx, "a@x.com", f.election.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.HasKey || status.Status != "none" {
		t.Fatalf("unexpected status %+v", status)
	}
	_, err = f.svc.GetKey(ctx, "a@x.com", f.election.ID)
	expectKind(t, err, service.KindNotFound)

	f.requestKey(t, "a@x.com")
	primaryKey := f.mail.lastKey(t)

	shown, err := f.svc.GetKey(ctx, "a@x.com", f.election.ID)
	if err != nil {
		t.Fatalf("get key failed: %v", err)
	}
	if shown.PrimaryKey != primaryKey {
		t.Fatalf("expected the mailed key to be shown again")
	}

	f.verifyKey(t, primaryKey)
	status, err = f.svc.Status(ctx, "a@x.com", f.election.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.HasKey || status.Status != string(models.KeyStatusConfirmed) || status.Expired || status.HasVoted {
		t.Fatalf("unexpected status %+v", status)
	}
	_, err = f.svc.GetKey(ctx, "a@x.com", f.election.ID)
	expectKind(t, err, service.KindNotFound)

	_, err = f.svc.Status(ctx, "nobody@x.com", f.election.ID)
	expectKind(t, err, service.KindNotFound)
}

func TestGetKeyDisabled(t *testing.T) {
	opts := defaultOptions()
	opts.AllowKeyRedisplay = false
	f := newFixture(t, opts)

	f.requestKey(t, "a@x.com")
	_, err := f.svc.GetKey(context.Background(), "a@x.com", f.election.ID)
	expectKind(t, err, service.KindNotFound)
}
