// Copyright (c) 2026 Veriface Labs. All rights reserved.

package verify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/veriface/internal/credential"
	"github.com/veriface/veriface/internal/enroll"
	"github.com/veriface/veriface/internal/platform/apperr"
	"github.com/veriface/veriface/internal/ratelimit"
	"github.com/veriface/veriface/internal/verify"
)

// stubIssuer mints placeholder tokens and counts issuance.
type stubIssuer struct {
	fail   bool
	issued int
}

func (s *stubIssuer) Issue(_ context.Context, userID, scope string) (*credential.SessionToken, error) {
	if s.fail {
		return nil, errors.New("issuer unavailable")
	}
	s.issued++
	return &credential.SessionToken{Token: "signed-token", Subject: userID, Scope: scope}, nil
}

// stubRecorder captures last-verified bookkeeping calls.
type stubRecorder struct {
	users []string
}

func (s *stubRecorder) RecordVerified(_ context.Context, userID string, _ time.Time) error {
	s.users = append(s.users, userID)
	return nil
}

// slowSource delays template listing past any scoring deadline.
type slowSource struct {
	delay time.Duration
}

func (s slowSource) ListActive(ctx context.Context, _ string) ([]enroll.Template, error) {
	select {
	case <-time.After(s.delay):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// strictBudget counts reservations and refunds. Like the Redis budget, it
// refuses to operate on a dead context.
type strictBudget struct {
	mu       sync.Mutex
	reserved int
	released int
}

func (b *strictBudget) Reserve(ctx context.Context, _, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved++
	return nil
}

func (b *strictBudget) Release(ctx context.Context, _, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released++
	return nil
}

// testHarness bundles the service with its inspectable collaborators.
type testHarness struct {
	service  *verify.Service
	store    *enroll.MemoryStore
	budget   *ratelimit.MemoryBudget
	issuer   *stubIssuer
	recorder *stubRecorder
}

func testVerifyPolicy() verify.Policy {
	return verify.Policy{
		EmbeddingDim:             4,
		SupportedModels:          []string{testModel},
		Thresholds:               testThresholds(),
		ScoringTimeout:           time.Second,
		InconclusiveCostsAttempt: false,
		TokenScope:               "session",
	}
}

func newHarness(policy verify.Policy, maxAttempts int) *testHarness {
	harness := &testHarness{
		store:    enroll.NewMemoryStore(),
		budget:   ratelimit.NewMemoryBudget(ratelimit.Policy{Window: time.Minute, MaxAttempts: maxAttempts}),
		issuer:   &stubIssuer{},
		recorder: &stubRecorder{},
	}
	harness.service = verify.NewService(
		harness.store,
		harness.budget,
		ratelimit.NewMemoryReplayGuard(time.Minute),
		harness.issuer,
		verify.PassthroughLiveness{},
		harness.recorder,
		policy,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return harness
}

// enrollTemplate seeds one normalized template directly into the store.
func (h *testHarness) enrollTemplate(t *testing.T, userID string, values ...float32) {
	t.Helper()
	template := enroll.Template{
		ID:        "tpl-" + userID,
		UserID:    userID,
		Vector:    vec(values...).Normalize(),
		Quality:   0.9,
		CreatedAt: time.Now(),
	}
	require.NoError(t, h.store.Put(context.Background(), &template, 10))
}

// remainingAttempts counts how many reservations the budget still grants.
func (h *testHarness) remainingAttempts(t *testing.T, userID, source string) int {
	t.Helper()
	granted := 0
	for h.budget.Reserve(context.Background(), userID, source) == nil {
		granted++
	}
	return granted
}

func probeInput(nonce string, values ...float32) verify.VerifyInput {
	return verify.VerifyInput{
		UserID: "alice",
		Source: "mobile",
		Probe:  verify.Probe{Vector: vec(values...), Nonce: nonce},
	}
}

/*
TestService_Verify_Accepted verifies the happy path: a probe scoring above
the accept threshold yields a session token for the claimed subject.
*/
func TestService_Verify_Accepted(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 5)
	harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

	// cos = 0.92 against the enrolled direction.
	result, err := harness.service.Verify(ctx, probeInput("nonce-accept-0001", 0.92, 0.3919184, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, verify.OutcomeAccepted, result.Outcome)
	require.NotNil(t, result.Token)
	assert.Equal(t, "alice", result.Token.Subject)
	assert.Equal(t, "session", result.Token.Scope)
	assert.Equal(t, 1, harness.issuer.issued)
	assert.Equal(t, []string{"alice"}, harness.recorder.users)

	// Acceptance consumed one of the five slots.
	assert.Equal(t, 4, harness.remainingAttempts(t, "alice", "mobile"))
}

/*
TestService_Verify_Rejected verifies a dissimilar probe is rejected and the
attempt slot stays consumed.
*/
func TestService_Verify_Rejected(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 5)
	harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

	_, err := harness.service.Verify(ctx, probeInput("nonce-reject-0001", 0, 1, 0, 0))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeRejected))
	assert.Zero(t, harness.issuer.issued)

	assert.Equal(t, 4, harness.remainingAttempts(t, "alice", "mobile"))
}

/*
TestService_Verify_UnenrolledUser verifies a user without templates gets the
same rejection as a failed match.
*/
func TestService_Verify_UnenrolledUser(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 5)

	_, err := harness.service.Verify(ctx, probeInput("nonce-ghost-00001", 1, 0, 0, 0))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeRejected))
}

/*
TestService_Verify_InconclusiveReleasesSlot verifies the middle band returns
the slot under the default no-penalty policy and consumes it when the policy
flag is set.
*/
func TestService_Verify_InconclusiveReleasesSlot(t *testing.T) {
	ctx := context.Background()

	// cos = 0.6: between reject (0.40) and accept (0.85).
	inconclusiveProbe := func(nonce string) verify.VerifyInput {
		return probeInput(nonce, 0.6, 0.8, 0, 0)
	}

	t.Run("no penalty by default", func(t *testing.T) {
		harness := newHarness(testVerifyPolicy(), 5)
		harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

		_, err := harness.service.Verify(ctx, inconclusiveProbe("nonce-inconc-0001"))
		require.Error(t, err)
		assert.True(t, apperr.HasCode(err, apperr.CodeInconclusive))

		assert.Equal(t, 5, harness.remainingAttempts(t, "alice", "mobile"))
	})

	t.Run("penalty when configured", func(t *testing.T) {
		policy := testVerifyPolicy()
		policy.InconclusiveCostsAttempt = true
		harness := newHarness(policy, 5)
		harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

		_, err := harness.service.Verify(ctx, inconclusiveProbe("nonce-inconc-0002"))
		require.Error(t, err)
		assert.True(t, apperr.HasCode(err, apperr.CodeInconclusive))

		assert.Equal(t, 4, harness.remainingAttempts(t, "alice", "mobile"))
	})
}

/*
TestService_Verify_MalformedProbe verifies shape and model defects refuse the
attempt before scoring.
*/
func TestService_Verify_MalformedProbe(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 5)
	harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

	// Wrong dimension.
	_, err := harness.service.Verify(ctx, probeInput("nonce-malformed-01", 1, 0))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeMalformedProbe))

	// Wrong model version.
	input := probeInput("nonce-malformed-02", 1, 0, 0, 0)
	input.Probe.Vector.ModelVersion = "other-model"
	_, err = harness.service.Verify(ctx, input)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeMalformedProbe))
}

/*
TestService_Verify_ReplayedNonce verifies a reused nonce is refused even when
the probe itself would match.
*/
func TestService_Verify_ReplayedNonce(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 5)
	harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

	_, err := harness.service.Verify(ctx, probeInput("nonce-replay-00001", 1, 0, 0, 0))
	require.NoError(t, err)

	_, err = harness.service.Verify(ctx, probeInput("nonce-replay-00001", 1, 0, 0, 0))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeReplayedProbe))
	assert.Equal(t, 1, harness.issuer.issued)
}

/*
TestService_Verify_RateLimited verifies the attempt budget refuses further
attempts once exhausted, regardless of probe content.
*/
func TestService_Verify_RateLimited(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 2)
	harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

	_, err := harness.service.Verify(ctx, probeInput("nonce-budget-00001", 0, 1, 0, 0))
	require.Error(t, err)
	_, err = harness.service.Verify(ctx, probeInput("nonce-budget-00002", 0, 1, 0, 0))
	require.Error(t, err)

	// Budget exhausted: even a perfect probe is refused without scoring.
	_, err = harness.service.Verify(ctx, probeInput("nonce-budget-00003", 1, 0, 0, 0))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeRateLimited))
	assert.Zero(t, harness.issuer.issued)
}

/*
TestService_Verify_ScoringTimeout verifies a deadline miss reports TimedOut
and keeps the slot consumed.
*/
func TestService_Verify_ScoringTimeout(t *testing.T) {
	ctx := context.Background()

	policy := testVerifyPolicy()
	policy.ScoringTimeout = 20 * time.Millisecond

	harness := newHarness(policy, 5)
	slow := verify.NewService(
		slowSource{delay: time.Second},
		harness.budget,
		ratelimit.NewMemoryReplayGuard(time.Minute),
		harness.issuer,
		verify.PassthroughLiveness{},
		nil,
		policy,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := slow.Verify(ctx, probeInput("nonce-timeout-0001", 1, 0, 0, 0))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeTimedOut))

	assert.Equal(t, 4, harness.remainingAttempts(t, "alice", "mobile"))
}

/*
TestService_Verify_CancellationReleasesSlot verifies a caller that goes away
mid-scoring gets its reserved slot back even though its own context is already
dead when the refund is written.
*/
func TestService_Verify_CancellationReleasesSlot(t *testing.T) {
	budget := &strictBudget{}
	service := verify.NewService(
		slowSource{delay: 2 * time.Second},
		budget,
		ratelimit.NewMemoryReplayGuard(time.Minute),
		&stubIssuer{},
		verify.PassthroughLiveness{},
		nil,
		testVerifyPolicy(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := service.Verify(ctx, probeInput("nonce-cancel-00001", 1, 0, 0, 0))
	require.ErrorIs(t, err, context.Canceled)

	budget.mu.Lock()
	defer budget.mu.Unlock()
	assert.Equal(t, 1, budget.reserved)
	assert.Equal(t, 1, budget.released)
}

/*
TestService_Verify_IssuerFailureReleasesSlot verifies a matched attempt that
cannot mint a credential returns the slot.
*/
func TestService_Verify_IssuerFailureReleasesSlot(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 5)
	harness.enrollTemplate(t, "alice", 1, 0, 0, 0)
	harness.issuer.fail = true

	_, err := harness.service.Verify(ctx, probeInput("nonce-issuer-00001", 1, 0, 0, 0))
	require.Error(t, err)
	assert.False(t, apperr.HasCode(err, apperr.CodeRejected))

	assert.Equal(t, 5, harness.remainingAttempts(t, "alice", "mobile"))
}

/*
TestService_Verify_UniformCollapse verifies the wire-level collapse: distinct
internal refusals become byte-identical responses, while Inconclusive keeps
its retry signal.
*/
func TestService_Verify_UniformCollapse(t *testing.T) {
	ctx := context.Background()
	harness := newHarness(testVerifyPolicy(), 1)
	harness.enrollTemplate(t, "alice", 1, 0, 0, 0)

	_, rejectedErr := harness.service.Verify(ctx, probeInput("nonce-uniform-0001", 0, 1, 0, 0))
	require.Error(t, rejectedErr)
	_, limitedErr := harness.service.Verify(ctx, probeInput("nonce-uniform-0002", 0, 1, 0, 0))
	require.Error(t, limitedErr)

	rejected := apperr.As(apperr.Uniform(rejectedErr))
	limited := apperr.As(apperr.Uniform(limitedErr))
	require.NotNil(t, rejected)
	require.NotNil(t, limited)

	assert.Equal(t, rejected.Code, limited.Code)
	assert.Equal(t, rejected.Message, limited.Message)
	assert.Equal(t, rejected.HTTPStatus, limited.HTTPStatus)

	inconclusive := apperr.Uniform(apperr.Inconclusive())
	assert.True(t, apperr.HasCode(inconclusive, apperr.CodeInconclusive))
}
