// Copyright (c) 2026 Veriface Labs. All rights reserved.

package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/veriface/veriface/internal/credential"
	"github.com/veriface/veriface/internal/embedding"
	"github.com/veriface/veriface/internal/enroll"
	"github.com/veriface/veriface/internal/platform/apperr"
	"github.com/veriface/veriface/internal/ratelimit"
	"github.com/veriface/veriface/pkg/ident"
)

// # Collaborator Contracts

// TemplateSource provides the reference templates for scoring.
// Satisfied by [enroll.PostgresStore] and [enroll.MemoryStore].
type TemplateSource interface {
	ListActive(ctx context.Context, userID string) ([]enroll.Template, error)
}

// CredentialIssuer mints the session token for an accepted verification.
// Satisfied by [credential.Issuer].
type CredentialIssuer interface {
	Issue(ctx context.Context, userID, scope string) (*credential.SessionToken, error)
}

// SuccessRecorder persists last-verified bookkeeping. Best-effort: recording
// failures are logged, never surfaced, and never change the outcome.
type SuccessRecorder interface {
	RecordVerified(ctx context.Context, userID string, at time.Time) error
}

// # Policy

// Policy holds the verification decision parameters for a deployment.
type Policy struct {
	// EmbeddingDim is the required probe dimension.
	EmbeddingDim int
	// SupportedModels lists the accepted embedding model versions.
	SupportedModels []string
	// Thresholds are the accept/reject cut points.
	Thresholds Thresholds
	// ScoringTimeout bounds the template fetch plus matching step.
	ScoringTimeout time.Duration
	// InconclusiveCostsAttempt controls whether an Inconclusive outcome
	// consumes a slot from the attempt budget like a Reject does.
	InconclusiveCostsAttempt bool
	// TokenScope is the scope claim minted into accepted sessions.
	TokenScope string
}

// # Inputs and Outputs

// Probe is the presented evidence for one verification attempt.
type Probe struct {
	// Vector is the probe embedding.
	Vector embedding.Vector
	// Nonce is the client-generated single-use value guarding against
	// replay of a captured probe payload.
	Nonce string
}

// VerifyInput carries a validated verification request into the service.
type VerifyInput struct {
	UserID string
	Source string
	Probe  Probe
}

// VerifyResult is returned only for accepted verifications.
type VerifyResult struct {
	Outcome Outcome
	Token   *credential.SessionToken
}

// # Service

// Service orchestrates the verification flow.
type Service struct {
	templates TemplateSource
	budget    ratelimit.Budget
	replay    ratelimit.ReplayGuard
	issuer    CredentialIssuer
	liveness  LivenessPolicy
	activity  SuccessRecorder
	policy    Policy
	logger    *slog.Logger
}

// NewService constructs a verification [Service]. The activity recorder may
// be nil to disable last-verified bookkeeping.
func NewService(
	templates TemplateSource,
	budget ratelimit.Budget,
	replay ratelimit.ReplayGuard,
	issuer CredentialIssuer,
	liveness LivenessPolicy,
	activity SuccessRecorder,
	policy Policy,
	logger *slog.Logger,
) *Service {
	return &Service{
		templates: templates,
		budget:    budget,
		replay:    replay,
		issuer:    issuer,
		liveness:  liveness,
		activity:  activity,
		policy:    policy,
		logger:    logger,
	}
}

/*
Verify runs one verification attempt end to end.

Description: Admission first (attempt budget), then probe checks (shape,
replay, liveness), then scoring under a hard deadline, then the decision.
Every admitted attempt consumes a budget slot; the slot is returned only for
an Inconclusive outcome under the no-penalty policy, for caller cancellation,
and for internal faults that are not the caller's doing.

The returned errors carry internal codes. The HTTP layer passes them through
[apperr.Uniform] so all negative outcomes except Inconclusive are
indistinguishable on the wire.

Parameters:
  - ctx: context.Context; cancellation before a decision returns the slot
  - input: Claimed identity, source channel, and probe

Returns:
  - *VerifyResult: Outcome plus session token, on acceptance only
  - error: [apperr.RateLimited], [apperr.MalformedProbe],
    [apperr.ReplayedProbe], [apperr.TimedOut], [apperr.Inconclusive],
    [apperr.Rejected], or internal failures
*/
func (service *Service) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	userID := ident.Normalize(input.UserID)
	session := NewSession(userID, input.Source)
	defer session.Close() //nolint:errcheck // close of a live session cannot fail

	// ── 1. Admission: Attempt Budget ──────────────────────────────────────

	// Reserve is the linearization point: concurrent attempts race on the
	// counter, not on a read-then-write pair.
	if err := service.budget.Reserve(ctx, userID, input.Source); err != nil {
		service.audit(ctx, session, "refused_rate_limited", -1)
		return nil, err
	}

	if err := session.AwaitProbe(); err != nil {
		return nil, err
	}

	// ── 2. Probe Checks ───────────────────────────────────────────────────

	if err := input.Probe.Vector.Validate(service.policy.EmbeddingDim, service.policy.SupportedModels); err != nil {
		service.audit(ctx, session, "refused_malformed_probe", -1)
		return nil, apperr.MalformedProbe(err)
	}

	if err := service.replay.CheckNonce(ctx, input.Probe.Nonce); err != nil {
		service.audit(ctx, session, "refused_replayed_probe", -1)
		return nil, err
	}

	if err := service.liveness.Check(ctx, input.Probe); err != nil {
		service.audit(ctx, session, "refused_liveness", -1)
		return nil, err
	}

	// ── 3. Scoring Under Deadline ─────────────────────────────────────────

	if err := session.StartScoring(); err != nil {
		return nil, err
	}

	decision, err := service.score(ctx, userID, input.Probe.Vector)
	if err != nil {
		// Caller cancellation and internal faults return the slot; a
		// deadline miss does not, otherwise slow-scoring probes would be
		// free to retry without bound.
		if !apperr.HasCode(err, apperr.CodeTimedOut) {
			service.release(ctx, userID, input.Source)
		}
		service.audit(ctx, session, "scoring_failed", -1)
		return nil, err
	}

	if err := session.Decide(decision); err != nil {
		return nil, err
	}

	// ── 4. Decision ───────────────────────────────────────────────────────

	switch decision.Outcome {
	case OutcomeAccepted:
		return service.accept(ctx, session, userID)

	case OutcomeInconclusive:
		if !service.policy.InconclusiveCostsAttempt {
			service.release(ctx, userID, input.Source)
		}
		service.audit(ctx, session, "inconclusive", decision.Score)
		return nil, apperr.Inconclusive()

	default:
		service.audit(ctx, session, "rejected", decision.Score)
		return nil, apperr.Rejected()
	}
}

// score fetches templates and matches the probe under the scoring deadline.
func (service *Service) score(ctx context.Context, userID string, probe embedding.Vector) (Decision, error) {
	scoringCtx, cancel := context.WithTimeout(ctx, service.policy.ScoringTimeout)
	defer cancel()

	type scoringResult struct {
		decision Decision
		err      error
	}

	// Buffered so the worker never leaks when the deadline wins the select.
	results := make(chan scoringResult, 1)

	go func() {
		templates, err := service.templates.ListActive(scoringCtx, userID)
		if err != nil {
			results <- scoringResult{err: err}
			return
		}
		results <- scoringResult{decision: Match(probe, templates, service.policy.Thresholds)}
	}()

	select {
	case result := <-results:
		return result.decision, result.err
	case <-scoringCtx.Done():
		if ctx.Err() != nil {
			// The caller went away, not the deadline.
			return Decision{}, ctx.Err()
		}
		return Decision{}, apperr.TimedOut(scoringCtx.Err())
	}
}

// accept mints the session credential and records bookkeeping.
func (service *Service) accept(ctx context.Context, session *Session, userID string) (*VerifyResult, error) {
	token, err := service.issuer.Issue(ctx, userID, service.policy.TokenScope)
	if err != nil {
		// Matching succeeded but no credential was delivered; returning the
		// slot keeps an issuer outage from draining the user's budget.
		service.release(ctx, userID, session.Source)
		return nil, err
	}

	if service.activity != nil {
		if err := service.activity.RecordVerified(ctx, userID, time.Now()); err != nil {
			service.logger.WarnContext(ctx, "verify_activity_record_failed",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	service.audit(ctx, session, "accepted", session.Decision().Score)

	return &VerifyResult{Outcome: OutcomeAccepted, Token: token}, nil
}

// release returns a budget slot, logging (not surfacing) failures. The refund
// must reach the store even when the attempt ended because ctx itself died.
func (service *Service) release(ctx context.Context, userID, source string) {
	ctx = context.WithoutCancel(ctx)
	if err := service.budget.Release(ctx, userID, source); err != nil {
		service.logger.WarnContext(ctx, "verify_budget_release_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// audit writes the internal outcome record. Scores appear here and nowhere
// else; no transport payload ever includes them.
func (service *Service) audit(ctx context.Context, session *Session, event string, score float64) {
	service.logger.InfoContext(ctx, "verification_"+event,
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
		slog.String("source", session.Source),
		slog.String("state", string(session.State())),
		slog.Float64("score", score),
		slog.Duration("elapsed", time.Since(session.StartedAt)),
	)
}
