// Copyright (c) 2026 Veriface Labs. All rights reserved.

package enroll

import (
	"context"
	"log/slog"
	"time"

	"github.com/veriface/veriface/internal/embedding"
	"github.com/veriface/veriface/internal/platform/apperr"
	"github.com/veriface/veriface/pkg/ident"
	"github.com/veriface/veriface/pkg/uuid"
)

// # Policy

// Policy holds the enrollment decision parameters for a deployment.
type Policy struct {
	// EmbeddingDim is the required vector dimension.
	EmbeddingDim int
	// SupportedModels lists the accepted embedding model versions.
	SupportedModels []string
	// MaxTemplates is the active-template quota per user.
	MaxTemplates int
	// QualityThreshold is the minimum capture quality, in [0, 1].
	QualityThreshold float64
	// DuplicateThreshold is the cosine similarity at or above which a new
	// capture is treated as a re-submission of an existing template.
	DuplicateThreshold float64
}

// # Service

// Service implements the enrollment use cases on top of a [Store].
type Service struct {
	store  Store
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs an enrollment [Service].
func NewService(store Store, policy Policy, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// EnrollInput carries a validated enrollment request into the service.
type EnrollInput struct {
	UserID  string
	Vector  embedding.Vector
	Quality float64
}

// EnrollResult reports the outcome of an enrollment.
type EnrollResult struct {
	Template Template
	// Created is false when the capture matched an existing template and the
	// stored one was returned instead.
	Created bool
}

/*
Enroll registers a reference template for a user.

Description: Applies the gates in order. Model contract first: an embedding
with the wrong dimension or model version can never become a template. Then
the quality gate, then duplicate detection against the user's active
templates, and finally the quota, enforced atomically by the store.

Parameters:
  - ctx: context.Context
  - input: User ID, embedding vector, and capture quality

Returns:
  - *EnrollResult: The stored (or matched existing) template
  - error: [apperr.IncompatibleModel], [apperr.PoorQuality], or
    [apperr.QuotaExceeded]
*/
func (service *Service) Enroll(ctx context.Context, input EnrollInput) (*EnrollResult, error) {
	userID := ident.Normalize(input.UserID)

	// ── 1. Model Contract ─────────────────────────────────────────────────

	if err := input.Vector.Validate(service.policy.EmbeddingDim, service.policy.SupportedModels); err != nil {
		return nil, apperr.IncompatibleModel(err)
	}

	// ── 2. Quality Gate ───────────────────────────────────────────────────

	if input.Quality < service.policy.QualityThreshold {
		service.logger.InfoContext(ctx, "enrollment_rejected_quality",
			slog.String("user_id", userID),
			slog.Float64("quality", input.Quality),
		)
		return nil, apperr.PoorQuality()
	}

	candidate := input.Vector.Normalize()

	// ── 3. Duplicate Detection ────────────────────────────────────────────

	// A near-identical capture (retried request, double tap) returns the
	// existing template so the quota is not consumed twice. This check runs
	// before the quota so retries stay idempotent even for users at quota.
	existing, err := service.store.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, template := range existing {
		if embedding.Cosine(candidate, template.Vector) >= service.policy.DuplicateThreshold {
			service.logger.InfoContext(ctx, "enrollment_duplicate_matched",
				slog.String("user_id", userID),
				slog.String("template_id", template.ID),
			)
			return &EnrollResult{Template: template, Created: false}, nil
		}
	}

	// ── 4. Persistence Under Quota ────────────────────────────────────────

	template := Template{
		ID:        uuid.New(),
		UserID:    userID,
		Vector:    candidate,
		Quality:   input.Quality,
		CreatedAt: service.now(),
	}

	if err := service.store.Put(ctx, &template, service.policy.MaxTemplates); err != nil {
		return nil, err
	}

	service.logger.InfoContext(ctx, "template_enrolled",
		slog.String("user_id", userID),
		slog.String("template_id", template.ID),
		slog.Int("active_before", len(existing)),
	)

	return &EnrollResult{Template: template, Created: true}, nil
}

/*
Templates lists a user's active templates as client-safe views.

Parameters:
  - ctx: context.Context
  - userID: User identifier (normalized internally)

Returns:
  - []View: Active templates, oldest first; empty for unknown users
  - error: Storage failures
*/
func (service *Service) Templates(ctx context.Context, userID string) ([]View, error) {
	templates, err := service.store.ListActive(ctx, ident.Normalize(userID))
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(templates))
	for _, template := range templates {
		views = append(views, template.AsView())
	}
	return views, nil
}

/*
Revoke soft-deletes one template, freeing a quota slot.

Parameters:
  - ctx: context.Context
  - userID: Owner identifier (normalized internally)
  - templateID: Template to revoke

Returns:
  - error: [apperr.NotFound] when no active template matches
*/
func (service *Service) Revoke(ctx context.Context, userID, templateID string) error {
	normalized := ident.Normalize(userID)

	if err := service.store.Revoke(ctx, normalized, templateID); err != nil {
		return err
	}

	service.logger.InfoContext(ctx, "template_revoked",
		slog.String("user_id", normalized),
		slog.String("template_id", templateID),
	)
	return nil
}
