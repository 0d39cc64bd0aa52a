// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package enroll manages the face template lifecycle: registration, listing,
and revocation of the reference embeddings a user verifies against.

# Invariants

  - A user never holds more than the configured maximum of active templates;
    the store enforces the quota atomically under concurrent enrollment.
  - Every stored template passed the quality gate and the model contract at
    enrollment time, so verification can assume template validity.
  - Stored vectors are L2-normalized before persistence.
  - Re-enrolling a near-identical capture is idempotent: the existing
    template is returned instead of burning a quota slot.
*/
package enroll

import (
	"context"
	"time"

	"github.com/veriface/veriface/internal/embedding"
)

// # Entities

// Template is a stored reference embedding for one user.
type Template struct {
	// ID is the UUIDv7 template identifier.
	ID string `json:"id"`
	// UserID is the normalized owner identifier.
	UserID string `json:"user_id"`
	// Vector is the L2-normalized reference embedding.
	Vector embedding.Vector `json:"-"`
	// Quality is the capture quality score recorded at enrollment, in [0, 1].
	Quality float64 `json:"quality"`
	// CreatedAt is the enrollment instant.
	CreatedAt time.Time `json:"created_at"`
}

// View is the client-facing projection of a template.
//
// The raw embedding never leaves the service: a leaked reference vector is a
// permanent biometric credential, unlike a password it cannot be rotated.
type View struct {
	ID           string    `json:"id"`
	ModelVersion string    `json:"model_version"`
	Quality      float64   `json:"quality"`
	CreatedAt    time.Time `json:"created_at"`
}

// AsView strips the vector from a template for API output.
func (t Template) AsView() View {
	return View{
		ID:           t.ID,
		ModelVersion: t.Vector.ModelVersion,
		Quality:      t.Quality,
		CreatedAt:    t.CreatedAt,
	}
}

// # Data Access

// Store persists templates. Implementations must enforce the active-template
// quota inside Put so concurrent enrollments cannot overshoot it.
type Store interface {

	/*
		Put persists a new template if the user is below the quota.

		Parameters:
		  - ctx: context.Context
		  - template: Fully populated template (ID, vector, quality, timestamps)
		  - maxActive: Active-template quota to enforce atomically

		Returns:
		  - error: [apperr.QuotaExceeded] at quota, or persistence failures
	*/
	Put(ctx context.Context, template *Template, maxActive int) error

	/*
		ListActive returns the user's active templates, oldest first.

		Returns an empty slice (not an error) for unknown users: whether a
		user exists must not be observable through enrollment reads.
	*/
	ListActive(ctx context.Context, userID string) ([]Template, error)

	/*
		Revoke soft-deletes one template.

		Returns:
		  - error: [apperr.NotFound] when no active template matches
	*/
	Revoke(ctx context.Context, userID, templateID string) error

	// CountActive returns the number of active templates for a user.
	CountActive(ctx context.Context, userID string) (int, error)
}
