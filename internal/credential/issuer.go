// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package credential implements session token issuance, validation, and revocation.

A successful verification mints an RS256-signed JWT whose signature covers the
subject, issuance time, expiry, unique token ID (jti), and scope. Validation
checks signature, expiry, and the per-user revocation watermark.

# Revocation Model

Rather than tracking individual token IDs, each user has a "valid-since"
watermark: any token issued before the watermark is Revoked. RevokeAll moves
the watermark to now, killing every outstanding session with a single write.
The threat model is "revoke all of a user's sessions", so selective per-token
revocation is not needed.

Tokens authenticate a session, never a verification attempt: nothing in a
token can be fed back into verify() to shortcut matching.
*/
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veriface/veriface/internal/platform/sec"
	"github.com/veriface/veriface/pkg/ident"
	"github.com/veriface/veriface/pkg/uuid"
)

// # Validation Statuses

// Status is the outcome of validating a session token.
type Status string

const (
	StatusValid   Status = "valid"
	StatusExpired Status = "expired"
	StatusInvalid Status = "invalid"
	StatusRevoked Status = "revoked"
)

// # Entities

// SessionToken is the issued credential returned to the transport layer.
type SessionToken struct {
	// Token is the signed compact JWT string.
	Token string `json:"token"`
	// TokenID is the unique jti claim, for audit correlation.
	TokenID string `json:"token_id"`
	// Subject is the verified user identifier.
	Subject string `json:"subject"`
	// Scope names what the session authorizes.
	Scope string `json:"scope"`
	// IssuedAt is the issuance instant.
	IssuedAt time.Time `json:"issued_at"`
	// ExpiresAt is the hard expiry instant.
	ExpiresAt time.Time `json:"expires_at"`
}

// Validation is the result of checking a presented token.
type Validation struct {
	Status  Status `json:"status"`
	Subject string `json:"subject,omitempty"`
	Scope   string `json:"scope,omitempty"`
}

// # Watermark Data Access

// WatermarkStore persists the per-user revocation watermark.
type WatermarkStore interface {

	/*
		SetValidSince records the instant before which all of the user's
		tokens are considered revoked.

		Parameters:
		  - ctx: context.Context
		  - userID: Normalized user identifier
		  - at: Watermark instant

		Returns:
		  - error: Persistence failures
	*/
	SetValidSince(ctx context.Context, userID string, at time.Time) error

	/*
		ValidSince returns the user's revocation watermark.

		Parameters:
		  - ctx: context.Context
		  - userID: Normalized user identifier

		Returns:
		  - time.Time: Zero value when no revocation has ever occurred
		  - error: Retrieval failures
	*/
	ValidSince(ctx context.Context, userID string) (time.Time, error)
}

// # Issuer

// Issuer mints and validates session tokens.
type Issuer struct {
	tokens     *sec.TokenService
	watermarks WatermarkStore
	timeToLive time.Duration
	now        func() time.Time
}

// NewIssuer constructs an [Issuer] with its signing and revocation dependencies.
func NewIssuer(tokens *sec.TokenService, watermarks WatermarkStore, timeToLive time.Duration) *Issuer {
	return &Issuer{
		tokens:     tokens,
		watermarks: watermarks,
		timeToLive: timeToLive,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (issuer *Issuer) WithClock(now func() time.Time) *Issuer {
	issuer.now = now
	return issuer
}

/*
Issue mints a signed session token for a freshly verified user.

Description: Generates a UUIDv7 token ID, stamps issuance and expiry, and
signs the full claim set so no field can be tampered with.

Parameters:
  - ctx: context.Context
  - userID: Verified user identifier
  - scope: Session scope (e.g. constants.ScopeSession)

Returns:
  - *SessionToken: Transport-ready credential
  - error: Signing failures
*/
func (issuer *Issuer) Issue(_ context.Context, userID, scope string) (*SessionToken, error) {
	subject := ident.Normalize(userID)
	tokenID := uuid.New()
	issuedAt := issuer.now()

	signed, err := issuer.tokens.Sign(subject, tokenID, scope, issuedAt, issuer.timeToLive)
	if err != nil {
		return nil, fmt.Errorf("credential_issue_failed: %w", err)
	}

	return &SessionToken{
		Token:     signed,
		TokenID:   tokenID,
		Subject:   subject,
		Scope:     scope,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(issuer.timeToLive),
	}, nil
}

/*
Validate checks a presented token string.

Description: Verifies the RS256 signature and expiry, then compares the
token's issuance instant against the subject's revocation watermark.

Parameters:
  - ctx: context.Context
  - tokenString: Compact JWT as presented by the caller

Returns:
  - Validation: Valid (with subject and scope), Expired, Invalid, or Revoked
  - error: Watermark storage failures only; never a validation outcome
*/
func (issuer *Issuer) Validate(ctx context.Context, tokenString string) (Validation, error) {
	claims, err := issuer.tokens.Verify(tokenString)
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return Validation{Status: StatusExpired}, nil
		}
		return Validation{Status: StatusInvalid}, nil
	}

	watermark, err := issuer.watermarks.ValidSince(ctx, claims.Subject)
	if err != nil {
		return Validation{}, fmt.Errorf("credential_watermark_lookup_failed: %w", err)
	}

	if !watermark.IsZero() && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(watermark) {
		return Validation{Status: StatusRevoked}, nil
	}

	return Validation{
		Status:  StatusValid,
		Subject: claims.Subject,
		Scope:   claims.Scope,
	}, nil
}

/*
RevokeAll invalidates every outstanding session of a user.

Description: Moves the user's valid-since watermark to now. Tokens issued at
or after this instant remain valid; everything older reports Revoked.

Parameters:
  - ctx: context.Context
  - userID: User identifier (normalized internally)

Returns:
  - error: Persistence failures
*/
func (issuer *Issuer) RevokeAll(ctx context.Context, userID string) error {
	subject := ident.Normalize(userID)
	if err := issuer.watermarks.SetValidSince(ctx, subject, issuer.now()); err != nil {
		return fmt.Errorf("credential_revoke_all_failed: %w", err)
	}
	return nil
}
