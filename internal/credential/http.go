// Copyright (c) 2026 Veriface Labs. All rights reserved.

package credential

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/veriface/veriface/internal/platform/request"
	"github.com/veriface/veriface/internal/platform/respond"
	"github.com/veriface/veriface/internal/platform/validate"
)

// Handler implements the credential HTTP endpoints.
//
// # Scope
//
// Token validation is open to resource servers holding a token; revocation is
// an administrative operation and is mounted behind the API key middleware.
type Handler struct {
	issuer *Issuer
}

// NewHandler constructs a new [Handler] with its issuer dependency.
func NewHandler(issuer *Issuer) *Handler {
	return &Handler{issuer: issuer}
}

// Register attaches the public credential routes.
//
// # Endpoints
//   - POST /credentials/validate : Checks a presented session token.
func (handler *Handler) Register(router chi.Router) {
	router.Post("/credentials/validate", handler.validate)
}

// RegisterAdmin attaches the administrative credential routes. The caller
// places these behind API key authentication.
//
// # Endpoints
//   - POST /credentials/revoke : Invalidates all outstanding sessions of a user.
func (handler *Handler) RegisterAdmin(router chi.Router) {
	router.Post("/credentials/revoke", handler.revoke)
}

// validateRequest represents the JSON payload for token validation.
type validateRequest struct {
	Token string `json:"token"`
}

// validate handles POST /api/v1/credentials/validate requests.
//
// # Returns
//   - Writes HTTP 200 OK with the validation verdict. Expired, invalid, and
//     revoked tokens are verdicts, not HTTP errors: the request itself succeeded.
//   - Writes HTTP 400 Bad Request if the payload is malformed.
func (handler *Handler) validate(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input validateRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	var v validate.Validator
	if err := v.Required("token", input.Token).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	verdict, err := handler.issuer.Validate(request.Context(), input.Token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Presentation Output ────────────────────────────────────────────

	respond.OK(writer, verdict)
}

// revokeRequest represents the JSON payload for session revocation.
type revokeRequest struct {
	UserID string `json:"user_id"`
}

// revoke handles POST /api/v1/credentials/revoke requests.
//
// # Returns
//   - Writes HTTP 204 No Content on success.
//   - Writes HTTP 400 Bad Request if the payload is malformed.
func (handler *Handler) revoke(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input revokeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	var v validate.Validator
	if err := v.Required("user_id", input.UserID).MaxLen("user_id", input.UserID, 255).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	if err := handler.issuer.RevokeAll(request.Context(), input.UserID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Presentation Output ────────────────────────────────────────────

	respond.NoContent(writer)
}
