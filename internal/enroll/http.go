// Copyright (c) 2026 Veriface Labs. All rights reserved.

package enroll

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veriface/veriface/internal/embedding"
	"github.com/veriface/veriface/internal/platform/apperr"
	requestutil "github.com/veriface/veriface/internal/platform/request"
	"github.com/veriface/veriface/internal/platform/respond"
	"github.com/veriface/veriface/internal/platform/validate"
)

// Extractor turns a raw image into an embedding vector plus a quality score.
// Implemented by the extractor HTTP client; nil when no extractor is deployed.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (embedding.Vector, float64, error)
}

// Handler implements the enrollment HTTP endpoints.
type Handler struct {
	service   *Service
	extractor Extractor
}

// NewHandler constructs a new [Handler]. The extractor may be nil; image
// payloads are then refused with 503.
func NewHandler(service *Service, extractor Extractor) *Handler {
	return &Handler{service: service, extractor: extractor}
}

// Register attaches the public enrollment routes.
//
// # Endpoints
//   - POST /enroll                    : Registers a reference template.
//   - GET  /users/{userID}/templates  : Lists a user's active templates.
func (handler *Handler) Register(router chi.Router) {
	router.Post("/enroll", handler.enroll)
	router.Get("/users/{userID}/templates", handler.listTemplates)
}

// RegisterAdmin attaches the administrative enrollment routes. The caller
// places these behind API key authentication.
//
// # Endpoints
//   - DELETE /users/{userID}/templates/{templateID} : Revokes a template.
func (handler *Handler) RegisterAdmin(router chi.Router) {
	router.Delete("/users/{userID}/templates/{templateID}", handler.revokeTemplate)
}

// embeddingPayload is the wire form of a pre-computed embedding.
type embeddingPayload struct {
	Values       []float32 `json:"values"`
	ModelVersion string    `json:"model_version"`
}

// enrollRequest represents the JSON payload for template enrollment.
// Exactly one of Embedding or ImageBase64 must be set.
type enrollRequest struct {
	UserID      string            `json:"user_id"`
	Embedding   *embeddingPayload `json:"embedding,omitempty"`
	Quality     *float64          `json:"quality,omitempty"`
	ImageBase64 string            `json:"image_base64,omitempty"`
}

// enrollResponse wraps the stored template view.
type enrollResponse struct {
	Template View `json:"template"`
	Created  bool `json:"created"`
}

// enroll handles POST /api/v1/enroll requests.
//
// # Returns
//   - Writes HTTP 201 Created with the new template view.
//   - Writes HTTP 200 OK when the capture matched an existing template.
//   - Writes HTTP 400/409/422 for validation, quota, and gate failures.
func (handler *Handler) enroll(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input enrollRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	var v validate.Validator
	v.Required("user_id", input.UserID).MaxLen("user_id", input.UserID, 255)
	v.Custom("embedding", input.Embedding == nil && input.ImageBase64 == "",
		"Either embedding or image_base64 is required")
	v.Custom("embedding", input.Embedding != nil && input.ImageBase64 != "",
		"Provide embedding or image_base64, not both")
	if input.Embedding != nil {
		v.NonEmptySlice("embedding.values", input.Embedding.Values)
		v.Required("embedding.model_version", input.Embedding.ModelVersion)
		v.Custom("quality", input.Quality == nil, "Quality score is required with a raw embedding")
		if input.Quality != nil {
			v.Custom("quality", *input.Quality < 0 || *input.Quality > 1, "Must be between 0 and 1")
		}
	}
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Embedding Resolution ───────────────────────────────────────────

	vector, quality, err := handler.resolveEmbedding(request.Context(), &input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Application Execution ──────────────────────────────────────────

	result, err := handler.service.Enroll(request.Context(), EnrollInput{
		UserID:  input.UserID,
		Vector:  vector,
		Quality: quality,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 5. Presentation Output ────────────────────────────────────────────

	payload := enrollResponse{Template: result.Template.AsView(), Created: result.Created}
	if result.Created {
		respond.Created(writer, payload)
		return
	}
	respond.OK(writer, payload)
}

// resolveEmbedding produces the candidate vector either directly from the
// payload or by running the image through the extractor.
func (handler *Handler) resolveEmbedding(
	ctx context.Context, input *enrollRequest,
) (embedding.Vector, float64, error) {
	if input.Embedding != nil {
		vector := embedding.Vector{
			Values:       input.Embedding.Values,
			ModelVersion: input.Embedding.ModelVersion,
		}
		return vector, *input.Quality, nil
	}

	if handler.extractor == nil {
		return embedding.Vector{}, 0, apperr.ServiceUnavailable("Image enrollment is not available on this deployment")
	}

	image, err := base64.StdEncoding.DecodeString(input.ImageBase64)
	if err != nil {
		return embedding.Vector{}, 0, apperr.ValidationError("Invalid base64 image data")
	}

	return handler.extractor.Extract(ctx, image)
}

// listTemplates handles GET /api/v1/users/{userID}/templates requests.
//
// # Returns
//   - Writes HTTP 200 OK with the user's active template views. Unknown
//     users get an empty list, not a 404.
func (handler *Handler) listTemplates(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "userID")

	var v validate.Validator
	if err := v.Required("userID", userID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	views, err := handler.service.Templates(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"templates": views})
}

// revokeTemplate handles DELETE /api/v1/users/{userID}/templates/{templateID}.
//
// # Returns
//   - Writes HTTP 204 No Content on success.
//   - Writes HTTP 404 Not Found when no active template matches.
func (handler *Handler) revokeTemplate(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "userID")
	templateID := requestutil.Param(request, "templateID")

	var v validate.Validator
	v.Required("userID", userID)
	v.UUID("templateID", templateID)
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Revoke(request.Context(), userID, templateID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
