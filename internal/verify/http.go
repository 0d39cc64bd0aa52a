// Copyright (c) 2026 Veriface Labs. All rights reserved.

package verify

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veriface/veriface/internal/embedding"
	"github.com/veriface/veriface/internal/enroll"
	"github.com/veriface/veriface/internal/platform/apperr"
	requestutil "github.com/veriface/veriface/internal/platform/request"
	"github.com/veriface/veriface/internal/platform/respond"
	"github.com/veriface/veriface/internal/platform/validate"
)

// Handler implements the verification HTTP endpoint.
//
// # Uniform Responses
//
// Every negative outcome except Inconclusive leaves this handler as the same
// 401 VERIFICATION_FAILED payload. The distinct internal codes exist for
// audit logs and tests, never for the wire.
type Handler struct {
	service   *Service
	extractor enroll.Extractor
}

// NewHandler constructs a new [Handler]. The extractor may be nil; image
// payloads are then refused with 503.
func NewHandler(service *Service, extractor enroll.Extractor) *Handler {
	return &Handler{service: service, extractor: extractor}
}

// Register attaches the verification routes.
//
// # Endpoints
//   - POST /verify : Runs one verification attempt.
func (handler *Handler) Register(router chi.Router) {
	router.Post("/verify", handler.verify)
}

// verifyRequest represents the JSON payload for a verification attempt.
// Exactly one of Embedding or ImageBase64 must be set.
type verifyRequest struct {
	UserID      string            `json:"user_id"`
	Source      string            `json:"source"`
	Nonce       string            `json:"nonce"`
	Embedding   *embeddingPayload `json:"embedding,omitempty"`
	ImageBase64 string            `json:"image_base64,omitempty"`
}

// embeddingPayload is the wire form of a probe embedding.
type embeddingPayload struct {
	Values       []float32 `json:"values"`
	ModelVersion string    `json:"model_version"`
}

// verifyResponse is the positive-outcome payload.
type verifyResponse struct {
	Outcome string `json:"outcome"`
	Token   any    `json:"token"`
}

// verify handles POST /api/v1/verify requests.
//
// # Returns
//   - Writes HTTP 200 OK with the session token on acceptance.
//   - Writes HTTP 401 VERIFICATION_INCONCLUSIVE when a retry is worthwhile.
//   - Writes HTTP 401 VERIFICATION_FAILED for every other negative outcome.
func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input verifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	// Structural defects (missing fields) are ordinary validation errors;
	// only attempts that name a user and probe enter the uniform regime.
	var v validate.Validator
	v.Required("user_id", input.UserID).MaxLen("user_id", input.UserID, 255)
	v.Required("source", input.Source).MaxLen("source", input.Source, 64)
	v.Required("nonce", input.Nonce).MinLen("nonce", input.Nonce, 16).MaxLen("nonce", input.Nonce, 128)
	v.Custom("embedding", input.Embedding == nil && input.ImageBase64 == "",
		"Either embedding or image_base64 is required")
	v.Custom("embedding", input.Embedding != nil && input.ImageBase64 != "",
		"Provide embedding or image_base64, not both")
	if input.Embedding != nil {
		v.NonEmptySlice("embedding.values", input.Embedding.Values)
		v.Required("embedding.model_version", input.Embedding.ModelVersion)
	}
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Probe Resolution ───────────────────────────────────────────────

	vector, err := handler.resolveProbe(request, &input)
	if err != nil {
		respond.Error(writer, request, apperr.Uniform(err))
		return
	}

	// ── 4. Application Execution ──────────────────────────────────────────

	result, err := handler.service.Verify(request.Context(), VerifyInput{
		UserID: input.UserID,
		Source: input.Source,
		Probe:  Probe{Vector: vector, Nonce: input.Nonce},
	})
	if err != nil {
		// The collapse point: internal codes become the uniform response.
		respond.Error(writer, request, apperr.Uniform(err))
		return
	}

	// ── 5. Presentation Output ────────────────────────────────────────────

	respond.OK(writer, verifyResponse{
		Outcome: string(result.Outcome),
		Token:   result.Token,
	})
}

// resolveProbe produces the probe vector either directly from the payload or
// by running the image through the extractor. The extractor's quality score
// is ignored here; verification quality is expressed by the match score.
func (handler *Handler) resolveProbe(request *http.Request, input *verifyRequest) (embedding.Vector, error) {
	if input.Embedding != nil {
		return embedding.Vector{
			Values:       input.Embedding.Values,
			ModelVersion: input.Embedding.ModelVersion,
		}, nil
	}

	if handler.extractor == nil {
		return embedding.Vector{}, apperr.ServiceUnavailable("Image verification is not available on this deployment")
	}

	image, err := decodeBase64Image(input.ImageBase64)
	if err != nil {
		return embedding.Vector{}, err
	}

	vector, _, err := handler.extractor.Extract(request.Context(), image)
	return vector, err
}

// decodeBase64Image decodes the image payload, mapping decode failures to a
// plain validation error.
func decodeBase64Image(data string) ([]byte, error) {
	image, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, apperr.ValidationError("Invalid base64 image data")
	}
	return image, nil
}
