// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package extractor is the HTTP client for the external embedding producer.

The producer is a separate service wrapping the face model. It accepts an
image upload, runs face detection, and returns the embedding of the detected
face plus a detection confidence. Veriface itself never touches pixels beyond
forwarding them; the model contract (dimension, version tag) is enforced by
the enrollment and verification services on the returned vector.
*/
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/veriface/veriface/internal/embedding"
	"github.com/veriface/veriface/internal/platform/apperr"
)

const (
	// embedEndpoint is the producer's face embedding route.
	embedEndpoint = "/embed/face"
	// requestTimeout bounds one extraction round trip.
	requestTimeout = 10 * time.Second
)

// ErrNoFace reports an image in which the producer found no usable face.
var ErrNoFace = errors.New("extractor: no face detected")

// Client calls the embedding producer service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an extractor client for the given producer base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// faceDetection is one detected face in the producer response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the producer's embedding payload.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

/*
Extract runs face detection and embedding on a raw image.

Description: Uploads the image as multipart form data and returns the
primary (highest detection score) face. Multiple faces are not an error; the
quality gates downstream decide whether the capture is usable.

Parameters:
  - ctx: context.Context
  - image: Raw image bytes (JPEG, PNG)

Returns:
  - embedding.Vector: The primary face embedding, tagged with the producer's
    model version
  - float64: Detection confidence in [0, 1], used as the capture quality
  - error: [apperr.PoorQuality] (wrapping [ErrNoFace]) when no face is found,
    or transport failures
*/
func (c *Client) Extract(ctx context.Context, image []byte) (embedding.Vector, float64, error) {
	body, err := c.postImage(ctx, image)
	if err != nil {
		return embedding.Vector{}, 0, err
	}

	var parsed faceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return embedding.Vector{}, 0, fmt.Errorf("extractor: failed to parse response: %w", err)
	}

	if parsed.FacesCount == 0 || len(parsed.Faces) == 0 {
		noFace := apperr.PoorQuality()
		noFace.Cause = ErrNoFace
		return embedding.Vector{}, 0, noFace
	}

	// The producer orders faces by detection score; take the primary one.
	primary := parsed.Faces[0]
	for _, face := range parsed.Faces[1:] {
		if face.DetScore > primary.DetScore {
			primary = face
		}
	}

	if len(primary.Embedding) == 0 {
		return embedding.Vector{}, 0, errors.New("extractor: empty embedding in response")
	}

	vector := embedding.Vector{
		Values:       primary.Embedding,
		ModelVersion: parsed.Model,
	}
	return vector, primary.DetScore, nil
}

// postImage uploads the image as a multipart form and returns the raw body.
func (c *Client) postImage(ctx context.Context, image []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="capture.jpg"`)
	header.Set("Content-Type", detectMIMEType(image))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("extractor: failed to create form part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("extractor: failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("extractor: failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+embedEndpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("extractor: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("extractor: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor: producer error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType sniffs the image type from magic bytes.
func detectMIMEType(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
