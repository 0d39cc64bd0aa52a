// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package embedding defines the face embedding vector type and its similarity math.

An embedding is a fixed-dimension numeric vector produced by an external model.
Every vector carries the version tag of the model that produced it: scores are
only meaningful between vectors from the same model, so vectors from different
versions are never compared.

# Architecture

This is the leaf of the domain. It has no storage, transport, or policy
knowledge — only the vector representation, L2 normalization, and cosine
similarity used by both enrollment (duplicate detection) and verification
(matching).
*/
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// # Typed Failures

var (
	// ErrDimensionMismatch reports a vector whose length differs from the
	// deployment's configured embedding dimension.
	ErrDimensionMismatch = errors.New("embedding: dimension mismatch")

	// ErrUnsupportedModel reports a vector tagged with a model version the
	// deployment does not accept.
	ErrUnsupportedModel = errors.New("embedding: unsupported model version")

	// ErrZeroVector reports a vector with zero magnitude, which cannot be
	// L2-normalized and carries no directional information.
	ErrZeroVector = errors.New("embedding: zero magnitude vector")
)

// # Vector

// Vector is a fixed-dimension face embedding tagged with its model version.
//
// Vectors are value types: operations return new vectors and never mutate
// the receiver, matching the immutability of stored templates.
type Vector struct {
	// Values holds the vector components in model output order.
	Values []float32 `json:"values"`

	// ModelVersion identifies the embedding model that produced the vector.
	ModelVersion string `json:"model_version"`
}

// Dim returns the number of components.
func (v Vector) Dim() int { return len(v.Values) }

// Validate checks the vector against the deployment contract.
//
// Returns [ErrDimensionMismatch], [ErrUnsupportedModel], or [ErrZeroVector].
// Callers wrap the result into the appropriate transport error: enrollment
// reports IncompatibleModel, verification reports MalformedProbe.
func (v Vector) Validate(dim int, supportedModels []string) error {
	if v.Dim() != dim {
		return fmt.Errorf("%w: got %d components, deployment expects %d", ErrDimensionMismatch, v.Dim(), dim)
	}

	supported := false
	for _, m := range supportedModels {
		if v.ModelVersion == m {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: %q", ErrUnsupportedModel, v.ModelVersion)
	}

	if v.magnitude() == 0 {
		return ErrZeroVector
	}

	return nil
}

// Normalize returns the L2-normalized copy of the vector.
// A zero vector is returned unchanged; Validate rejects it upstream.
func (v Vector) Normalize() Vector {
	magnitude := v.magnitude()
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v.Values))
	for i, component := range v.Values {
		normalized[i] = float32(float64(component) / magnitude)
	}

	return Vector{Values: normalized, ModelVersion: v.ModelVersion}
}

// magnitude computes the Euclidean (L2) norm in float64 for stability.
func (v Vector) magnitude() float64 {
	var sum float64
	for _, component := range v.Values {
		sum += float64(component) * float64(component)
	}
	return math.Sqrt(sum)
}

// # Similarity

// Cosine computes the cosine similarity between two vectors.
//
// The result is in [-1, 1]: 1 for identical direction, 0 for orthogonal,
// -1 for opposite. Mismatched dimensions or zero vectors score -1 (maximum
// dissimilarity); Validate rejects both before vectors reach scoring.
func Cosine(a, b Vector) float64 {
	if len(a.Values) != len(b.Values) || len(a.Values) == 0 {
		return -1
	}

	var dotProduct, normA, normB float64
	for i := range a.Values {
		dotProduct += float64(a.Values[i]) * float64(b.Values[i])
		normA += float64(a.Values[i]) * float64(a.Values[i])
		normB += float64(b.Values[i]) * float64(b.Values[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))

	// Clamp to [-1, 1] to absorb floating point drift.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return similarity
}
