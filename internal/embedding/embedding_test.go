// Copyright (c) 2026 Veriface Labs. All rights reserved.

package embedding_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/veriface/internal/embedding"
)

const modelV1 = "facenet-vggface2-v1"

func vec(values ...float32) embedding.Vector {
	return embedding.Vector{Values: values, ModelVersion: modelV1}
}

/*
TestCosine_Identity verifies cosine(e, e) == 1 within floating point tolerance.
*/
func TestCosine_Identity(t *testing.T) {
	tests := []struct {
		name string
		v    embedding.Vector
	}{
		{"unit_axis", vec(1, 0, 0)},
		{"arbitrary", vec(0.3, -1.2, 4.5, 0.001)},
		{"large_components", vec(1000, 2000, -3000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, 1.0, embedding.Cosine(tt.v, tt.v), 1e-9)
		})
	}
}

/*
TestCosine_Geometry checks known angular relationships and clamping.
*/
func TestCosine_Geometry(t *testing.T) {
	assert.InDelta(t, 0.0, embedding.Cosine(vec(1, 0), vec(0, 1)), 1e-9)
	assert.InDelta(t, -1.0, embedding.Cosine(vec(1, 0), vec(-1, 0)), 1e-9)

	// Scaling does not change direction.
	assert.InDelta(t, 1.0, embedding.Cosine(vec(1, 2, 3), vec(2, 4, 6)), 1e-9)

	// Degenerate inputs floor at -1 instead of NaN.
	assert.Equal(t, -1.0, embedding.Cosine(vec(1, 2), vec(1, 2, 3)))
	assert.Equal(t, -1.0, embedding.Cosine(vec(0, 0), vec(1, 0)))
	assert.Equal(t, -1.0, embedding.Cosine(embedding.Vector{}, embedding.Vector{}))
}

/*
TestNormalize checks L2 normalization yields a unit vector without mutating the input.
*/
func TestNormalize(t *testing.T) {
	original := vec(3, 4)
	normalized := original.Normalize()

	// Unit magnitude: 3-4-5 triangle.
	assert.InDelta(t, 0.6, float64(normalized.Values[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(normalized.Values[1]), 1e-6)

	var sum float64
	for _, c := range normalized.Values {
		sum += float64(c) * float64(c)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	// Input untouched.
	assert.Equal(t, float32(3), original.Values[0])
	assert.Equal(t, modelV1, normalized.ModelVersion)
}

/*
TestValidate covers the deployment contract checks.
*/
func TestValidate(t *testing.T) {
	supported := []string{modelV1}

	tests := []struct {
		name    string
		v       embedding.Vector
		wantErr error
	}{
		{"valid", vec(1, 2, 3), nil},
		{"wrong_dim", vec(1, 2), embedding.ErrDimensionMismatch},
		{"unknown_model", embedding.Vector{Values: []float32{1, 2, 3}, ModelVersion: "clip-v2"}, embedding.ErrUnsupportedModel},
		{"zero_vector", vec(0, 0, 0), embedding.ErrZeroVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate(3, supported)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
