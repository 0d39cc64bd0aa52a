// Copyright (c) 2026 Veriface Labs. All rights reserved.

package enroll_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/veriface/internal/embedding"
	"github.com/veriface/veriface/internal/enroll"
	"github.com/veriface/veriface/internal/platform/apperr"
)

const testModel = "facenet-vggface2-v1"

func testPolicy() enroll.Policy {
	return enroll.Policy{
		EmbeddingDim:       4,
		SupportedModels:    []string{testModel},
		MaxTemplates:       2,
		QualityThreshold:   0.55,
		DuplicateThreshold: 0.97,
	}
}

func newTestService(policy enroll.Policy) (*enroll.Service, *enroll.MemoryStore) {
	store := enroll.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return enroll.NewService(store, policy, logger), store
}

func vec(values ...float32) embedding.Vector {
	return embedding.Vector{Values: values, ModelVersion: testModel}
}

/*
TestService_Enroll verifies the happy path: the stored template carries a
normalized vector and a fresh UUID.
*/
func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(testPolicy())

	result, err := service.Enroll(ctx, enroll.EnrollInput{
		UserID:  "  alice ",
		Vector:  vec(3, 4, 0, 0),
		Quality: 0.9,
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.NotEmpty(t, result.Template.ID)
	assert.Equal(t, "alice", result.Template.UserID)

	// The stored vector is L2-normalized.
	assert.InDelta(t, 0.6, result.Template.Vector.Values[0], 1e-6)
	assert.InDelta(t, 0.8, result.Template.Vector.Values[1], 1e-6)

	count, err := store.CountActive(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

/*
TestService_Enroll_Gates verifies each gate maps to its error code.
*/
func TestService_Enroll_Gates(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		input    enroll.EnrollInput
		wantCode string
	}{
		{
			name:     "wrong dimension",
			input:    enroll.EnrollInput{UserID: "alice", Vector: vec(1, 0), Quality: 0.9},
			wantCode: apperr.CodeIncompatibleModel,
		},
		{
			name: "unsupported model version",
			input: enroll.EnrollInput{
				UserID:  "alice",
				Vector:  embedding.Vector{Values: []float32{1, 0, 0, 0}, ModelVersion: "other-model"},
				Quality: 0.9,
			},
			wantCode: apperr.CodeIncompatibleModel,
		},
		{
			name:     "zero vector",
			input:    enroll.EnrollInput{UserID: "alice", Vector: vec(0, 0, 0, 0), Quality: 0.9},
			wantCode: apperr.CodeIncompatibleModel,
		},
		{
			name:     "below quality gate",
			input:    enroll.EnrollInput{UserID: "alice", Vector: vec(1, 0, 0, 0), Quality: 0.5},
			wantCode: apperr.CodePoorQuality,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service, _ := newTestService(testPolicy())

			_, err := service.Enroll(ctx, tc.input)
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, tc.wantCode))
		})
	}
}

/*
TestService_Enroll_DuplicateIdempotent verifies a near-identical capture
returns the existing template without consuming a quota slot.
*/
func TestService_Enroll_DuplicateIdempotent(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(testPolicy())

	first, err := service.Enroll(ctx, enroll.EnrollInput{
		UserID:  "alice",
		Vector:  vec(1, 0, 0, 0),
		Quality: 0.9,
	})
	require.NoError(t, err)

	// Same direction, different magnitude: cosine 1.0 after normalization.
	second, err := service.Enroll(ctx, enroll.EnrollInput{
		UserID:  "alice",
		Vector:  vec(5, 0, 0, 0),
		Quality: 0.8,
	})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Template.ID, second.Template.ID)

	count, err := store.CountActive(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

/*
TestService_Enroll_DuplicateAtQuota verifies retry idempotency survives a
full quota: the duplicate path returns the existing template instead of
reporting QUOTA_EXCEEDED.
*/
func TestService_Enroll_DuplicateAtQuota(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(testPolicy())

	first, err := service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(1, 0, 0, 0), Quality: 0.9})
	require.NoError(t, err)
	_, err = service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(0, 1, 0, 0), Quality: 0.9})
	require.NoError(t, err)

	// Quota full (MaxTemplates=2). A retried first capture still succeeds.
	retry, err := service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(1, 0, 0, 0), Quality: 0.9})
	require.NoError(t, err)
	assert.False(t, retry.Created)
	assert.Equal(t, first.Template.ID, retry.Template.ID)

	// A genuinely new capture is refused.
	_, err = service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(0, 0, 1, 0), Quality: 0.9})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeQuotaExceeded))
}

/*
TestService_Revoke verifies revocation frees a quota slot.
*/
func TestService_Revoke(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(testPolicy())

	first, err := service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(1, 0, 0, 0), Quality: 0.9})
	require.NoError(t, err)
	_, err = service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(0, 1, 0, 0), Quality: 0.9})
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, "alice", first.Template.ID))

	// The freed slot accepts a new template.
	result, err := service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(0, 0, 1, 0), Quality: 0.9})
	require.NoError(t, err)
	assert.True(t, result.Created)

	// Revoking twice reports NOT_FOUND.
	err = service.Revoke(ctx, "alice", first.Template.ID)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, "NOT_FOUND"))
}

/*
TestService_Templates verifies the listing is a vector-free projection.
*/
func TestService_Templates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(testPolicy())

	_, err := service.Enroll(ctx, enroll.EnrollInput{UserID: "alice", Vector: vec(1, 0, 0, 0), Quality: 0.9})
	require.NoError(t, err)

	views, err := service.Templates(ctx, " alice ")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, testModel, views[0].ModelVersion)
	assert.InDelta(t, 0.9, views[0].Quality, 1e-9)

	// Unknown users get an empty list, never an error.
	views, err = service.Templates(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, views)
}
