// Copyright (c) 2026 Veriface Labs. All rights reserved.

package verify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/veriface/internal/verify"
)

/*
TestSession_Lifecycle verifies the full legal path through the state machine.
*/
func TestSession_Lifecycle(t *testing.T) {
	session := verify.NewSession("alice", "mobile")
	assert.Equal(t, verify.StateInit, session.State())
	assert.NotEmpty(t, session.ID)

	require.NoError(t, session.AwaitProbe())
	assert.Equal(t, verify.StateAwaitingProbe, session.State())

	require.NoError(t, session.StartScoring())
	assert.Equal(t, verify.StateScoring, session.State())

	decision := verify.Decision{Outcome: verify.OutcomeAccepted, Score: 0.92, TemplateID: "t1"}
	require.NoError(t, session.Decide(decision))
	assert.Equal(t, verify.StateDecided, session.State())
	assert.Equal(t, decision, session.Decision())

	require.NoError(t, session.Close())
	assert.Equal(t, verify.StateClosed, session.State())
}

/*
TestSession_IllegalTransitions verifies out-of-order transitions fail and
leave the state untouched.
*/
func TestSession_IllegalTransitions(t *testing.T) {
	t.Run("cannot score before probe", func(t *testing.T) {
		session := verify.NewSession("alice", "mobile")
		assert.ErrorIs(t, session.StartScoring(), verify.ErrInvalidTransition)
		assert.Equal(t, verify.StateInit, session.State())
	})

	t.Run("cannot decide before scoring", func(t *testing.T) {
		session := verify.NewSession("alice", "mobile")
		require.NoError(t, session.AwaitProbe())
		err := session.Decide(verify.Decision{Outcome: verify.OutcomeRejected})
		assert.ErrorIs(t, err, verify.ErrInvalidTransition)
	})

	t.Run("decided session cannot score again", func(t *testing.T) {
		session := verify.NewSession("alice", "mobile")
		require.NoError(t, session.AwaitProbe())
		require.NoError(t, session.StartScoring())
		require.NoError(t, session.Decide(verify.Decision{Outcome: verify.OutcomeRejected}))

		assert.ErrorIs(t, session.StartScoring(), verify.ErrInvalidTransition)
		assert.ErrorIs(t, session.AwaitProbe(), verify.ErrInvalidTransition)
	})

	t.Run("double close fails", func(t *testing.T) {
		session := verify.NewSession("alice", "mobile")
		require.NoError(t, session.Close())
		assert.ErrorIs(t, session.Close(), verify.ErrInvalidTransition)
	})

	t.Run("abandonment closes from any live state", func(t *testing.T) {
		session := verify.NewSession("alice", "mobile")
		require.NoError(t, session.AwaitProbe())
		assert.NoError(t, session.Close())
	})
}
