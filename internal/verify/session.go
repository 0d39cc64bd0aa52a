// Copyright (c) 2026 Veriface Labs. All rights reserved.

package verify

import (
	"errors"
	"fmt"
	"time"

	"github.com/veriface/veriface/pkg/uuid"
)

// # Session State Machine

// State is a verification session lifecycle phase.
type State string

const (
	// StateInit is the freshly created session before admission checks.
	StateInit State = "init"
	// StateAwaitingProbe means admission passed and the probe is being read.
	StateAwaitingProbe State = "awaiting_probe"
	// StateScoring means the probe is being matched against templates.
	StateScoring State = "scoring"
	// StateDecided means an outcome has been recorded.
	StateDecided State = "decided"
	// StateClosed is terminal; no further transitions are legal.
	StateClosed State = "closed"
)

// ErrInvalidTransition reports an out-of-order state change. Transitions are
// one-way; a decided or closed session can never score again.
var ErrInvalidTransition = errors.New("verify: invalid session transition")

// Session tracks one verification attempt through its lifecycle. A session
// lives for the duration of a single request and is not shared between
// goroutines, so it carries no lock.
type Session struct {
	// ID is the UUIDv7 session identifier used for audit correlation.
	ID string
	// UserID is the normalized claimed identity.
	UserID string
	// Source identifies the requesting channel (device, app, kiosk).
	Source string
	// StartedAt is the session creation instant.
	StartedAt time.Time

	state    State
	decision Decision
}

// NewSession creates a session in [StateInit].
func NewSession(userID, source string) *Session {
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Source:    source,
		StartedAt: time.Now(),
		state:     StateInit,
	}
}

// State returns the current lifecycle phase.
func (session *Session) State() State { return session.state }

// Decision returns the recorded verdict; only meaningful in [StateDecided]
// or [StateClosed].
func (session *Session) Decision() Decision { return session.decision }

// AwaitProbe moves Init -> AwaitingProbe after admission checks pass.
func (session *Session) AwaitProbe() error {
	return session.transition(StateInit, StateAwaitingProbe)
}

// StartScoring moves AwaitingProbe -> Scoring once the probe is validated.
func (session *Session) StartScoring() error {
	return session.transition(StateAwaitingProbe, StateScoring)
}

// Decide moves Scoring -> Decided and records the verdict.
func (session *Session) Decide(decision Decision) error {
	if err := session.transition(StateScoring, StateDecided); err != nil {
		return err
	}
	session.decision = decision
	return nil
}

// Close moves any non-terminal state to Closed. Closing an already closed
// session is an error; everything else (including abandonment before a
// decision) is legal.
func (session *Session) Close() error {
	if session.state == StateClosed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.state, StateClosed)
	}
	session.state = StateClosed
	return nil
}

// transition enforces the single legal edge from one state to the next.
func (session *Session) transition(from, to State) error {
	if session.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.state, to)
	}
	session.state = to
	return nil
}
