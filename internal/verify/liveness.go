// Copyright (c) 2026 Veriface Labs. All rights reserved.

package verify

import "context"

// LivenessPolicy decides whether a probe came from a live capture rather
// than a replayed photo or screen. Implementations return a verification
// error (wrapped by the caller into the uniform response) to refuse a probe.
//
// The default deployment uses [PassthroughLiveness]; a challenge-response
// implementation (blink detection, depth) plugs in here without touching
// the verification flow.
type LivenessPolicy interface {
	Check(ctx context.Context, probe Probe) error
}

// PassthroughLiveness accepts every probe.
type PassthroughLiveness struct{}

// Check always passes.
func (PassthroughLiveness) Check(context.Context, Probe) error { return nil }

// Verify interface compliance.
var _ LivenessPolicy = PassthroughLiveness{}
