// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package verify implements the verification flow: a user presents a probe
embedding, the matcher scores it against the user's enrolled templates, and a
two-threshold policy converts the score into an outcome. Accepted outcomes
mint a session credential.

# Decision Policy

Matching is 1:1 with best-of-N scoring: the probe is compared against every
active template of the claimed user and the highest cosine similarity wins.
Two thresholds split the score range into three outcomes:

	score >= accept            -> Accepted
	reject <= score < accept   -> Inconclusive (retry is worthwhile)
	score < reject             -> Rejected

A user with zero enrolled templates is always Rejected; the outcome is
indistinguishable from a failed match so enrollment status cannot be probed.

# Anti-Enumeration

Scores, margins, and failure causes are logged server-side but never returned
to callers. The HTTP layer additionally collapses all negative outcomes
except Inconclusive into one uniform response.
*/
package verify

import (
	"github.com/veriface/veriface/internal/embedding"
	"github.com/veriface/veriface/internal/enroll"
)

// # Outcomes

// Outcome is the verdict of a verification attempt.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeInconclusive Outcome = "inconclusive"
	OutcomeRejected     Outcome = "rejected"
)

// # Matcher

// Thresholds holds the two decision cut points. Reject must be strictly
// below Accept; config validation enforces this at startup.
type Thresholds struct {
	Accept float64
	Reject float64
}

// Decision is the internal matching verdict. Score and TemplateID are for
// audit logging only and must never reach a client.
type Decision struct {
	Outcome Outcome
	// Score is the best cosine similarity observed, or -1 with no templates.
	Score float64
	// TemplateID identifies the best-matching template, empty with none.
	TemplateID string
}

// Match scores a probe against a user's templates and applies the
// two-threshold policy. The probe must already be validated; templates are
// stored normalized, and cosine similarity is scale-invariant, so the probe
// needs no explicit normalization here.
func Match(probe embedding.Vector, templates []enroll.Template, thresholds Thresholds) Decision {
	best := Decision{Outcome: OutcomeRejected, Score: -1}

	for _, template := range templates {
		score := embedding.Cosine(probe, template.Vector)
		if score > best.Score {
			best.Score = score
			best.TemplateID = template.ID
		}
	}

	switch {
	case best.TemplateID == "":
		// No templates: stays Rejected with score -1.
	case best.Score >= thresholds.Accept:
		best.Outcome = OutcomeAccepted
	case best.Score >= thresholds.Reject:
		best.Outcome = OutcomeInconclusive
	}

	return best
}
