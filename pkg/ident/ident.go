// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package ident normalizes user identifiers before they are used as storage keys.

User identifiers arrive from external transport layers and may differ only in
Unicode representation ("élise" composed vs. decomposed). Rate budgets, replay
nonces, and template sets are all keyed by user identifier, so equivalent
representations of the same identifier must collapse to one canonical key,
otherwise a caller could stretch their rate budget by resubmitting the same
identity in a different encoding.

Identifiers are otherwise opaque: letter case is preserved, and "Bob" and
"bob" name two distinct users.
*/
package ident

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical storage key for a user identifier.
//
// # Rules
//
//  1. Unicode NFC normalization (composed form).
//  2. Surrounding whitespace trimmed.
func Normalize(id string) string {
	id = norm.NFC.String(id)
	return strings.TrimSpace(id)
}

// Equal reports whether two identifiers refer to the same user after
// normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
