// Copyright (c) 2026 Veriface Labs. All rights reserved.

package ident_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veriface/veriface/pkg/ident"
)

/*
TestNormalize checks canonicalization of user identifiers.
*/
func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain_ascii", "alice", "alice"},
		{"case_preserved", "Alice", "Alice"},
		{"surrounding_whitespace", "  alice \t", "alice"},
		// "e" + combining acute accent collapses to the composed "é".
		{"decomposed_unicode", "e\u0301lise", "élise"},
		{"already_composed", "élise", "élise"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ident.Normalize(tt.input))
		})
	}
}

/*
TestEqual checks that encoding differences collapse to the same key while
case-distinct identifiers stay distinct.
*/
func TestEqual(t *testing.T) {
	assert.True(t, ident.Equal(" alice ", "alice"))
	assert.False(t, ident.Equal("Alice", "alice"))
	assert.True(t, ident.Equal("e\u0301lise", "élise"))
	assert.False(t, ident.Equal("alice", "bob"))
}
