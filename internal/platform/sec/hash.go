// Copyright (c) 2026 Veriface Labs. All rights reserved.

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashAPIKey hashes an administrative API key using the bcrypt algorithm.
// Used by the ops tooling that provisions ADMIN_API_KEY_HASH.
func HashAPIKey(plainKey string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash api key: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckAPIKey compares a presented API key with its stored bcrypt hash.
// bcrypt's comparison is constant-time, preventing timing side channels.
func CheckAPIKey(plainKey, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainKey))
	return err == nil
}
