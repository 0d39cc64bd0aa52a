// Copyright (c) 2026 Veriface Labs. All rights reserved.

package credential

import (
	"context"
	"sync"
	"time"
)

// MemoryWatermarkStore implements WatermarkStore in-process.
// Used by tests and single-node deployments without Redis.
type MemoryWatermarkStore struct {
	mu         sync.RWMutex
	watermarks map[string]time.Time
}

// NewMemoryWatermarkStore creates an empty in-memory watermark store.
func NewMemoryWatermarkStore() *MemoryWatermarkStore {
	return &MemoryWatermarkStore{watermarks: make(map[string]time.Time)}
}

// SetValidSince records the revocation watermark.
func (store *MemoryWatermarkStore) SetValidSince(_ context.Context, userID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.watermarks[userID] = at
	return nil
}

// ValidSince retrieves the revocation watermark, or the zero time.
func (store *MemoryWatermarkStore) ValidSince(_ context.Context, userID string) (time.Time, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.watermarks[userID], nil
}
