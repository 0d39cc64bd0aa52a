// Copyright (c) 2026 Veriface Labs. All rights reserved.

package enroll

import (
	"context"
	"sync"

	"github.com/veriface/veriface/internal/platform/apperr"
)

// MemoryStore implements the [Store] interface in-process.
// Used by tests and single-node deployments without PostgreSQL.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string][]Template // userID -> active templates, insertion order
}

// NewMemoryStore creates an empty in-memory template store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{templates: make(map[string][]Template)}
}

// Put persists a new template, enforcing the quota under the store mutex.
func (store *MemoryStore) Put(_ context.Context, template *Template, maxActive int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.templates[template.UserID]) >= maxActive {
		return apperr.QuotaExceeded(maxActive)
	}

	store.templates[template.UserID] = append(store.templates[template.UserID], *template)
	return nil
}

// ListActive returns copies of the user's active templates, oldest first.
func (store *MemoryStore) ListActive(_ context.Context, userID string) ([]Template, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	active := store.templates[userID]
	result := make([]Template, len(active))
	copy(result, active)
	return result, nil
}

// Revoke removes one active template.
func (store *MemoryStore) Revoke(_ context.Context, userID, templateID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	active := store.templates[userID]
	for i, template := range active {
		if template.ID == templateID {
			store.templates[userID] = append(active[:i:i], active[i+1:]...)
			return nil
		}
	}

	return apperr.NotFound("Template")
}

// CountActive returns the number of active templates for a user.
func (store *MemoryStore) CountActive(_ context.Context, userID string) (int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.templates[userID]), nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
