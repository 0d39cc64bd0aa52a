// Copyright (c) 2026 Veriface Labs. All rights reserved.

package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresActivity implements [SuccessRecorder] on the face.activity table.
// One row per user, updated in place on each accepted verification.
type PostgresActivity struct {
	pool *pgxpool.Pool
}

// NewPostgresActivity creates a PostgreSQL last-verified recorder.
func NewPostgresActivity(pool *pgxpool.Pool) *PostgresActivity {
	return &PostgresActivity{pool: pool}
}

// RecordVerified upserts the user's last successful verification instant.
func (recorder *PostgresActivity) RecordVerified(ctx context.Context, userID string, at time.Time) error {
	const query = `
		INSERT INTO face.activity (userid, lastverifiedat, verifiedcount)
		VALUES ($1, $2, 1)
		ON CONFLICT (userid) DO UPDATE SET
			lastverifiedat = EXCLUDED.lastverifiedat,
			verifiedcount = face.activity.verifiedcount + 1`

	if _, err := recorder.pool.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("postgres_activity_record_failed: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ SuccessRecorder = (*PostgresActivity)(nil)
