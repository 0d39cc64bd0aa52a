// Copyright (c) 2026 Veriface Labs. All rights reserved.

package enroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/veriface/veriface/internal/platform/apperr"
)

// PostgresStore implements the [Store] interface using pgx and pgvector.
//
// # Quota Atomicity
//
// Put takes a per-user advisory lock inside its transaction before counting
// active templates. Two concurrent enrollments for the same user serialize on
// the lock, so the count-then-insert pair cannot interleave and overshoot the
// quota. Different users use different lock keys and do not contend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL implementation of the template store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Put persists a new template, enforcing the active-template quota.
func (store *PostgresStore) Put(ctx context.Context, template *Template, maxActive int) error {
	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres_template_put_begin_failed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// Serialize concurrent enrollments for this user. The lock is released
	// automatically at transaction end.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", template.UserID); err != nil {
		return fmt.Errorf("postgres_template_put_lock_failed: %w", err)
	}

	var active int
	const countQuery = `
		SELECT COUNT(*) FROM face.template
		WHERE userid = $1 AND revokedat IS NULL`
	if err := tx.QueryRow(ctx, countQuery, template.UserID).Scan(&active); err != nil {
		return fmt.Errorf("postgres_template_put_count_failed: %w", err)
	}

	if active >= maxActive {
		return apperr.QuotaExceeded(maxActive)
	}

	const insertQuery = `
		INSERT INTO face.template (
			id, userid, embedding, modelversion, quality, createdat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, insertQuery,
		template.ID,
		template.UserID,
		pgvector.NewVector(template.Vector.Values),
		template.Vector.ModelVersion,
		template.Quality,
		template.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_template_put_insert_failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres_template_put_commit_failed: %w", err)
	}

	return nil
}

// ListActive returns the user's active templates, oldest first.
func (store *PostgresStore) ListActive(ctx context.Context, userID string) ([]Template, error) {
	const query = `
		SELECT id, userid, embedding, modelversion, quality, createdat
		FROM face.template
		WHERE userid = $1 AND revokedat IS NULL
		ORDER BY createdat`

	rows, err := store.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_template_list_failed: %w", err)
	}
	defer rows.Close()

	templates := make([]Template, 0, 4)
	for rows.Next() {
		var template Template
		var vector pgvector.Vector

		err := rows.Scan(
			&template.ID,
			&template.UserID,
			&vector,
			&template.Vector.ModelVersion,
			&template.Quality,
			&template.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_template_scan_failed: %w", err)
		}

		template.Vector.Values = vector.Slice()
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_template_iterate_failed: %w", err)
	}

	return templates, nil
}

// Revoke soft-deletes one active template.
func (store *PostgresStore) Revoke(ctx context.Context, userID, templateID string) error {
	const query = `
		UPDATE face.template
		SET revokedat = NOW()
		WHERE id = $1 AND userid = $2 AND revokedat IS NULL`

	tag, err := store.pool.Exec(ctx, query, templateID, userID)
	if err != nil {
		return fmt.Errorf("postgres_template_revoke_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Template")
	}

	return nil
}

// CountActive returns the number of active templates for a user.
func (store *PostgresStore) CountActive(ctx context.Context, userID string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM face.template
		WHERE userid = $1 AND revokedat IS NULL`

	var count int
	err := store.pool.QueryRow(ctx, query, userID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres_template_count_failed: %w", err)
	}

	return count, nil
}

// Verify interface compliance.
var _ Store = (*PostgresStore)(nil)
