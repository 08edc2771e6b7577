package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const reconciliationColumns = `game_id, name, slug, created, resolve_count,
	first_resolved_at, last_resolved_at, checked_at, duplicate_slugs`

// Ledger records slug resolutions so duplicate posts for one game can be
// detected after the fact.
type Ledger struct {
	db *DB
}

func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// Record upserts the resolution. A later resolution never clears the created
// flag, and a changed slug resets the duplicate check.
func (l *Ledger) Record(ctx context.Context, res Resolution) error {
	at := res.ResolvedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO reconciliations (
			game_id, name, slug, created, resolve_count, first_resolved_at, last_resolved_at
		) VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (game_id) DO UPDATE SET
			name = excluded.name,
			checked_at = CASE WHEN reconciliations.slug = excluded.slug THEN reconciliations.checked_at ELSE NULL END,
			slug = excluded.slug,
			created = MAX(reconciliations.created, excluded.created),
			resolve_count = reconciliations.resolve_count + 1,
			last_resolved_at = excluded.last_resolved_at
	`, res.GameID, res.Name, res.Slug, boolToInt(res.Created), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record resolution for game %d: %w", res.GameID, err)
	}

	return nil
}

// Get returns the ledger row for gameID, or nil when it has never been resolved.
func (l *Ledger) Get(ctx context.Context, gameID int64) (*Reconciliation, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations WHERE game_id = $1`, gameID)

	rec, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation for game %d: %w", gameID, err)
	}
	return rec, nil
}

// List returns the most recently resolved games first.
func (l *Ledger) List(ctx context.Context, limit int) ([]Reconciliation, error) {
	return l.query(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations
		ORDER BY last_resolved_at DESC, game_id LIMIT $1`, limit)
}

// Duplicates returns every game flagged by the sweep as having more than one post.
func (l *Ledger) Duplicates(ctx context.Context) ([]Reconciliation, error) {
	return l.query(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations
		WHERE duplicate_slugs != '' ORDER BY game_id`)
}

// DueForCheck returns games never checked or last checked before cutoff,
// oldest check first.
func (l *Ledger) DueForCheck(ctx context.Context, cutoff time.Time, limit int) ([]Reconciliation, error) {
	return l.query(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations
		WHERE checked_at IS NULL OR checked_at < $1
		ORDER BY COALESCE(checked_at, 0), game_id LIMIT $2`, cutoff.UnixMilli(), limit)
}

// MarkChecked stores the sweep result. An empty duplicates list clears a
// previous flag.
func (l *Ledger) MarkChecked(ctx context.Context, gameID int64, duplicates []string, at time.Time) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE reconciliations SET checked_at = $1, duplicate_slugs = $2 WHERE game_id = $3
	`, at.UnixMilli(), strings.Join(duplicates, ","), gameID)
	if err != nil {
		return fmt.Errorf("failed to mark game %d checked: %w", gameID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark game %d checked: %w", gameID, err)
	}
	if n == 0 {
		return fmt.Errorf("no reconciliation for game %d", gameID)
	}
	return nil
}

func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reconciliations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reconciliations: %w", err)
	}
	return n, nil
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) ([]Reconciliation, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliations: %w", err)
	}
	defer rows.Close()

	var recs []Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation: %w", err)
		}
		recs = append(recs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reconciliations: %w", err)
	}
	return recs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReconciliation(s scanner) (*Reconciliation, error) {
	var (
		rec            Reconciliation
		created        int
		first, last    int64
		checkedAt      sql.NullInt64
		duplicateSlugs string
	)

	err := s.Scan(&rec.GameID, &rec.Name, &rec.Slug, &created, &rec.ResolveCount,
		&first, &last, &checkedAt, &duplicateSlugs)
	if err != nil {
		return nil, err
	}

	rec.Created = created != 0
	rec.FirstResolvedAt = time.UnixMilli(first)
	rec.LastResolvedAt = time.UnixMilli(last)
	if checkedAt.Valid {
		t := time.UnixMilli(checkedAt.Int64)
		rec.CheckedAt = &t
	}
	if duplicateSlugs != "" {
		rec.DuplicateSlugs = strings.Split(duplicateSlugs, ",")
	}

	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
