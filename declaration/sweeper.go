// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package declaration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/election-tally/metrics"
)

// Sweeper periodically deletes expired codes, tokens and challenges.
// Correctness never depends on it: every read checks expiry itself.
type Sweeper struct {
	db       *sql.DB
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(db *sql.DB, interval time.Duration) *Sweeper {
	return &Sweeper{
		db:       db,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("expiry sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("expiry sweep failed", "error", err)
				}
				continue
			}
			if n > 0 {
				slog.Info("expired declaration rows removed", "rows", n)
			}
		}
	}
}

type codeKey struct {
	challengeID string
	purpose     string
}

// SweepOnce removes everything that has expired and returns the number of
// rows deleted. Challenges with a live token are kept until the token lapses.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Expiry is compared in Go so the same code works with both drivers'
	// timestamp encodings
	var codes []codeKey
	rows, err := tx.QueryContext(ctx, `SELECT challenge_id, purpose, expires_at FROM one_time_code`)
	if err != nil {
		return 0, fmt.Errorf("failed to query codes: %w", err)
	}
	for rows.Next() {
		var k codeKey
		var expiresAt time.Time
		if err := rows.Scan(&k.challengeID, &k.purpose, &expiresAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan code: %w", err)
		}
		if now.After(expiresAt) {
			codes = append(codes, k)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate codes: %w", err)
	}

	tokens, err := expiredIDs(ctx, tx, now, `SELECT challenge_id, expires_at FROM capability_token`)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, k := range codes {
		n, err := execCount(ctx, tx, `DELETE FROM one_time_code WHERE challenge_id = $1 AND purpose = $2`, k.challengeID, k.purpose)
		if err != nil {
			return 0, err
		}
		deleted += n
	}
	for _, id := range tokens {
		n, err := execCount(ctx, tx, `DELETE FROM capability_token WHERE challenge_id = $1`, id)
		if err != nil {
			return 0, err
		}
		deleted += n
	}

	challenges, err := expiredIDs(ctx, tx, now, `
		SELECT c.id, c.expires_at FROM declaration_challenge c
		WHERE NOT EXISTS (SELECT 1 FROM capability_token t WHERE t.challenge_id = c.id)
	`)
	if err != nil {
		return 0, err
	}
	for _, id := range challenges {
		n, err := execCount(ctx, tx, `DELETE FROM one_time_code WHERE challenge_id = $1`, id)
		if err != nil {
			return 0, err
		}
		deleted += n

		n, err = execCount(ctx, tx, `DELETE FROM declaration_challenge WHERE id = $1`, id)
		if err != nil {
			return 0, err
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sweep: %w", err)
	}

	metrics.SweptRows.Add(float64(deleted))
	return deleted, nil
}

func expiredIDs(ctx context.Context, tx *sql.Tx, now time.Time, query string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring rows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var expiresAt time.Time
		if err := rows.Scan(&id, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan expiring row: %w", err)
		}
		if now.After(expiresAt) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
