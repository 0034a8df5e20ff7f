// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danielhkuo/election-tally/db"
	"github.com/danielhkuo/election-tally/metrics"
	"github.com/danielhkuo/election-tally/models"
)

// Authorization is what the login subsystem asserts about the caller.
// CanMerge is false for offline-vote-entry admins.
type Authorization struct {
	AdminID  string
	CanMerge bool
}

// Service is the only writer of the offline_ballot merged flag
type Service struct {
	db          *sql.DB
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

func NewService(db *sql.DB, maxAttempts int) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		db:          db,
		maxAttempts: maxAttempts,
		backoff:     50 * time.Millisecond,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MergeOfflineVotes flips every unmerged offline ballot of the category to
// merged in one transaction, stamping them with one shared merged_at.
// Ballots already merged are never touched again; a call with nothing to
// merge returns zero counts and AlreadySatisfied.
func (s *Service) MergeOfflineVotes(ctx context.Context, category string, authz Authorization) (models.MergeResult, error) {
	if !authz.CanMerge {
		metrics.MergesTotal.WithLabelValues("denied").Inc()
		return models.MergeResult{}, fmt.Errorf("admin %q may not merge offline ballots: %w", authz.AdminID, models.ErrPermissionDenied)
	}
	if !models.ValidCategory(category) {
		return models.MergeResult{}, fmt.Errorf("unknown category %q: %w", category, models.ErrInvalidArgument)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, err := s.mergeOnce(ctx, category, authz.AdminID)
		if err == nil {
			s.record(category, authz.AdminID, result)
			return result, nil
		}
		if !db.IsTransient(err) {
			metrics.MergesTotal.WithLabelValues("error").Inc()
			return models.MergeResult{}, err
		}

		lastErr = err
		slog.Warn("merge contention, retrying",
			"category", category,
			"attempt", attempt,
			"error", err,
		)
		if attempt == s.maxAttempts {
			break
		}
		metrics.MergeRetries.Inc()

		select {
		case <-ctx.Done():
			return models.MergeResult{}, fmt.Errorf("merge cancelled: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}

	metrics.MergesTotal.WithLabelValues("unavailable").Inc()
	return models.MergeResult{}, fmt.Errorf("merge did not commit after %d attempts (%v): %w", s.maxAttempts, lastErr, models.ErrUnavailable)
}

// mergeOnce is one transactional attempt. The conditional UPDATE locks the
// rows it flips; a concurrent merge waits on those locks and then re-checks
// merged = FALSE, so it sees nothing left to do.
func (s *Service) mergeOnce(ctx context.Context, category, adminID string) (models.MergeResult, error) {
	mergedAt := s.now()
	batchID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.MergeResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE offline_ballot
		SET merged = TRUE, merged_at = $1, merge_batch_id = $2
		WHERE merged = FALSE
		  AND zone_id IN (SELECT id FROM zone WHERE election_category = $3)
		RETURNING voter_id
	`, mergedAt, batchID, category)
	if err != nil {
		return models.MergeResult{}, fmt.Errorf("failed to merge offline ballots: %w", err)
	}

	mergedCount := 0
	voters := make(map[string]struct{})
	for rows.Next() {
		var voterID string
		if err := rows.Scan(&voterID); err != nil {
			rows.Close()
			return models.MergeResult{}, fmt.Errorf("failed to scan merged ballot: %w", err)
		}
		mergedCount++
		voters[voterID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return models.MergeResult{}, fmt.Errorf("failed to read merged ballots: %w", err)
	}
	rows.Close()

	result := models.MergeResult{
		MergedCount: mergedCount,
		VoterCount:  len(voters),
		MergedAt:    mergedAt,
	}

	if mergedCount == 0 {
		// Nothing changed; the batch ID was never written
		result.AlreadySatisfied = true
		return result, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO merge_batch (id, election_category, merged_count, voter_count, merged_by, merged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, batchID, category, result.MergedCount, result.VoterCount, adminID, mergedAt)
	if err != nil {
		return models.MergeResult{}, fmt.Errorf("failed to record merge batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.MergeResult{}, fmt.Errorf("failed to commit merge: %w", err)
	}

	result.BatchID = batchID
	return result, nil
}

func (s *Service) record(category, adminID string, result models.MergeResult) {
	if result.AlreadySatisfied {
		metrics.MergesTotal.WithLabelValues("already_satisfied").Inc()
		slog.Info("offline merge: nothing to merge", "category", category, "admin_id", adminID)
		return
	}

	metrics.MergesTotal.WithLabelValues("merged").Inc()
	metrics.BallotsMerged.Add(float64(result.MergedCount))
	slog.Info("offline ballots merged",
		"category", category,
		"admin_id", adminID,
		"batch_id", result.BatchID,
		"ballots", humanize.Comma(int64(result.MergedCount)),
		"voters", humanize.Comma(int64(result.VoterCount)),
	)
}

// PendingCount reports how many offline ballots of the category still wait
// for a merge, and from how many distinct voters
func (s *Service) PendingCount(ctx context.Context, category string) (models.PendingOffline, error) {
	if !models.ValidCategory(category) {
		return models.PendingOffline{}, fmt.Errorf("unknown category %q: %w", category, models.ErrInvalidArgument)
	}

	pending := models.PendingOffline{Category: category}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT voter_id)
		FROM offline_ballot
		WHERE merged = FALSE
		  AND zone_id IN (SELECT id FROM zone WHERE election_category = $1)
	`, category).Scan(&pending.BallotCount, &pending.VoterCount)
	if err != nil {
		return models.PendingOffline{}, fmt.Errorf("failed to count pending ballots: %w", err)
	}

	return pending, nil
}
