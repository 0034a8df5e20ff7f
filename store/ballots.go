// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/election-tally/db"
	"github.com/danielhkuo/election-tally/models"
)

// OnlineSelections returns every online selection cast in a zone
func OnlineSelections(ctx context.Context, q Querier, zoneID string) ([]models.Selection, error) {
	return selections(ctx, q, `
		SELECT voter_id, candidate_id FROM online_ballot WHERE zone_id = $1
	`, zoneID)
}

// OfflineSelections returns every offline selection recorded for a zone,
// merged or not
func OfflineSelections(ctx context.Context, q Querier, zoneID string) ([]models.Selection, error) {
	return selections(ctx, q, `
		SELECT voter_id, candidate_id FROM offline_ballot WHERE zone_id = $1
	`, zoneID)
}

func selections(ctx context.Context, q Querier, query, zoneID string) ([]models.Selection, error) {
	rows, err := q.QueryContext(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ballots: %w", err)
	}
	defer rows.Close()

	var out []models.Selection
	for rows.Next() {
		var s models.Selection
		if err := rows.Scan(&s.VoterID, &s.CandidateID); err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

// CastOnlineBallot appends one online selection. A voter may hold at most
// zone.seats selections per zone.
func CastOnlineBallot(ctx context.Context, conn *sql.DB, voterID, zoneID, candidateID string) (models.OnlineBallot, error) {
	b := models.OnlineBallot{
		ID:          uuid.NewString(),
		VoterID:     voterID,
		ZoneID:      zoneID,
		CandidateID: candidateID,
		CastAt:      time.Now().UTC(),
	}
	err := appendSelection(ctx, conn, "online_ballot", voterID, zoneID, candidateID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO online_ballot (id, voter_id, zone_id, candidate_id, cast_at)
			VALUES ($1, $2, $3, $4, $5)
		`, b.ID, b.VoterID, b.ZoneID, b.CandidateID, b.CastAt)
		return err
	})
	if err != nil {
		return models.OnlineBallot{}, err
	}
	return b, nil
}

// RecordOfflineBallot appends one unmerged offline selection entered by an
// offline-vote admin.
func RecordOfflineBallot(ctx context.Context, conn *sql.DB, voterID, zoneID, candidateID, recordedBy string) (models.OfflineBallot, error) {
	b := models.OfflineBallot{
		ID:          uuid.NewString(),
		VoterID:     voterID,
		ZoneID:      zoneID,
		CandidateID: candidateID,
		RecordedBy:  recordedBy,
		RecordedAt:  time.Now().UTC(),
	}
	err := appendSelection(ctx, conn, "offline_ballot", voterID, zoneID, candidateID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO offline_ballot (id, voter_id, zone_id, candidate_id, recorded_by, recorded_at, merged)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		`, b.ID, b.VoterID, b.ZoneID, b.CandidateID, b.RecordedBy, b.RecordedAt)
		return err
	})
	if err != nil {
		return models.OfflineBallot{}, err
	}
	return b, nil
}

// appendSelection validates a selection and runs insert in one transaction.
// table is one of the two ballot tables, never user input.
func appendSelection(ctx context.Context, conn *sql.DB, table, voterID, zoneID, candidateID string, insert func(tx *sql.Tx) error) error {
	if voterID == "" || zoneID == "" || candidateID == "" {
		return fmt.Errorf("voter_id, zone_id and candidate_id are required: %w", models.ErrInvalidArgument)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	zone, err := GetZone(ctx, tx, zoneID)
	if err != nil {
		return err
	}
	if !zone.Active {
		return fmt.Errorf("zone %s is not active: %w", zoneID, models.ErrInvalidArgument)
	}

	candidate, err := GetCandidate(ctx, tx, candidateID)
	if err != nil {
		return err
	}
	if candidate.ZoneID != zone.ID || candidate.ElectionCategory != zone.ElectionCategory {
		return fmt.Errorf("candidate %s does not stand in zone %s: %w", candidateID, zoneID, models.ErrInvalidArgument)
	}

	// Touching the voter's roll entry locks it, so concurrent selections by
	// the same voter serialize before the slot count below.
	res, err := tx.ExecContext(ctx, `
		UPDATE voter_assignment SET zone_id = zone_id
		WHERE voter_id = $1 AND election_category = $2 AND zone_id = $3
	`, voterID, zone.ElectionCategory, zone.ID)
	if err != nil {
		return fmt.Errorf("failed to lock voter assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("voter is not registered in zone %s: %w", zoneID, models.ErrPermissionDenied)
	}

	var used int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE voter_id = $1 AND zone_id = $2`,
		voterID, zone.ID,
	).Scan(&used)
	if err != nil {
		return fmt.Errorf("failed to count selections: %w", err)
	}
	if used >= zone.Seats {
		return fmt.Errorf("all %d selections already used: %w", zone.Seats, models.ErrConflict)
	}

	if err := insert(tx); err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("candidate already selected: %w", models.ErrConflict)
		}
		return fmt.Errorf("failed to insert ballot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ballot: %w", err)
	}
	return nil
}
