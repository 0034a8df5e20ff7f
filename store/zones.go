// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/election-tally/models"
)

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetZone loads a zone by ID
func GetZone(ctx context.Context, q Querier, zoneID string) (models.Zone, error) {
	var z models.Zone
	err := q.QueryRowContext(ctx, `
		SELECT id, code, name, election_category, seats, active
		FROM zone
		WHERE id = $1
	`, zoneID).Scan(&z.ID, &z.Code, &z.Name, &z.ElectionCategory, &z.Seats, &z.Active)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Zone{}, fmt.Errorf("zone %s: %w", zoneID, models.ErrNotFound)
	}
	if err != nil {
		return models.Zone{}, fmt.Errorf("failed to query zone: %w", err)
	}
	return z, nil
}

// ListZones returns the zones of a category ordered by code
func ListZones(ctx context.Context, q Querier, category string, activeOnly bool) ([]models.Zone, error) {
	query := `
		SELECT id, code, name, election_category, seats, active
		FROM zone
		WHERE election_category = $1`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY code, id`

	rows, err := q.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	zones := []models.Zone{}
	for rows.Next() {
		var z models.Zone
		if err := rows.Scan(&z.ID, &z.Code, &z.Name, &z.ElectionCategory, &z.Seats, &z.Active); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, z)
	}

	return zones, rows.Err()
}

// GetCandidate loads a candidate by ID
func GetCandidate(ctx context.Context, q Querier, candidateID string) (models.Candidate, error) {
	var c models.Candidate
	err := q.QueryRowContext(ctx, `
		SELECT id, zone_id, election_category, name, kind
		FROM candidate
		WHERE id = $1
	`, candidateID).Scan(&c.ID, &c.ZoneID, &c.ElectionCategory, &c.Name, &c.Kind)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Candidate{}, fmt.Errorf("candidate %s: %w", candidateID, models.ErrNotFound)
	}
	if err != nil {
		return models.Candidate{}, fmt.Errorf("failed to query candidate: %w", err)
	}
	return c, nil
}

// ListCandidates returns a zone's candidates for a category ordered by ID
func ListCandidates(ctx context.Context, q Querier, zoneID, category string) ([]models.Candidate, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, zone_id, election_category, name, kind
		FROM candidate
		WHERE zone_id = $1 AND election_category = $2
		ORDER BY id
	`, zoneID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.ZoneID, &c.ElectionCategory, &c.Name, &c.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// CountRegisteredVoters counts the voter roll entries for a zone in a category
func CountRegisteredVoters(ctx context.Context, q Querier, zoneID, category string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM voter_assignment
		WHERE zone_id = $1 AND election_category = $2
	`, zoneID, category).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count registered voters: %w", err)
	}
	return count, nil
}
