// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application and seeds the
// declaration_state singleton. Safe to call multiple times - uses IF NOT EXISTS.
// The DDL is portable between PostgreSQL and SQLite.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Zones (owned by registration, read-only here)
CREATE TABLE IF NOT EXISTS zone (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    election_category TEXT NOT NULL CHECK (election_category IN ('A', 'B', 'C')),
    seats INTEGER NOT NULL CHECK (seats >= 0),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    UNIQUE (election_category, code)
);

CREATE INDEX IF NOT EXISTS idx_zone_category ON zone(election_category);

-- Candidates (owned by candidate management, read-only here)
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    zone_id TEXT NOT NULL REFERENCES zone(id) ON DELETE CASCADE,
    election_category TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'nominee' CHECK (kind IN ('nominee', 'none_of_above'))
);

CREATE INDEX IF NOT EXISTS idx_candidate_zone_id ON candidate(zone_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_candidate_none_of_above
    ON candidate(zone_id, election_category) WHERE kind = 'none_of_above';

-- Voter roll: one zone per voter per category
CREATE TABLE IF NOT EXISTS voter_assignment (
    voter_id TEXT NOT NULL,
    election_category TEXT NOT NULL,
    zone_id TEXT NOT NULL REFERENCES zone(id) ON DELETE CASCADE,
    PRIMARY KEY (voter_id, election_category)
);

CREATE INDEX IF NOT EXISTS idx_voter_assignment_zone ON voter_assignment(zone_id, election_category);

-- Online ballots: one row per selection, append-only
CREATE TABLE IF NOT EXISTS online_ballot (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL,
    zone_id TEXT NOT NULL REFERENCES zone(id),
    candidate_id TEXT NOT NULL,
    cast_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (voter_id, zone_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_online_ballot_zone ON online_ballot(zone_id);

-- Offline ballots: entered by offline-vote admins, merged exactly once
CREATE TABLE IF NOT EXISTS offline_ballot (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL,
    zone_id TEXT NOT NULL REFERENCES zone(id),
    candidate_id TEXT NOT NULL,
    recorded_by TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    merged BOOLEAN NOT NULL DEFAULT FALSE,
    merged_at TIMESTAMP,
    merge_batch_id TEXT,
    UNIQUE (voter_id, zone_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_offline_ballot_zone ON offline_ballot(zone_id);
CREATE INDEX IF NOT EXISTS idx_offline_ballot_merged ON offline_ballot(merged, zone_id);

-- Merge audit trail
CREATE TABLE IF NOT EXISTS merge_batch (
    id TEXT PRIMARY KEY,
    election_category TEXT NOT NULL,
    merged_count INTEGER NOT NULL,
    voter_count INTEGER NOT NULL,
    merged_by TEXT NOT NULL,
    merged_at TIMESTAMP NOT NULL
);

-- Public declaration flag (single row)
CREATE TABLE IF NOT EXISTS declaration_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    declared BOOLEAN NOT NULL DEFAULT FALSE,
    declared_at TIMESTAMP,
    declared_by TEXT
);

INSERT INTO declaration_state (id, declared) VALUES (1, FALSE) ON CONFLICT (id) DO NOTHING;

-- Declaration challenges
CREATE TABLE IF NOT EXISTS declaration_challenge (
    id TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);

-- One-time codes, hashed
CREATE TABLE IF NOT EXISTS one_time_code (
    challenge_id TEXT NOT NULL REFERENCES declaration_challenge(id) ON DELETE CASCADE,
    purpose TEXT NOT NULL,
    code_hash TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    used_at TIMESTAMP,
    attempts INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (challenge_id, purpose)
);

-- Capability tokens minted from completed challenges, hashed
CREATE TABLE IF NOT EXISTS capability_token (
    challenge_id TEXT PRIMARY KEY REFERENCES declaration_challenge(id) ON DELETE CASCADE,
    token_hash TEXT NOT NULL,
    issued_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    declare_used_at TIMESTAMP,
    revoke_used_at TIMESTAMP
);
`
