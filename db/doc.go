// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema creation, and driver error classification.

# Connecting

Open picks the driver from the configured type and pings the database:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

PostgreSQL uses lib/pq; SQLite uses the pure-Go modernc.org/sqlite driver and
is limited to a single open connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes,
and seeds the declaration_state row only once.

# Tables

  - zone, candidate, voter_assignment: registry data (read-only here)
  - online_ballot: append-only online selections
  - offline_ballot: append-only paper selections with the merged flag
  - merge_batch: one audit row per effective merge
  - declaration_state: the single public "results declared" row
  - declaration_challenge, one_time_code, capability_token: declaration workflow

# Relationships

	zone 1──* candidate
	zone 1──* voter_assignment
	zone 1──* online_ballot
	zone 1──* offline_ballot
	merge_batch 1──* offline_ballot (via merge_batch_id)
	declaration_challenge 1──* one_time_code
	declaration_challenge 1──1 capability_token

# Errors

IsTransient recognizes contention worth retrying (serialization failure,
deadlock, lock timeout, SQLite busy). IsUniqueViolation recognizes duplicate
keys for both drivers.
*/
package db
