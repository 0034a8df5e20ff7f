// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the election tally API server.

The service counts online and offline ballots per zone, merges offline
ballots into the official tally exactly once, and keeps results sealed until
two authorized principals approve their release.

# Starting the Server

	DATABASE_URL=file:tally.db ADMIN_KEY_SALT=... DECLARATION_SECRET=... \
	PRINCIPAL1_PHONE=+1555... PRINCIPAL2_PHONE=+1555... go run .

Or against PostgreSQL:

	go run . -t postgres -d "postgres://..."

A .env file in the working directory is read first.

# Configuration

Required settings:

  - DATABASE_URL (-d): connection string
  - ADMIN_KEY_SALT (--admin-salt): secret for admin key and code HMACs
  - DECLARATION_SECRET (--declaration-secret): shared secret opening a challenge
  - PRINCIPAL1_PHONE, PRINCIPAL2_PHONE: where one-time codes go

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - KAFKA_BROKERS, NOTIFY_TOPIC: code delivery; without brokers codes are logged

# Architecture

  - tally: on-demand zone rankings for the online, offline and merged views
  - reconcile: the one-shot offline merge
  - declaration: two-principal challenge, declaration gate, expiry sweeper
  - notify: one-time code delivery (Kafka or log)
  - store: zone, candidate and ballot queries
  - handlers, router, middleware: HTTP surface
  - metrics: Prometheus collectors served on /metrics
  - auth, db, cliparse, models: shared plumbing

See package documentation for each component.
*/
package main
