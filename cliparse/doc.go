// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (if present), so local
development can keep secrets out of the shell history.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - AdminKeySalt: Secret for admin key HMAC (required)
  - DeclarationSecret: Shared secret that opens a declaration challenge (required)
  - Principal1Phone, Principal2Phone: where one-time codes are delivered (required)
  - CodeTTL (5m), ChallengeTTL (15m), TokenTTL (30m)
  - MaxCodeAttempts (5), MergeMaxAttempts (3), SweepInterval (1m)
  - KafkaBrokers, NotifyTopic: code delivery; empty brokers logs codes instead

# Environment Variables

Flags fall back to environment variables:

	PORT               → -p
	DATABASE_URL       → -d
	DATABASE_TYPE      → -t
	ADMIN_KEY_SALT     → --admin-salt
	DECLARATION_SECRET → --declaration-secret
	PRINCIPAL1_PHONE   → --principal1-phone
	PRINCIPAL2_PHONE   → --principal2-phone
	CODE_TTL           → --code-ttl
	CHALLENGE_TTL      → --challenge-ttl
	TOKEN_TTL          → --token-ttl
	MAX_CODE_ATTEMPTS  → --max-code-attempts
	MERGE_MAX_ATTEMPTS → --merge-attempts
	SWEEP_INTERVAL     → --sweep-interval
	KAFKA_BROKERS      → --kafka-brokers
	NOTIFY_TOPIC       → --notify-topic

CLI flags take precedence over environment variables.
*/
package cliparse
