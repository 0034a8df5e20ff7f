// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

  - CastBallotRequest: voter_id, zone_id, candidate_id
  - StartChallengeRequest: secret
  - SubmitCodeRequest: principal (1 or 2), code (6 digits)

# Response Types

  - MergeResult: batch_id, merged_count, voter_count, already_satisfied
  - Challenge: challenge_id, state, expires_at
  - CodeResult: state, outcome
  - CapabilityToken: token, expires_at
  - DeclarationStatus: declared, declared_at, declared_by
  - ZoneTallyView: ranked candidates, winners, others, turnout

# Domain Types

  - Zone, Candidate: registry data owned by candidate management
  - OnlineBallot, OfflineBallot: append-only ballot rows
  - Selection: one voter's pick, the unit the tally counts

# Constants

Election categories:

	CategoryA = "A"
	CategoryB = "B"
	CategoryC = "C"

Tally views:

	ViewOnline  = "online"
	ViewOffline = "offline"
	ViewMerged  = "merged"

Declaration challenge states, strictly in this order:

	LOCKED → PASSWORD_OK → CODE1_SENT → CODE1_VERIFIED →
	CODE2_SENT → CODE2_VERIFIED → TOKEN_ISSUED

EXPIRED is terminal and reachable from any state before TOKEN_ISSUED.

# Errors

Sentinel errors (ErrNotFound, ErrInvalidArgument, ErrPermissionDenied,
ErrUnauthenticated, ErrConflict, ErrUnavailable, ErrExpired) are wrapped by
the service packages and mapped to HTTP status codes by the middleware.
*/
package models
