// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the election tally API.

# Handler Types

Each handler is a thin struct over the service it exposes:

  - TallyHandler: zone and category tallies for admins
  - ReconcileHandler: offline ballot merge and pending counts
  - BallotHandler: online and offline ballot entry
  - DeclarationHandler: challenge, token, declare and revoke
  - ResultsHandler: the public results page, sealed until declared

Handlers decode JSON, call the service, and hand any error to
middleware.WriteError so every endpoint maps error kinds the same way.

# Admin Identity

Admin endpoints read X-Admin-ID, X-Admin-Role and X-Admin-Key through
middleware.AdminIdentity. Offline entry admins may record offline ballots
but never merge them.

# Declaration Flow

	POST /declaration/challenges            → StartChallenge (code to principal 1)
	POST /declaration/challenges/{id}/codes → SubmitCode (principal 1, then 2)
	POST /declaration/challenges/{id}/token → IssueToken
	POST /declaration/declare               → Declare (X-Declaration-Token)

A wrong code answers 200 with outcome "invalid_code" so the console can
re-prompt without losing the challenge.
*/
package handlers
