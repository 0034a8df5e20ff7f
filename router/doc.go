// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the election tally API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, notifier)

The notifier delivers one-time codes to the two principals.

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Tallies (admin headers X-Admin-ID, X-Admin-Role, X-Admin-Key):

	GET /zones/{id}/tally?category=A&view=merged
	GET /categories/{category}/tally?view=online

Reconciliation (admin; merge refused for offline entry admins):

	POST /categories/{category}/merge
	GET  /categories/{category}/offline-pending

Ballots:

	POST /ballots         - Online selection
	POST /offline-ballots - Offline selection (offline entry admins)

Declaration challenge:

	POST /declaration/challenges            - Start with shared secret
	GET  /declaration/challenges/{id}       - Current state
	POST /declaration/challenges/{id}/codes - Submit a principal's code
	POST /declaration/challenges/{id}/resend
	POST /declaration/challenges/{id}/token - Mint capability token

Declaration gate (admin headers plus X-Declaration-Token):

	POST /declaration/declare
	POST /declaration/revoke
	GET  /declaration/status - Public

Public results, 403 until declared:

	GET /results/{category}
*/
package router
