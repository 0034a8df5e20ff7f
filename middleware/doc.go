// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start and completion and records the request latency
histogram under the matched route pattern.

# Errors

Service packages return errors wrapping the sentinels in models.
WriteError maps them to a status code:

	ErrNotFound         → 404
	ErrInvalidArgument  → 400
	ErrUnauthenticated  → 401
	ErrPermissionDenied → 403
	ErrConflict         → 409
	ErrExpired          → 410
	ErrUnavailable      → 503 (with Retry-After)

Anything else is logged and returned as a bare 500.

# Admin Identity

The login subsystem forwards X-Admin-ID, X-Admin-Role and X-Admin-Key.
AdminIdentity verifies the key and returns the admin; Admin.CanMerge
enforces that offline entry admins cannot merge their own ballots.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.SubmitCodeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
