// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/middleware"
	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/store"
)

type BallotHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewBallotHandler(db *sql.DB, cfg cliparse.Config) *BallotHandler {
	return &BallotHandler{db: db, cfg: cfg}
}

// CastBallot handles POST /ballots
// The login subsystem in front of this service has already authenticated
// the voter.
func (h *BallotHandler) CastBallot(w http.ResponseWriter, r *http.Request) {
	var req models.CastBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ballot, err := store.CastOnlineBallot(r.Context(), h.db, req.VoterID, req.ZoneID, req.CandidateID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	slog.Info("online ballot cast", "ballot_id", ballot.ID, "zone_id", ballot.ZoneID)
	middleware.JSONResponse(w, http.StatusCreated, models.CastBallotResponse{BallotID: ballot.ID})
}

// RecordOfflineBallot handles POST /offline-ballots
// Only offline entry admins record paper ballots; they stay out of every
// tally view except OFFLINE until a results admin merges them.
func (h *BallotHandler) RecordOfflineBallot(w http.ResponseWriter, r *http.Request) {
	admin, err := middleware.AdminIdentity(r, h.cfg.AdminKeySalt)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if admin.Role != models.RoleOfflineEntry {
		middleware.ErrorResponse(w, http.StatusForbidden, "Only offline entry admins may record offline ballots")
		return
	}

	var req models.CastBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ballot, err := store.RecordOfflineBallot(r.Context(), h.db, req.VoterID, req.ZoneID, req.CandidateID, admin.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	slog.Info("offline ballot recorded", "ballot_id", ballot.ID, "zone_id", ballot.ZoneID, "recorded_by", ballot.RecordedBy)
	middleware.JSONResponse(w, http.StatusCreated, models.CastBallotResponse{BallotID: ballot.ID})
}
