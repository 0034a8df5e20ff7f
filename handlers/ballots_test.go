// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/testutil"
)

func TestCastBallot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewBallotHandler(db, cfg)

	zoneID := testutil.CreateTestZone(t, db, models.CategoryB, "Z1", 1)
	c1 := testutil.AddTestCandidate(t, db, zoneID, "c1", models.KindNominee)
	c2 := testutil.AddTestCandidate(t, db, zoneID, "c2", models.KindNominee)
	voters := testutil.RegisterTestVoters(t, db, zoneID, "v", 2)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"valid ballot", models.CastBallotRequest{VoterID: voters[0], ZoneID: zoneID, CandidateID: c1}, http.StatusCreated},
		{"no free slot", models.CastBallotRequest{VoterID: voters[0], ZoneID: zoneID, CandidateID: c2}, http.StatusConflict},
		{"unregistered voter", models.CastBallotRequest{VoterID: "stranger", ZoneID: zoneID, CandidateID: c1}, http.StatusForbidden},
		{"unknown zone", models.CastBallotRequest{VoterID: voters[1], ZoneID: "nope", CandidateID: c1}, http.StatusNotFound},
		{"missing fields", models.CastBallotRequest{VoterID: voters[1]}, http.StatusBadRequest},
		{"invalid JSON", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/ballots", tt.body, nil)
			w := httptest.NewRecorder()

			handler.CastBallot(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus == http.StatusCreated {
				var resp models.CastBallotResponse
				testutil.AssertJSON(t, w, &resp)
				if resp.BallotID == "" {
					t.Error("Expected ballot id")
				}
			}
		})
	}
}

func TestRecordOfflineBallot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewBallotHandler(db, cfg)

	zoneID := testutil.CreateTestZone(t, db, models.CategoryC, "Z1", 1)
	c1 := testutil.AddTestCandidate(t, db, zoneID, "c1", models.KindNominee)
	voters := testutil.RegisterTestVoters(t, db, zoneID, "v", 1)
	body := models.CastBallotRequest{VoterID: voters[0], ZoneID: zoneID, CandidateID: c1}

	t.Run("results admin refused", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/offline-ballots", body, testutil.AdminHeaders(cfg, "alice", models.RoleResults))
		w := httptest.NewRecorder()
		handler.RecordOfflineBallot(w, req)
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})

	t.Run("offline entry admin records", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/offline-ballots", body, testutil.AdminHeaders(cfg, "bob", models.RoleOfflineEntry))
		w := httptest.NewRecorder()
		handler.RecordOfflineBallot(w, req)
		testutil.AssertStatus(t, w, http.StatusCreated)

		var recordedBy string
		if err := db.QueryRow(`SELECT recorded_by FROM offline_ballot`).Scan(&recordedBy); err != nil {
			t.Fatalf("Failed to read offline ballot: %v", err)
		}
		if recordedBy != "bob" {
			t.Errorf("Expected recorded_by bob, got %s", recordedBy)
		}
		if n := testutil.CountUnmerged(t, db); n != 1 {
			t.Errorf("Expected 1 unmerged ballot, got %d", n)
		}
	})
}
