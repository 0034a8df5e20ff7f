// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/tally"
	"github.com/danielhkuo/election-tally/testutil"
)

// seedZone builds a two-seat zone with three nominees: c1 has 2 online
// votes, c2 one online and one offline, c3 one offline.
func seedZone(t *testing.T, db *sql.DB) string {
	t.Helper()

	zoneID := testutil.CreateTestZone(t, db, models.CategoryA, "Z1", 2)
	c1 := testutil.AddTestCandidate(t, db, zoneID, "c1", models.KindNominee)
	c2 := testutil.AddTestCandidate(t, db, zoneID, "c2", models.KindNominee)
	c3 := testutil.AddTestCandidate(t, db, zoneID, "c3", models.KindNominee)
	voters := testutil.RegisterTestVoters(t, db, zoneID, "v", 4)

	testutil.CastTestOnline(t, db, voters[0], zoneID, c1)
	testutil.CastTestOnline(t, db, voters[0], zoneID, c2)
	testutil.CastTestOnline(t, db, voters[1], zoneID, c1)
	testutil.RecordTestOffline(t, db, voters[2], zoneID, c2)
	testutil.RecordTestOffline(t, db, voters[2], zoneID, c3)

	return zoneID
}

func TestGetZoneTally(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewTallyHandler(tally.NewEngine(db), cfg)
	zoneID := seedZone(t, db)
	admin := testutil.AdminHeaders(cfg, "alice", models.RoleResults)

	tests := []struct {
		name           string
		zoneID         string
		query          string
		headers        map[string]string
		expectedStatus int
		check          func(t *testing.T, v models.ZoneTallyView)
	}{
		{
			name:           "online view",
			zoneID:         zoneID,
			query:          "?category=A&view=online",
			headers:        admin,
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, v models.ZoneTallyView) {
				if len(v.Winners) != 2 || v.Winners[0].CandidateID != "c1" || v.Winners[1].CandidateID != "c2" {
					t.Errorf("Expected winners [c1 c2], got %+v", v.Winners)
				}
				if v.VotersParticipated != 2 || v.TurnoutPercentage != 50 {
					t.Errorf("Expected 2 voters and 50%% turnout, got %d and %v", v.VotersParticipated, v.TurnoutPercentage)
				}
			},
		},
		{
			name:           "merged view is the default",
			zoneID:         zoneID,
			query:          "?category=A",
			headers:        admin,
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, v models.ZoneTallyView) {
				if v.View != models.ViewMerged {
					t.Errorf("Expected merged view, got %s", v.View)
				}
				if v.Ranked[1].CandidateID != "c2" || v.Ranked[1].TotalVotes != 2 || v.Ranked[1].OfflineVotes != 1 {
					t.Errorf("Expected c2 with 1 online and 1 offline vote, got %+v", v.Ranked[1])
				}
				if v.VotersParticipated != 3 || v.TurnoutPercentage != 75 {
					t.Errorf("Expected 3 voters and 75%% turnout, got %d and %v", v.VotersParticipated, v.TurnoutPercentage)
				}
			},
		},
		{
			name:           "offline entry admins can read",
			zoneID:         zoneID,
			query:          "?category=A&view=offline",
			headers:        testutil.AdminHeaders(cfg, "bob", models.RoleOfflineEntry),
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, v models.ZoneTallyView) {
				if v.VotersParticipated != 1 {
					t.Errorf("Expected 1 offline voter, got %d", v.VotersParticipated)
				}
			},
		},
		{"missing admin key", zoneID, "?category=A", nil, http.StatusUnauthorized, nil},
		{"missing category", zoneID, "", admin, http.StatusBadRequest, nil},
		{"bad view", zoneID, "?category=A&view=final", admin, http.StatusBadRequest, nil},
		{"wrong category", zoneID, "?category=B", admin, http.StatusNotFound, nil},
		{"unknown zone", "nope", "?category=A", admin, http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/zones/"+tt.zoneID+"/tally"+tt.query, nil, tt.headers)
			req.SetPathValue("id", tt.zoneID)
			w := httptest.NewRecorder()

			handler.GetZoneTally(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.check != nil && w.Code == http.StatusOK {
				var v models.ZoneTallyView
				testutil.AssertJSON(t, w, &v)
				tt.check(t, v)
			}
		})
	}
}

func TestGetCategoryTally(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewTallyHandler(tally.NewEngine(db), cfg)
	seedZone(t, db)
	testutil.CreateTestZone(t, db, models.CategoryA, "Z2", 1)

	req := testutil.MakeRequest("GET", "/categories/A/tally?view=online", nil, testutil.AdminHeaders(cfg, "alice", models.RoleResults))
	req.SetPathValue("category", "A")
	w := httptest.NewRecorder()

	handler.GetCategoryTally(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var result models.CategoryTally
	testutil.AssertJSON(t, w, &result)
	if result.Category != "A" || len(result.Zones) != 2 {
		t.Errorf("Expected 2 zones in category A, got %+v", result)
	}

	req = testutil.MakeRequest("GET", "/categories/Q/tally", nil, testutil.AdminHeaders(cfg, "alice", models.RoleResults))
	req.SetPathValue("category", "Q")
	w = httptest.NewRecorder()
	handler.GetCategoryTally(w, req)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}
