// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/testutil"
)

func TestGetZone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	zoneID := testutil.CreateTestZone(t, db, models.CategoryA, "N1", 2)

	zone, err := GetZone(context.Background(), db, zoneID)
	if err != nil {
		t.Fatalf("GetZone() error = %v", err)
	}
	if zone.Seats != 2 || zone.ElectionCategory != models.CategoryA || !zone.Active {
		t.Errorf("Unexpected zone %+v", zone)
	}

	_, err = GetZone(context.Background(), db, "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListZones(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestZone(t, db, models.CategoryA, "S2", 1)
	testutil.CreateTestZone(t, db, models.CategoryA, "N1", 1)
	inactive := testutil.CreateTestZone(t, db, models.CategoryA, "Z9", 1)
	testutil.CreateTestZone(t, db, models.CategoryB, "N1", 1)

	if _, err := db.Exec(`UPDATE zone SET active = FALSE WHERE id = $1`, inactive); err != nil {
		t.Fatal(err)
	}

	all, err := ListZones(context.Background(), db, models.CategoryA, false)
	if err != nil {
		t.Fatalf("ListZones() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 zones in category A, got %d", len(all))
	}
	if all[0].Code != "N1" || all[1].Code != "S2" {
		t.Errorf("Expected zones ordered by code, got %s, %s", all[0].Code, all[1].Code)
	}

	active, err := ListZones(context.Background(), db, models.CategoryA, true)
	if err != nil {
		t.Fatalf("ListZones() error = %v", err)
	}
	if len(active) != 2 {
		t.Errorf("Expected 2 active zones, got %d", len(active))
	}
}

func TestCastOnlineBallot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	zoneID := testutil.CreateTestZone(t, db, models.CategoryA, "N1", 2)
	otherZone := testutil.CreateTestZone(t, db, models.CategoryA, "S1", 1)
	c1 := testutil.AddTestCandidate(t, db, zoneID, "c1", models.KindNominee)
	c2 := testutil.AddTestCandidate(t, db, zoneID, "c2", models.KindNominee)
	c3 := testutil.AddTestCandidate(t, db, zoneID, "c3", models.KindNominee)
	foreign := testutil.AddTestCandidate(t, db, otherZone, "s1", models.KindNominee)
	voters := testutil.RegisterTestVoters(t, db, zoneID, "v", 1)
	voter := voters[0]

	first, err := CastOnlineBallot(ctx, db, voter, zoneID, c1)
	if err != nil {
		t.Fatalf("First selection failed: %v", err)
	}
	if first.ID == "" || first.ZoneID != zoneID || first.CastAt.IsZero() {
		t.Errorf("Unexpected ballot %+v", first)
	}

	tests := []struct {
		name      string
		voter     string
		zone      string
		candidate string
		wantErr   error
	}{
		{"same candidate twice", voter, zoneID, c1, models.ErrConflict},
		{"candidate from another zone", voter, zoneID, foreign, models.ErrInvalidArgument},
		{"unknown candidate", voter, zoneID, "nope", models.ErrNotFound},
		{"unknown zone", voter, "nope", c2, models.ErrNotFound},
		{"unregistered voter", "stranger", zoneID, c2, models.ErrPermissionDenied},
		{"missing voter", "", zoneID, c2, models.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CastOnlineBallot(ctx, db, tt.voter, tt.zone, tt.candidate)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CastOnlineBallot() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Second seat is still free
	if _, err := CastOnlineBallot(ctx, db, voter, zoneID, c2); err != nil {
		t.Fatalf("Second selection failed: %v", err)
	}

	// Seats exhausted
	_, err = CastOnlineBallot(ctx, db, voter, zoneID, c3)
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict once seats are used, got %v", err)
	}

	sel, err := OnlineSelections(ctx, db, zoneID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sel) != 2 {
		t.Errorf("Expected 2 stored selections, got %d", len(sel))
	}
}

func TestCastOnlineBallot_InactiveZone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	zoneID := testutil.CreateTestZone(t, db, models.CategoryC, "N1", 1)
	c1 := testutil.AddTestCandidate(t, db, zoneID, "c1", models.KindNominee)
	voters := testutil.RegisterTestVoters(t, db, zoneID, "v", 1)

	if _, err := db.Exec(`UPDATE zone SET active = FALSE WHERE id = $1`, zoneID); err != nil {
		t.Fatal(err)
	}

	_, err := CastOnlineBallot(context.Background(), db, voters[0], zoneID, c1)
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for inactive zone, got %v", err)
	}
}

func TestRecordOfflineBallot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	zoneID := testutil.CreateTestZone(t, db, models.CategoryB, "N1", 1)
	c1 := testutil.AddTestCandidate(t, db, zoneID, "c1", models.KindNominee)
	nota := testutil.AddTestCandidate(t, db, zoneID, "c0", models.KindNoneOfAbove)
	voters := testutil.RegisterTestVoters(t, db, zoneID, "v", 1)

	ballot, err := RecordOfflineBallot(ctx, db, voters[0], zoneID, nota, "clerk-1")
	if err != nil {
		t.Fatalf("RecordOfflineBallot() error = %v", err)
	}
	if ballot.ID == "" || ballot.Merged || ballot.RecordedBy != "clerk-1" || ballot.CandidateID != nota {
		t.Errorf("Unexpected ballot %+v", ballot)
	}
	id := ballot.ID

	// One seat, already used
	_, err = RecordOfflineBallot(ctx, db, voters[0], zoneID, c1, "clerk-1")
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	var merged bool
	var recordedBy string
	err = db.QueryRow(`SELECT merged, recorded_by FROM offline_ballot WHERE id = $1`, id).Scan(&merged, &recordedBy)
	if err != nil {
		t.Fatal(err)
	}
	if merged {
		t.Error("New offline ballot must start unmerged")
	}
	if recordedBy != "clerk-1" {
		t.Errorf("Expected recorded_by clerk-1, got %s", recordedBy)
	}
}
