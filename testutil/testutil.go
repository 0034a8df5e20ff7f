// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/election-tally/auth"
	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/db"
	"github.com/danielhkuo/election-tally/notify"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full schema.
// Each call gets its own database; it is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3318,
		DatabaseURL:       "file::memory:",
		DatabaseType:      "sqlite",
		AdminKeySalt:      "test-admin-salt",
		DeclarationSecret: "test-declaration-secret",
		Principal1Phone:   "+15550001",
		Principal2Phone:   "+15550002",
		CodeTTL:           5 * time.Minute,
		ChallengeTTL:      15 * time.Minute,
		TokenTTL:          30 * time.Minute,
		MaxCodeAttempts:   5,
		SweepInterval:     time.Minute,
		MergeMaxAttempts:  3,
		NotifyTopic:       "declaration.otp",
	}
}

// CreateTestZone inserts an active zone and returns its ID
func CreateTestZone(t *testing.T, conn *sql.DB, category, code string, seats int) string {
	t.Helper()

	zoneID := "zone-" + category + "-" + code
	_, err := conn.Exec(`
		INSERT INTO zone (id, code, name, election_category, seats, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`, zoneID, code, "Zone "+code, category, seats)
	if err != nil {
		t.Fatalf("Failed to create test zone: %v", err)
	}

	return zoneID
}

// AddTestCandidate adds a candidate with a caller-chosen ID to a zone.
// kind is "nominee" or "none_of_above".
func AddTestCandidate(t *testing.T, conn *sql.DB, zoneID, candidateID, kind string) string {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO candidate (id, zone_id, election_category, name, kind)
		SELECT $1, id, election_category, $3, $4 FROM zone WHERE id = $2
	`, candidateID, zoneID, "Candidate "+candidateID, kind)
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	return candidateID
}

// RegisterTestVoters puts count voters named "<prefix>-<n>" on the roll of a zone
func RegisterTestVoters(t *testing.T, conn *sql.DB, zoneID, prefix string, count int) []string {
	t.Helper()

	voters := make([]string, count)
	for i := range voters {
		voters[i] = prefix + "-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
		_, err := conn.Exec(`
			INSERT INTO voter_assignment (voter_id, election_category, zone_id)
			SELECT $1, election_category, id FROM zone WHERE id = $2
		`, voters[i], zoneID)
		if err != nil {
			t.Fatalf("Failed to register test voter: %v", err)
		}
	}

	return voters
}

// CastTestOnline inserts an online selection without slot checks
func CastTestOnline(t *testing.T, conn *sql.DB, voterID, zoneID, candidateID string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO online_ballot (id, voter_id, zone_id, candidate_id, cast_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), voterID, zoneID, candidateID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create online ballot: %v", err)
	}
}

// RecordTestOffline inserts an unmerged offline selection without slot checks
func RecordTestOffline(t *testing.T, conn *sql.DB, voterID, zoneID, candidateID string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO offline_ballot (id, voter_id, zone_id, candidate_id, recorded_by, recorded_at, merged)
		VALUES ($1, $2, $3, $4, 'offline-admin', $5, FALSE)
	`, uuid.NewString(), voterID, zoneID, candidateID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create offline ballot: %v", err)
	}
}

// CountUnmerged returns the number of unmerged offline ballots
func CountUnmerged(t *testing.T, conn *sql.DB) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM offline_ballot WHERE merged = FALSE`).Scan(&n); err != nil {
		t.Fatalf("Failed to count unmerged ballots: %v", err)
	}
	return n
}

// AdminHeaders returns the identity headers the login subsystem would set
func AdminHeaders(cfg cliparse.Config, adminID, role string) map[string]string {
	return map[string]string{
		"X-Admin-ID":   adminID,
		"X-Admin-Role": role,
		"X-Admin-Key":  auth.GenerateAdminKey(auth.AdminSubject(adminID, role), cfg.AdminKeySalt),
	}
}

// RecordingNotifier captures deliveries instead of sending them
type RecordingNotifier struct {
	mu         sync.Mutex
	Deliveries []notify.Delivery
	Fail       error
}

func (n *RecordingNotifier) SendCode(ctx context.Context, d notify.Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Fail != nil {
		return n.Fail
	}
	n.Deliveries = append(n.Deliveries, d)
	return nil
}

// LastCode returns the most recent code delivered to phone
func (n *RecordingNotifier) LastCode(t *testing.T, phone string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.Deliveries) - 1; i >= 0; i-- {
		if n.Deliveries[i].Phone == phone {
			return n.Deliveries[i].Code
		}
	}
	t.Fatalf("No code delivered to %s", phone)
	return ""
}

// Count returns how many deliveries went to phone
func (n *RecordingNotifier) Count(phone string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, d := range n.Deliveries {
		if d.Phone == phone {
			count++
		}
	}
	return count
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
