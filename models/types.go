package models

import "time"

// Election categories
const (
	CategoryA = "A"
	CategoryB = "B"
	CategoryC = "C"
)

// Tally views
const (
	ViewOnline  = "online"
	ViewOffline = "offline"
	ViewMerged  = "merged"
)

// Candidate kinds
const (
	KindNominee     = "nominee"
	KindNoneOfAbove = "none_of_above"
)

// Admin roles supplied by the login subsystem
const (
	RoleResults      = "results"
	RoleOfflineEntry = "offline_entry"
)

// Declaration challenge states, in order
const (
	StateLocked        = "LOCKED"
	StatePasswordOK    = "PASSWORD_OK"
	StateCode1Sent     = "CODE1_SENT"
	StateCode1Verified = "CODE1_VERIFIED"
	StateCode2Sent     = "CODE2_SENT"
	StateCode2Verified = "CODE2_VERIFIED"
	StateTokenIssued   = "TOKEN_ISSUED"
	StateExpired       = "EXPIRED"
)

// Code submission outcomes
const (
	OutcomeVerified    = "verified"
	OutcomeInvalidCode = "invalid_code"
	OutcomeExpired     = "expired"
)

func ValidCategory(c string) bool {
	return c == CategoryA || c == CategoryB || c == CategoryC
}

func ValidView(v string) bool {
	return v == ViewOnline || v == ViewOffline || v == ViewMerged
}

// Request types

type CastBallotRequest struct {
	VoterID     string `json:"voter_id"`
	ZoneID      string `json:"zone_id"`
	CandidateID string `json:"candidate_id"`
}

type StartChallengeRequest struct {
	Secret string `json:"secret"`
}

type SubmitCodeRequest struct {
	Principal int    `json:"principal"`
	Code      string `json:"code"`
}

// Response types

type CastBallotResponse struct {
	BallotID string `json:"ballot_id"`
}

type MergeResult struct {
	BatchID     string    `json:"batch_id,omitempty"`
	MergedCount int       `json:"merged_count"`
	VoterCount  int       `json:"voter_count"`
	MergedAt    time.Time `json:"merged_at"`

	// AlreadySatisfied is set when there was nothing left to merge
	AlreadySatisfied bool `json:"already_satisfied"`
}

type PendingOffline struct {
	Category    string `json:"category"`
	BallotCount int    `json:"ballot_count"`
	VoterCount  int    `json:"voter_count"`
}

type Challenge struct {
	ID             string    `json:"challenge_id"`
	State          string    `json:"state"`
	ExpiresAt      time.Time `json:"expires_at"`
	DeliveryFailed bool      `json:"delivery_failed,omitempty"`
}

type CodeResult struct {
	State          string `json:"state"`
	Outcome        string `json:"outcome"`
	DeliveryFailed bool   `json:"delivery_failed,omitempty"`
}

type CapabilityToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type DeclarationStatus struct {
	Declared    bool       `json:"declared"`
	DeclaredAt  *time.Time `json:"declared_at,omitempty"`
	DeclaredBy  *string    `json:"declared_by,omitempty"`
	DeclaredAgo string     `json:"declared_ago,omitempty"`
}

type GateResult struct {
	Status           DeclarationStatus `json:"status"`
	AlreadySatisfied bool              `json:"already_satisfied"`
}

// Domain types

type Zone struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	Name             string `json:"name"`
	ElectionCategory string `json:"election_category"`
	Seats            int    `json:"seats"`
	Active           bool   `json:"active"`
}

type Candidate struct {
	ID               string `json:"id"`
	ZoneID           string `json:"zone_id"`
	ElectionCategory string `json:"election_category"`
	Name             string `json:"name"`
	Kind             string `json:"kind"`
}

type OnlineBallot struct {
	ID          string    `json:"id"`
	VoterID     string    `json:"-"` // Never expose in JSON
	ZoneID      string    `json:"zone_id"`
	CandidateID string    `json:"candidate_id"`
	CastAt      time.Time `json:"cast_at"`
}

type OfflineBallot struct {
	ID           string     `json:"id"`
	VoterID      string     `json:"-"` // Never expose in JSON
	ZoneID       string     `json:"zone_id"`
	CandidateID  string     `json:"candidate_id"`
	RecordedBy   string     `json:"recorded_by"`
	RecordedAt   time.Time  `json:"recorded_at"`
	Merged       bool       `json:"merged"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	MergeBatchID *string    `json:"merge_batch_id,omitempty"`
}

// Selection is one voter's pick of one candidate, online or offline
type Selection struct {
	VoterID     string
	CandidateID string
}

// Tally result types

type CandidateTally struct {
	CandidateID  string `json:"candidate_id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	OnlineVotes  int    `json:"online_votes"`
	OfflineVotes int    `json:"offline_votes"`
	TotalVotes   int    `json:"total_votes"`
	Rank         int    `json:"rank"` // 1-indexed ranking
	Winner       bool   `json:"winner"`
}

type ZoneTallyView struct {
	ZoneID             string           `json:"zone_id"`
	ZoneCode           string           `json:"zone_code"`
	ZoneName           string           `json:"zone_name"`
	Category           string           `json:"category"`
	View               string           `json:"view"`
	Seats              int              `json:"seats"`
	Ranked             []CandidateTally `json:"ranked"`
	Winners            []CandidateTally `json:"winners"`
	Others             []CandidateTally `json:"others"`
	TotalVoters        int              `json:"total_voters"`
	VotersParticipated int              `json:"voters_participated"`
	TurnoutPercentage  float64          `json:"turnout_percentage"`
}

type CategoryTally struct {
	Category string          `json:"category"`
	View     string          `json:"view"`
	Zones    []ZoneTallyView `json:"zones"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
