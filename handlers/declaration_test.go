// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/declaration"
	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/testutil"
)

type declarationFixture struct {
	handler  *DeclarationHandler
	notifier *testutil.RecordingNotifier
	cfg      cliparse.Config
}

func newDeclarationFixture(t *testing.T) *declarationFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	notifier := &testutil.RecordingNotifier{}
	return &declarationFixture{
		handler:  NewDeclarationHandler(declaration.NewAuthority(db, cfg, notifier), declaration.NewGate(db, cfg), cfg),
		notifier: notifier,
		cfg:      cfg,
	}
}

func (f *declarationFixture) call(h http.HandlerFunc, method, path, id string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	req := testutil.MakeRequest(method, path, body, headers)
	if id != "" {
		req.SetPathValue("id", id)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// walk takes a challenge from the shared secret to a capability token over HTTP
func (f *declarationFixture) walk(t *testing.T) string {
	t.Helper()

	w := f.call(f.handler.StartChallenge, "POST", "/declaration/challenges", "", models.StartChallengeRequest{Secret: f.cfg.DeclarationSecret}, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var ch models.Challenge
	testutil.AssertJSON(t, w, &ch)
	path := "/declaration/challenges/" + ch.ID

	w = f.call(f.handler.SubmitCode, "POST", path+"/codes", ch.ID,
		models.SubmitCodeRequest{Principal: 1, Code: f.notifier.LastCode(t, f.cfg.Principal1Phone)}, nil)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = f.call(f.handler.SubmitCode, "POST", path+"/codes", ch.ID,
		models.SubmitCodeRequest{Principal: 2, Code: f.notifier.LastCode(t, f.cfg.Principal2Phone)}, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var res models.CodeResult
	testutil.AssertJSON(t, w, &res)
	if res.State != models.StateCode2Verified {
		t.Fatalf("Expected %s, got %+v", models.StateCode2Verified, res)
	}

	w = f.call(f.handler.IssueToken, "POST", path+"/token", ch.ID, nil, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var token models.CapabilityToken
	testutil.AssertJSON(t, w, &token)
	return token.Token
}

func TestStartChallengeHandler(t *testing.T) {
	f := newDeclarationFixture(t)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"correct secret", models.StartChallengeRequest{Secret: f.cfg.DeclarationSecret}, http.StatusCreated},
		{"wrong secret", models.StartChallengeRequest{Secret: "guess"}, http.StatusUnauthorized},
		{"invalid JSON", 42, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.call(f.handler.StartChallenge, "POST", "/declaration/challenges", "", tt.body, nil)
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}
}

func TestSubmitCodeHandler(t *testing.T) {
	f := newDeclarationFixture(t)

	w := f.call(f.handler.StartChallenge, "POST", "/declaration/challenges", "", models.StartChallengeRequest{Secret: f.cfg.DeclarationSecret}, nil)
	var ch models.Challenge
	testutil.AssertJSON(t, w, &ch)
	path := "/declaration/challenges/" + ch.ID + "/codes"

	t.Run("principal 2 out of turn", func(t *testing.T) {
		w := f.call(f.handler.SubmitCode, "POST", path, ch.ID, models.SubmitCodeRequest{Principal: 2, Code: "123456"}, nil)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("wrong code re-prompts", func(t *testing.T) {
		code := f.notifier.LastCode(t, f.cfg.Principal1Phone)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		w := f.call(f.handler.SubmitCode, "POST", path, ch.ID, models.SubmitCodeRequest{Principal: 1, Code: wrong}, nil)
		testutil.AssertStatus(t, w, http.StatusOK)
		var res models.CodeResult
		testutil.AssertJSON(t, w, &res)
		if res.Outcome != models.OutcomeInvalidCode || res.State != models.StateCode1Sent {
			t.Errorf("Expected invalid_code in %s, got %+v", models.StateCode1Sent, res)
		}
	})

	t.Run("unknown challenge", func(t *testing.T) {
		w := f.call(f.handler.SubmitCode, "POST", "/declaration/challenges/nope/codes", "nope", models.SubmitCodeRequest{Principal: 1, Code: "123456"}, nil)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("resend", func(t *testing.T) {
		w := f.call(f.handler.ResendCode, "POST", "/declaration/challenges/"+ch.ID+"/resend", ch.ID, nil, nil)
		testutil.AssertStatus(t, w, http.StatusOK)
		if f.notifier.Count(f.cfg.Principal1Phone) != 2 {
			t.Errorf("Expected a second code to principal 1")
		}
	})

	t.Run("token too early", func(t *testing.T) {
		w := f.call(f.handler.IssueToken, "POST", "/declaration/challenges/"+ch.ID+"/token", ch.ID, nil, nil)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("get challenge", func(t *testing.T) {
		w := f.call(f.handler.GetChallenge, "GET", "/declaration/challenges/"+ch.ID, ch.ID, nil, nil)
		testutil.AssertStatus(t, w, http.StatusOK)
		var got models.Challenge
		testutil.AssertJSON(t, w, &got)
		if got.ID != ch.ID || got.State != models.StateCode1Sent {
			t.Errorf("Unexpected challenge %+v", got)
		}
	})
}

func TestDeclareRevokeHandlers(t *testing.T) {
	f := newDeclarationFixture(t)
	token := f.walk(t)
	admin := testutil.AdminHeaders(f.cfg, "alice", models.RoleResults)
	withToken := map[string]string{"X-Declaration-Token": token}
	for k, v := range admin {
		withToken[k] = v
	}

	status := func() models.DeclarationStatus {
		w := f.call(f.handler.GetStatus, "GET", "/declaration/status", "", nil, nil)
		testutil.AssertStatus(t, w, http.StatusOK)
		var s models.DeclarationStatus
		testutil.AssertJSON(t, w, &s)
		return s
	}

	t.Run("missing token", func(t *testing.T) {
		w := f.call(f.handler.Declare, "POST", "/declaration/declare", "", nil, admin)
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("token without admin identity", func(t *testing.T) {
		w := f.call(f.handler.Declare, "POST", "/declaration/declare", "", nil, map[string]string{"X-Declaration-Token": token})
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("declare twice", func(t *testing.T) {
		for i, wantSatisfied := range []bool{false, true} {
			w := f.call(f.handler.Declare, "POST", "/declaration/declare", "", nil, withToken)
			testutil.AssertStatus(t, w, http.StatusOK)
			var res models.GateResult
			testutil.AssertJSON(t, w, &res)
			if res.AlreadySatisfied != wantSatisfied || !res.Status.Declared {
				t.Errorf("Declare #%d: unexpected result %+v", i+1, res)
			}
		}
		s := status()
		if !s.Declared || s.DeclaredBy == nil || *s.DeclaredBy != "alice" || s.DeclaredAgo == "" {
			t.Errorf("Unexpected status %+v", s)
		}
	})

	t.Run("revoke twice", func(t *testing.T) {
		for i, wantSatisfied := range []bool{false, true} {
			w := f.call(f.handler.Revoke, "POST", "/declaration/revoke", "", nil, withToken)
			testutil.AssertStatus(t, w, http.StatusOK)
			var res models.GateResult
			testutil.AssertJSON(t, w, &res)
			if res.AlreadySatisfied != wantSatisfied || res.Status.Declared {
				t.Errorf("Revoke #%d: unexpected result %+v", i+1, res)
			}
		}
		if status().Declared {
			t.Error("Expected results sealed again")
		}
	})

	t.Run("spent token", func(t *testing.T) {
		w := f.call(f.handler.Declare, "POST", "/declaration/declare", "", nil, withToken)
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})
}
