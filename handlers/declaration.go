// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/declaration"
	"github.com/danielhkuo/election-tally/middleware"
	"github.com/danielhkuo/election-tally/models"
)

type DeclarationHandler struct {
	authority *declaration.Authority
	gate      *declaration.Gate
	cfg       cliparse.Config
}

func NewDeclarationHandler(authority *declaration.Authority, gate *declaration.Gate, cfg cliparse.Config) *DeclarationHandler {
	return &DeclarationHandler{authority: authority, gate: gate, cfg: cfg}
}

// StartChallenge handles POST /declaration/challenges
func (h *DeclarationHandler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.StartChallengeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ch, err := h.authority.StartChallenge(r.Context(), req.Secret)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, ch)
}

// GetChallenge handles GET /declaration/challenges/{id}
func (h *DeclarationHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := h.authority.GetChallenge(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, ch)
}

// SubmitCode handles POST /declaration/challenges/{id}/codes
// A wrong or expired code is a 200 with the outcome so the console can
// re-prompt.
func (h *DeclarationHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitCodeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.authority.SubmitCode(r.Context(), r.PathValue("id"), req.Principal, req.Code)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// ResendCode handles POST /declaration/challenges/{id}/resend
func (h *DeclarationHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	ch, err := h.authority.ResendCode(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, ch)
}

// IssueToken handles POST /declaration/challenges/{id}/token
func (h *DeclarationHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.authority.IssueToken(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, token)
}

// Declare handles POST /declaration/declare
func (h *DeclarationHandler) Declare(w http.ResponseWriter, r *http.Request) {
	h.setDeclared(w, r, true)
}

// Revoke handles POST /declaration/revoke
func (h *DeclarationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.setDeclared(w, r, false)
}

func (h *DeclarationHandler) setDeclared(w http.ResponseWriter, r *http.Request, declare bool) {
	admin, err := middleware.AdminIdentity(r, h.cfg.AdminKeySalt)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	token := r.Header.Get("X-Declaration-Token")

	var result models.GateResult
	if declare {
		result, err = h.gate.Declare(r.Context(), token, admin.ID)
	} else {
		result, err = h.gate.Revoke(r.Context(), token, admin.ID)
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// GetStatus handles GET /declaration/status
// Public; reads only the declaration row.
func (h *DeclarationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.gate.GetStatus(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, status)
}
