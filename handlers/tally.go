// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/middleware"
	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/tally"
)

type TallyHandler struct {
	engine *tally.Engine
	cfg    cliparse.Config
}

func NewTallyHandler(engine *tally.Engine, cfg cliparse.Config) *TallyHandler {
	return &TallyHandler{engine: engine, cfg: cfg}
}

// viewParam reads ?view=, defaulting to the merged view
func viewParam(r *http.Request) string {
	if v := r.URL.Query().Get("view"); v != "" {
		return v
	}
	return models.ViewMerged
}

// GetZoneTally handles GET /zones/{id}/tally?category=A&view=merged
// Any admin may read tallies before declaration.
func (h *TallyHandler) GetZoneTally(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.AdminIdentity(r, h.cfg.AdminKeySalt); err != nil {
		middleware.WriteError(w, err)
		return
	}

	zoneID := r.PathValue("id")
	category := r.URL.Query().Get("category")
	if category == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "category is required")
		return
	}

	view, err := h.engine.ComputeZoneTally(r.Context(), zoneID, category, viewParam(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// GetCategoryTally handles GET /categories/{category}/tally?view=merged
func (h *TallyHandler) GetCategoryTally(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.AdminIdentity(r, h.cfg.AdminKeySalt); err != nil {
		middleware.WriteError(w, err)
		return
	}

	result, err := h.engine.ComputeCategoryTally(r.Context(), r.PathValue("category"), viewParam(r))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}
