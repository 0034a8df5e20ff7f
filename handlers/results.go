// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/election-tally/declaration"
	"github.com/danielhkuo/election-tally/middleware"
	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/tally"
)

// ResultsHandler serves merged results to the public once declared
type ResultsHandler struct {
	engine *tally.Engine
	gate   *declaration.Gate
}

func NewResultsHandler(engine *tally.Engine, gate *declaration.Gate) *ResultsHandler {
	return &ResultsHandler{engine: engine, gate: gate}
}

// GetResults handles GET /results/{category}
// Results are sealed until the declaration gate opens them.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	declared, err := h.gate.IsDeclared(r.Context())
	if err != nil {
		slog.Error("failed to read declaration state", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !declared {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results have not been declared")
		return
	}

	result, err := h.engine.ComputeCategoryTally(r.Context(), r.PathValue("category"), models.ViewMerged)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}
