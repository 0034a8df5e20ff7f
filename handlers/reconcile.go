// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/middleware"
	"github.com/danielhkuo/election-tally/reconcile"
)

type ReconcileHandler struct {
	svc *reconcile.Service
	cfg cliparse.Config
}

func NewReconcileHandler(svc *reconcile.Service, cfg cliparse.Config) *ReconcileHandler {
	return &ReconcileHandler{svc: svc, cfg: cfg}
}

// Merge handles POST /categories/{category}/merge
// Offline entry admins are refused with 403 rather than a silent no-op.
func (h *ReconcileHandler) Merge(w http.ResponseWriter, r *http.Request) {
	admin, err := middleware.AdminIdentity(r, h.cfg.AdminKeySalt)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	category := r.PathValue("category")
	result, err := h.svc.MergeOfflineVotes(r.Context(), category, reconcile.Authorization{
		AdminID:  admin.ID,
		CanMerge: admin.CanMerge(),
	})
	if err != nil {
		slog.Warn("merge refused", "category", category, "admin_id", admin.ID, "error", err)
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// GetPending handles GET /categories/{category}/offline-pending
func (h *ReconcileHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.AdminIdentity(r, h.cfg.AdminKeySalt); err != nil {
		middleware.WriteError(w, err)
		return
	}

	pending, err := h.svc.PendingCount(r.Context(), r.PathValue("category"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, pending)
}
