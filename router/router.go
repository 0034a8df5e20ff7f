// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/declaration"
	"github.com/danielhkuo/election-tally/handlers"
	"github.com/danielhkuo/election-tally/metrics"
	"github.com/danielhkuo/election-tally/middleware"
	"github.com/danielhkuo/election-tally/notify"
	"github.com/danielhkuo/election-tally/reconcile"
	"github.com/danielhkuo/election-tally/tally"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, notifier notify.Notifier) *http.ServeMux {
	mux := http.NewServeMux()

	engine := tally.NewEngine(db)
	if cfg.DatabaseType == "postgres" {
		engine = engine.WithSnapshotReads()
	}
	gate := declaration.NewGate(db, cfg)

	// Initialize handlers
	tallyHandler := handlers.NewTallyHandler(engine, cfg)
	reconcileHandler := handlers.NewReconcileHandler(reconcile.NewService(db, cfg.MergeMaxAttempts), cfg)
	ballotHandler := handlers.NewBallotHandler(db, cfg)
	declarationHandler := handlers.NewDeclarationHandler(declaration.NewAuthority(db, cfg, notifier), gate, cfg)
	resultsHandler := handlers.NewResultsHandler(engine, gate)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Tallies (admin, before and after declaration)
	mux.HandleFunc("GET /zones/{id}/tally", middleware.WithLogging(tallyHandler.GetZoneTally))
	mux.HandleFunc("GET /categories/{category}/tally", middleware.WithLogging(tallyHandler.GetCategoryTally))

	// Reconciliation (admin)
	mux.HandleFunc("POST /categories/{category}/merge", middleware.WithLogging(reconcileHandler.Merge))
	mux.HandleFunc("GET /categories/{category}/offline-pending", middleware.WithLogging(reconcileHandler.GetPending))

	// Ballots
	mux.HandleFunc("POST /ballots", middleware.WithLogging(ballotHandler.CastBallot))
	mux.HandleFunc("POST /offline-ballots", middleware.WithLogging(ballotHandler.RecordOfflineBallot))

	// Declaration challenge
	mux.HandleFunc("POST /declaration/challenges", middleware.WithLogging(declarationHandler.StartChallenge))
	mux.HandleFunc("GET /declaration/challenges/{id}", middleware.WithLogging(declarationHandler.GetChallenge))
	mux.HandleFunc("POST /declaration/challenges/{id}/codes", middleware.WithLogging(declarationHandler.SubmitCode))
	mux.HandleFunc("POST /declaration/challenges/{id}/resend", middleware.WithLogging(declarationHandler.ResendCode))
	mux.HandleFunc("POST /declaration/challenges/{id}/token", middleware.WithLogging(declarationHandler.IssueToken))

	// Declaration gate
	mux.HandleFunc("POST /declaration/declare", middleware.WithLogging(declarationHandler.Declare))
	mux.HandleFunc("POST /declaration/revoke", middleware.WithLogging(declarationHandler.Revoke))
	mux.HandleFunc("GET /declaration/status", middleware.WithLogging(declarationHandler.GetStatus))

	// Public results (sealed until declared)
	mux.HandleFunc("GET /results/{category}", middleware.WithLogging(resultsHandler.GetResults))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("election-tally API v1"))
	})

	return mux
}
