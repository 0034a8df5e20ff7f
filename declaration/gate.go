// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package declaration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/election-tally/auth"
	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/metrics"
	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/store"
)

// Gate owns the single declaration flag that controls public visibility of
// merged results.
type Gate struct {
	db  *sql.DB
	cfg cliparse.Config
	now func() time.Time
}

func NewGate(db *sql.DB, cfg cliparse.Config) *Gate {
	return &Gate{
		db:  db,
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Declare publishes results. A token may declare once; declaring when
// results are already public succeeds with AlreadySatisfied and leaves the
// token unused.
func (g *Gate) Declare(ctx context.Context, token, adminID string) (models.GateResult, error) {
	return g.set(ctx, token, adminID, true)
}

// Revoke withdraws a declaration under the same token rules as Declare.
func (g *Gate) Revoke(ctx context.Context, token, adminID string) (models.GateResult, error) {
	return g.set(ctx, token, adminID, false)
}

func (g *Gate) set(ctx context.Context, token, adminID string, declare bool) (models.GateResult, error) {
	action, usedColumn := "revoke", "revoke_used_at"
	if declare {
		action, usedColumn = "declare", "declare_used_at"
	}

	result, err := g.apply(ctx, token, adminID, declare, usedColumn)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "rejected"
	case result.AlreadySatisfied:
		outcome = "noop"
	}
	metrics.GateActions.WithLabelValues(action, outcome).Inc()

	if err != nil {
		slog.Warn("declaration gate rejected", "action", action, "admin_id", adminID, "error", err)
		return models.GateResult{}, err
	}
	if !result.AlreadySatisfied {
		slog.Info("declaration state changed", "action", action, "admin_id", adminID)
	}
	return result, nil
}

func (g *Gate) apply(ctx context.Context, token, adminID string, declare bool, usedColumn string) (models.GateResult, error) {
	if adminID == "" {
		return models.GateResult{}, fmt.Errorf("admin id required: %w", models.ErrInvalidArgument)
	}

	challengeID, _, err := auth.SplitCapabilityToken(token)
	if err != nil {
		return models.GateResult{}, fmt.Errorf("%v: %w", err, models.ErrUnauthenticated)
	}

	now := g.now()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return models.GateResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var hash string
	var expiresAt time.Time
	var usedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT token_hash, expires_at, `+usedColumn+`
		FROM capability_token WHERE challenge_id = $1
	`, challengeID).Scan(&hash, &expiresAt, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GateResult{}, fmt.Errorf("unknown capability token: %w", models.ErrUnauthenticated)
	}
	if err != nil {
		return models.GateResult{}, fmt.Errorf("failed to query token: %w", err)
	}

	if !auth.EqualHash(auth.HashSecret(g.cfg.DeclarationSecret, token), hash) {
		return models.GateResult{}, fmt.Errorf("capability token mismatch: %w", models.ErrUnauthenticated)
	}
	if now.After(expiresAt) {
		return models.GateResult{}, fmt.Errorf("capability token expired: %w", models.ErrUnauthenticated)
	}

	status, err := readStatus(ctx, tx)
	if err != nil {
		return models.GateResult{}, err
	}
	if status.Declared == declare {
		return models.GateResult{Status: status, AlreadySatisfied: true}, nil
	}
	if usedAt.Valid {
		return models.GateResult{}, fmt.Errorf("token already used to %s: %w", actionVerb(declare), models.ErrPermissionDenied)
	}

	var res sql.Result
	if declare {
		res, err = tx.ExecContext(ctx, `
			UPDATE declaration_state SET declared = TRUE, declared_at = $1, declared_by = $2
			WHERE id = 1 AND declared = FALSE
		`, now, adminID)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE declaration_state SET declared = FALSE, declared_at = NULL, declared_by = NULL
			WHERE id = 1 AND declared = TRUE
		`)
	}
	if err != nil {
		return models.GateResult{}, fmt.Errorf("failed to update declaration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Someone else got there first; the requested state holds
		status, err := readStatus(ctx, tx)
		if err != nil {
			return models.GateResult{}, err
		}
		return models.GateResult{Status: status, AlreadySatisfied: true}, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE capability_token SET `+usedColumn+` = $1
		WHERE challenge_id = $2 AND `+usedColumn+` IS NULL
	`, now, challengeID)
	if err != nil {
		return models.GateResult{}, fmt.Errorf("failed to consume token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.GateResult{}, fmt.Errorf("token already used to %s: %w", actionVerb(declare), models.ErrPermissionDenied)
	}

	if err := tx.Commit(); err != nil {
		return models.GateResult{}, fmt.Errorf("failed to commit declaration: %w", err)
	}

	status = models.DeclarationStatus{Declared: declare}
	if declare {
		status.DeclaredAt = &now
		status.DeclaredBy = &adminID
		status.DeclaredAgo = humanize.Time(now)
	}
	return models.GateResult{Status: status}, nil
}

func actionVerb(declare bool) string {
	if declare {
		return "declare"
	}
	return "revoke"
}

// GetStatus reports whether results are public.
func (g *Gate) GetStatus(ctx context.Context) (models.DeclarationStatus, error) {
	return readStatus(ctx, g.db)
}

// IsDeclared is the read the public results path gates on.
func (g *Gate) IsDeclared(ctx context.Context) (bool, error) {
	status, err := readStatus(ctx, g.db)
	if err != nil {
		return false, err
	}
	return status.Declared, nil
}

func readStatus(ctx context.Context, q store.Querier) (models.DeclarationStatus, error) {
	var status models.DeclarationStatus
	var declaredAt sql.NullTime
	var declaredBy sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT declared, declared_at, declared_by FROM declaration_state WHERE id = 1
	`).Scan(&status.Declared, &declaredAt, &declaredBy)
	if err != nil {
		return models.DeclarationStatus{}, fmt.Errorf("failed to query declaration state: %w", err)
	}

	if declaredAt.Valid {
		status.DeclaredAt = &declaredAt.Time
		status.DeclaredAgo = humanize.Time(declaredAt.Time)
	}
	if declaredBy.Valid {
		status.DeclaredBy = &declaredBy.String
	}
	return status, nil
}
