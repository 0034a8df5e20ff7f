// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/election-tally/metrics"
	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/store"
)

// Engine computes zone tallies on demand. It never writes.
type Engine struct {
	db     *sql.DB
	txOpts *sql.TxOptions
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// WithSnapshotReads makes every tally read from one repeatable-read snapshot.
// Use it on PostgreSQL; SQLite transactions are already serialized.
func (e *Engine) WithSnapshotReads() *Engine {
	e.txOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return e
}

// ComputeZoneTally ranks the candidates of one zone for the given view
func (e *Engine) ComputeZoneTally(ctx context.Context, zoneID, category, view string) (models.ZoneTallyView, error) {
	if !models.ValidCategory(category) {
		return models.ZoneTallyView{}, fmt.Errorf("unknown category %q: %w", category, models.ErrInvalidArgument)
	}
	if !models.ValidView(view) {
		return models.ZoneTallyView{}, fmt.Errorf("unknown view %q: %w", view, models.ErrInvalidArgument)
	}

	tx, err := e.db.BeginTx(ctx, e.txOpts)
	if err != nil {
		return models.ZoneTallyView{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	zone, err := store.GetZone(ctx, tx, zoneID)
	if err != nil {
		return models.ZoneTallyView{}, err
	}
	if zone.ElectionCategory != category {
		return models.ZoneTallyView{}, fmt.Errorf("zone %s in category %s: %w", zoneID, category, models.ErrNotFound)
	}

	return e.computeZone(ctx, tx, zone, view)
}

// ComputeCategoryTally returns the tally of every active zone in a category
func (e *Engine) ComputeCategoryTally(ctx context.Context, category, view string) (models.CategoryTally, error) {
	if !models.ValidCategory(category) {
		return models.CategoryTally{}, fmt.Errorf("unknown category %q: %w", category, models.ErrInvalidArgument)
	}
	if !models.ValidView(view) {
		return models.CategoryTally{}, fmt.Errorf("unknown view %q: %w", view, models.ErrInvalidArgument)
	}

	tx, err := e.db.BeginTx(ctx, e.txOpts)
	if err != nil {
		return models.CategoryTally{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	zones, err := store.ListZones(ctx, tx, category, true)
	if err != nil {
		return models.CategoryTally{}, err
	}

	result := models.CategoryTally{Category: category, View: view, Zones: []models.ZoneTallyView{}}
	for _, zone := range zones {
		zv, err := e.computeZone(ctx, tx, zone, view)
		if err != nil {
			return models.CategoryTally{}, err
		}
		result.Zones = append(result.Zones, zv)
	}

	return result, nil
}

func (e *Engine) computeZone(ctx context.Context, q store.Querier, zone models.Zone, view string) (models.ZoneTallyView, error) {
	start := time.Now()
	defer func() {
		metrics.TallyDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	}()

	candidates, err := store.ListCandidates(ctx, q, zone.ID, zone.ElectionCategory)
	if err != nil {
		return models.ZoneTallyView{}, err
	}

	var online, offline []models.Selection
	if view == models.ViewOnline || view == models.ViewMerged {
		if online, err = store.OnlineSelections(ctx, q, zone.ID); err != nil {
			return models.ZoneTallyView{}, err
		}
	}
	if view == models.ViewOffline || view == models.ViewMerged {
		if offline, err = store.OfflineSelections(ctx, q, zone.ID); err != nil {
			return models.ZoneTallyView{}, err
		}
	}

	registered, err := store.CountRegisteredVoters(ctx, q, zone.ID, zone.ElectionCategory)
	if err != nil {
		return models.ZoneTallyView{}, err
	}

	return Aggregate(zone, candidates, online, offline, view, registered), nil
}
