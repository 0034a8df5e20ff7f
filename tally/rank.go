// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"math"
	"sort"

	"github.com/danielhkuo/election-tally/models"
)

// Aggregate builds the tally view of one zone from the selections that belong
// to the requested view. Callers pass nil for the ballot set a view excludes.
// Offline selections count whether or not they have been merged.
func Aggregate(zone models.Zone, candidates []models.Candidate, online, offline []models.Selection, view string, registered int) models.ZoneTallyView {
	entries := make(map[string]*models.CandidateTally, len(candidates))
	for _, c := range candidates {
		entries[c.ID] = &models.CandidateTally{
			CandidateID: c.ID,
			Name:        c.Name,
			Kind:        c.Kind,
		}
	}

	entry := func(candidateID string) *models.CandidateTally {
		e, ok := entries[candidateID]
		if !ok {
			// Ballot for a candidate missing from the registry: count it anyway
			e = &models.CandidateTally{CandidateID: candidateID, Kind: models.KindNominee}
			entries[candidateID] = e
		}
		return e
	}

	participated := make(map[string]struct{})
	for _, s := range online {
		entry(s.CandidateID).OnlineVotes++
		participated[s.VoterID] = struct{}{}
	}
	for _, s := range offline {
		entry(s.CandidateID).OfflineVotes++
		participated[s.VoterID] = struct{}{}
	}

	ranked := make([]models.CandidateTally, 0, len(entries))
	for _, e := range entries {
		e.TotalVotes = e.OnlineVotes + e.OfflineVotes
		ranked = append(ranked, *e)
	}
	Rank(ranked)

	winners := WinnerCount(zone.Seats, len(ranked))
	for i := range ranked {
		ranked[i].Rank = i + 1 // 1-indexed ranking
		ranked[i].Winner = i < winners
	}

	return models.ZoneTallyView{
		ZoneID:             zone.ID,
		ZoneCode:           zone.Code,
		ZoneName:           zone.Name,
		Category:           zone.ElectionCategory,
		View:               view,
		Seats:              zone.Seats,
		Ranked:             ranked,
		Winners:            append([]models.CandidateTally{}, ranked[:winners]...),
		Others:             append([]models.CandidateTally{}, ranked[winners:]...),
		TotalVoters:        registered,
		VotersParticipated: len(participated),
		TurnoutPercentage:  TurnoutPercentage(len(participated), registered),
	}
}

// Rank sorts candidates by total votes descending. Ties break on candidate ID
// ascending so the order is reproducible.
func Rank(c []models.CandidateTally) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].TotalVotes != c[j].TotalVotes {
			return c[i].TotalVotes > c[j].TotalVotes
		}
		return c[i].CandidateID < c[j].CandidateID
	})
}

// WinnerCount is min(seats, candidates); a zone with no seats has no winners
func WinnerCount(seats, candidates int) int {
	if seats <= 0 {
		return 0
	}
	if seats > candidates {
		return candidates
	}
	return seats
}

// TurnoutPercentage returns participated/total*100 rounded to two decimals,
// clamped to [0, 100]. Zero registered voters yields 0.
func TurnoutPercentage(participated, total int) float64 {
	if total <= 0 || participated <= 0 {
		return 0
	}
	p := float64(participated) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return math.Round(p*100) / 100
}
