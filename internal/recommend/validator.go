package recommend

import (
	"sort"
	"strings"

	"github.com/liber-ai/sommelier/internal/model"
)

// validateSingle reconciles a single-mode selection against the catalog.
// Unresolved wines are dropped, ranks and the best flag are repaired, and
// an empty result over a non-empty catalog falls back to a price ranking
// so the guest is never shown nothing when wines exist.
func validateSingle(raw []RawWine, filtered []model.Wine, featured []model.Wine) []model.RankedWine {
	ranked := resolveWines(raw, filtered)

	if len(ranked) == 0 {
		return fallbackRanking(filtered)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	// Dedupe by id, keeping the lowest rank (first after the sort).
	seen := make(map[int64]bool, len(ranked))
	out := ranked[:0]
	for _, r := range ranked {
		if seen[r.Wine.ID] {
			continue
		}
		seen[r.Wine.ID] = true
		out = append(out, r)
	}

	// Wines the model omitted go to the bottom, cheapest first, so the
	// result is always a full ranking of the filtered catalog.
	var missing []model.Wine
	for _, w := range filtered {
		if !seen[w.ID] {
			missing = append(missing, w)
		}
	}
	sort.SliceStable(missing, func(i, j int) bool { return missing[i].Price < missing[j].Price })
	for _, w := range missing {
		out = append(out, model.RankedWine{
			Wine:   w,
			Reason: "A reliable choice from our list at a fair price.",
		})
	}

	for i := range out {
		out[i].Rank = i + 1
	}

	repairBestFlag(out, featured)
	return out
}

// resolveWines promotes raw entries whose identity checks out: id first,
// then case-insensitive trimmed name. Missing ranks fall back to the
// entry's position, 1-based.
func resolveWines(raw []RawWine, filtered []model.Wine) []model.RankedWine {
	byID := make(map[int64]model.Wine, len(filtered))
	byName := make(map[string]model.Wine, len(filtered))
	for _, w := range filtered {
		byID[w.ID] = w
		byName[strings.ToLower(strings.TrimSpace(w.Name))] = w
	}

	out := make([]model.RankedWine, 0, len(raw))
	for i, rw := range raw {
		wine, ok := byID[rw.ID]
		if !ok {
			wine, ok = byName[strings.ToLower(strings.TrimSpace(rw.Name))]
		}
		if !ok {
			continue
		}
		rank := rw.Rank
		if rank <= 0 {
			rank = i + 1
		}
		out = append(out, model.RankedWine{
			Wine:   wine,
			Rank:   rank,
			Reason: rw.Reason,
			Best:   rw.Best,
		})
	}
	return out
}

// repairBestFlag enforces exactly one best=true on the rank-1 wine. When
// several entries claim it, the rank-1 wine wins, or the first featured
// wine present in the list.
func repairBestFlag(ranked []model.RankedWine, featured []model.Wine) {
	if len(ranked) == 0 {
		return
	}

	bestCount := 0
	for _, r := range ranked {
		if r.Best {
			bestCount++
		}
	}

	keeper := 0 // index of the entry that keeps the flag
	if bestCount > 1 {
		for _, f := range featured {
			for i, r := range ranked {
				if r.Wine.ID == f.ID && r.Best {
					keeper = i
					break
				}
			}
			if keeper != 0 {
				break
			}
		}
	}

	for i := range ranked {
		ranked[i].Best = i == keeper
	}
}

// fallbackRanking is the deterministic last resort: every filtered wine
// ranked by ascending price, cheapest marked best.
func fallbackRanking(filtered []model.Wine) []model.RankedWine {
	if len(filtered) == 0 {
		return nil
	}

	wines := make([]model.Wine, len(filtered))
	copy(wines, filtered)
	sort.SliceStable(wines, func(i, j int) bool { return wines[i].Price < wines[j].Price })

	out := make([]model.RankedWine, len(wines))
	for i, w := range wines {
		out[i] = model.RankedWine{
			Wine:   w,
			Rank:   i + 1,
			Reason: "A reliable choice from our list at a fair price.",
			Best:   i == 0,
		}
	}
	return out
}

// validateJourneys reconciles a journey-mode selection. A journey is
// accepted only at exactly the target size; the batch is accepted only
// with 2 or 3 accepted journeys, otherwise the whole batch is rejected
// and the caller falls back to the legacy path.
func validateJourneys(raw []RawJourney, filtered []model.Wine, target int) []model.Journey {
	if target <= 0 {
		return nil
	}

	var out []model.Journey
	for _, rj := range raw {
		resolved := resolveWines(rj.Wines, filtered)
		if len(resolved) != target {
			continue
		}
		wines := make([]model.Wine, len(resolved))
		for i, r := range resolved {
			wines[i] = r.Wine
		}
		out = append(out, model.Journey{
			Name:   rj.Name,
			Reason: rj.Reason,
			Wines:  wines,
		})
	}

	if len(out) < 2 || len(out) > 3 {
		return nil
	}
	return out
}
