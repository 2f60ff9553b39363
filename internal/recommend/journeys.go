package recommend

import (
	"fmt"
	"math/rand"

	"github.com/liber-ai/sommelier/internal/model"
)

// journeySeedFactor keys the shuffle to the bottle count so the same
// request reproduces the same journeys while different party sizes see
// different slices of the list.
const journeySeedFactor = 42

// BuildJourneys deterministically partitions candidates into one or two
// journeys of bottleCount wines. A second journey is built only when at
// least twice the bottle count remains; if even one full journey cannot
// be formed, a single short journey takes whatever is available.
func BuildJourneys(candidates []model.Wine, bottleCount int) []model.Journey {
	if len(candidates) == 0 || bottleCount <= 0 {
		return nil
	}

	shuffled := make([]model.Wine, len(candidates))
	copy(shuffled, candidates)
	rng := rand.New(rand.NewSource(int64(bottleCount) * journeySeedFactor))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if len(shuffled) < bottleCount {
		return []model.Journey{makeJourney(1, shuffled)}
	}

	journeys := []model.Journey{makeJourney(1, shuffled[:bottleCount])}
	if len(shuffled) >= 2*bottleCount {
		journeys = append(journeys, makeJourney(2, shuffled[bottleCount:2*bottleCount]))
	}
	return journeys
}

func makeJourney(n int, wines []model.Wine) model.Journey {
	return model.Journey{
		Name:   fmt.Sprintf("Tasting journey %d", n),
		Reason: "A sequence from our list chosen to carry you through the meal.",
		Wines:  wines,
	}
}
