// Package tiers selects the resolution tier whose (λ, δ) apply to an
// attention call at a given spatial resolution.
package tiers

import (
	"math"
	"sort"

	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/models"
)

// Select returns the index of the tier with the largest ResolutionEdge that
// is <= edge. Edges below the smallest tier select tier 0, edges above the
// largest select the last tier. tiers must be ascending and non-empty.
func Select(edge int, tiers []models.Tier) (int, error) {
	if len(tiers) == 0 {
		return 0, models.NewConfigurationError("multi_res.tiers", nil, "at least one tier is required")
	}
	// First tier strictly above edge; the one before it is nearest-below-or-equal.
	i := sort.Search(len(tiers), func(i int) bool {
		return tiers[i].ResolutionEdge > edge
	})
	if i == 0 {
		return 0, nil
	}
	return i - 1, nil
}

// Resolve returns the pair for edge, or upstream unchanged when multi-res is
// nil or disabled.
func Resolve(edge int, cfg *models.MultiResConfig, upstream models.ModulationPair) (models.ModulationPair, error) {
	if cfg == nil || !cfg.Enabled {
		return upstream, nil
	}
	i, err := Select(edge, cfg.Tiers)
	if err != nil {
		return models.ModulationPair{}, err
	}
	return cfg.Tiers[i].Pair(), nil
}

// EdgeFromTokens estimates the pixel edge of a square image from its image
// token count. patchSize <= 0 uses DefaultPatchSize.
func EdgeFromTokens(imageTokens, patchSize int) int {
	if imageTokens <= 0 {
		return 0
	}
	if patchSize <= 0 {
		patchSize = constants.DefaultPatchSize
	}
	side := int(math.Round(math.Sqrt(float64(imageTokens))))
	return side * patchSize
}
