package layers

import "github.com/nvandessel/grag/internal/models"

// StrategyPreset holds the documented defaults for a named strategy.
type StrategyPreset struct {
	Name        string
	Strategy    models.Strategy
	LambdaStart float64
	LambdaEnd   float64
	DeltaStart  float64
	DeltaEnd    float64
	Description string
	UseCase     string
}

// Presets maps every non-custom strategy to its defaults.
var Presets = map[models.Strategy]StrategyPreset{
	models.StrategyStructurePreserving: {
		Name:        "Structure Preserving",
		Strategy:    models.StrategyStructurePreserving,
		LambdaStart: 0.9, LambdaEnd: 1.2,
		DeltaStart: 0.9, DeltaEnd: 1.3,
		Description: "Gentle edits early, stronger late. Preserves structure while transforming details.",
		UseCase:     "Clean room workflow, architectural edits",
	},
	models.StrategySemanticFocused: {
		Name:        "Semantic Focused",
		Strategy:    models.StrategySemanticFocused,
		LambdaStart: 0.9, LambdaEnd: 0.9,
		DeltaStart: 1.0, DeltaEnd: 1.0,
		Description: "Strong edits in middle layers (semantics), preserve structure and details.",
		UseCase:     "Style transfer, object replacement",
	},
	models.StrategyDetailEnhancer: {
		Name:        "Detail Enhancer",
		Strategy:    models.StrategyDetailEnhancer,
		LambdaStart: 1.3, LambdaEnd: 1.3,
		DeltaStart: 1.3, DeltaEnd: 1.3,
		Description: "Strong edits at start/end, preserve middle semantics.",
		UseCase:     "Material changes, texture enhancement",
	},
	models.StrategyBalancedProgressive: {
		Name:        "Balanced Progressive",
		Strategy:    models.StrategyBalancedProgressive,
		LambdaStart: 1.0, LambdaEnd: 1.3,
		DeltaStart: 1.0, DeltaEnd: 1.3,
		Description: "Gradual increase from neutral to strong. Balanced approach.",
		UseCase:     "General editing, testing GRAG effects",
	},
}

// DefaultConfig returns the per-layer config for a named strategy with its
// documented endpoints. Custom falls back to the balanced_progressive endpoints.
func DefaultConfig(s models.Strategy, totalLayers int) models.PerLayerConfig {
	p, ok := Presets[s]
	if !ok {
		p = Presets[models.StrategyBalancedProgressive]
	}
	return models.PerLayerConfig{
		Strategy:    s,
		LambdaStart: p.LambdaStart,
		LambdaEnd:   p.LambdaEnd,
		DeltaStart:  p.DeltaStart,
		DeltaEnd:    p.DeltaEnd,
		TotalLayers: totalLayers,
	}
}
