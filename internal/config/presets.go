package config

import "sort"

// Named transition presets.
const (
	PresetBalanced       = "balanced"
	PresetHighPrecision  = "high-precision"
	PresetBroadDiscovery = "broad-discovery"
)

// DefaultAlgorithmVersion tags evidence bundles produced by this build.
const DefaultAlgorithmVersion = "transition-detector/1.0.0"

// Presets returns the named weight and threshold sets. Each call returns a
// fresh map so callers cannot mutate shared state.
func Presets() map[string]TransitionConfig {
	return map[string]TransitionConfig{
		PresetBalanced: {
			Preset:           PresetBalanced,
			AlgorithmVersion: DefaultAlgorithmVersion,
			Weights: WeightConfig{
				Base:        0.15,
				Agency:      0.25,
				Timing:      0.25,
				Competition: 0.20,
				Patent:      0.06,
				TechArea:    0.05,
				Text:        0.04,
			},
			Bands:   BandConfig{High: 0.85, Likely: 0.65},
			Window:  WindowConfig{MinDays: 0, MaxDays: 730},
			Vendor:  VendorConfig{FuzzyThreshold: 0.90},
			Signals: SignalToggles{Patent: true, TechArea: true, TextSimilarity: true},
			Patent:  PatentConfig{SimilarityThreshold: 0.7},
		},
		PresetHighPrecision: {
			Preset:           PresetHighPrecision,
			AlgorithmVersion: DefaultAlgorithmVersion,
			Weights: WeightConfig{
				Base:        0.10,
				Agency:      0.25,
				Timing:      0.25,
				Competition: 0.20,
				Patent:      0.08,
				TechArea:    0.06,
				Text:        0.06,
			},
			Bands:   BandConfig{High: 0.90, Likely: 0.75},
			Window:  WindowConfig{MinDays: 0, MaxDays: 365},
			Vendor:  VendorConfig{FuzzyThreshold: 0.95},
			Signals: SignalToggles{Patent: true, TechArea: true, TextSimilarity: true},
			Patent:  PatentConfig{SimilarityThreshold: 0.75},
		},
		PresetBroadDiscovery: {
			Preset:           PresetBroadDiscovery,
			AlgorithmVersion: DefaultAlgorithmVersion,
			Weights: WeightConfig{
				Base:        0.20,
				Agency:      0.25,
				Timing:      0.20,
				Competition: 0.15,
				Patent:      0.08,
				TechArea:    0.06,
				Text:        0.06,
			},
			Bands:   BandConfig{High: 0.80, Likely: 0.55},
			Window:  WindowConfig{MinDays: 0, MaxDays: 730},
			Vendor:  VendorConfig{FuzzyThreshold: 0.85},
			Signals: SignalToggles{Patent: true, TechArea: true, TextSimilarity: true},
			Patent:  PatentConfig{SimilarityThreshold: 0.6},
		},
	}
}

// DefaultTransitionConfig returns the balanced preset.
func DefaultTransitionConfig() TransitionConfig {
	return Presets()[PresetBalanced]
}

// presetNames returns the preset names in sorted order.
func presetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
