package ctxspec

// presets is the catalogue of specifications offered to model selection.
var presets = []Spec{
	Dummy(),

	NewGeneric(1, 0, 0),
	NewGeneric(2, 0, 0),
	NewGeneric(4, 0, 0),
	NewGeneric(8, 0, 0),

	NewGeneric(0, 1, 0),
	NewGeneric(0, 2, 0),
	NewGeneric(0, 3, 0),

	NewGeneric(0, 0, 2),
	NewGeneric(0, 0, 4),
	NewGeneric(0, 0, 8),

	NewGeneric(4, 1, 2),
	NewGeneric(1, 3, 2),
	NewGeneric(2, 1, 6),
	NewGeneric(6, 2, 0),
	NewGeneric(3, 3, 0),
	NewGeneric(8, 0, 4),
	NewGeneric(4, 0, 3),
	NewGeneric(4, 0, 6),
	NewGeneric(0, 2, 6),
	NewGeneric(0, 3, 3),
	NewGeneric(4, 2, 6),
	NewGeneric(5, 2, 4),
	NewGeneric(3, 3, 4),

	NewLight(4, 1, 2, 16),
	NewLight(8, 1, 2, 16),
	NewLight(8, 0, 0, 1),
	NewLight(0, 3, 3, 8),
	NewLight(0, 3, 3, 16),
	NewLight(0, 4, 3, 8),
	NewLight(0, 4, 3, 16),
	NewLight(0, 4, 0, 8),
	NewLight(0, 4, 0, 16),
	NewLight(3, 3, 0, 8),
	NewLight(3, 3, 0, 16),
	NewLight(2, 3, 2, 8),
	NewLight(0, 4, 2, 8),
	NewLight(2, 3, 2, 16),
	NewLight(0, 4, 2, 16),
	NewLight(2, 4, 2, 8),
	NewLight(4, 3, 4, 16),
	NewLight(4, 3, 2, 8),
	NewLight(0, 3, 0, 4),
	NewLight(0, 3, 0, 8),
	NewLight(0, 3, 0, 16),
	NewLight(0, 3, 0, 32),
	NewLight(4, 4, 4, 8),
	NewLight(4, 4, 4, 16),
	NewLight(5, 4, 4, 16),
	NewLight(3, 5, 4, 16),
}

// Presets returns a copy of the catalogue.
func Presets() []Spec {
	out := make([]Spec, len(presets))
	copy(out, presets)
	return out
}

// Preset looks a catalogue entry up by name.
func Preset(name string) (Spec, bool) {
	s, err := Parse(name)
	if err != nil {
		return Spec{}, false
	}
	for _, p := range presets {
		if p == s {
			return p, true
		}
	}
	return Spec{}, false
}

// AcidPresets are the catalogue entries that only look at acid history.
func AcidPresets() []Spec {
	var out []Spec
	for _, p := range presets {
		if p.QualityOrder == 0 {
			out = append(out, p)
		}
	}
	return out
}
