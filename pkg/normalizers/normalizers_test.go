package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFacilityName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Aberarder Wind Farm", "aberarder wind farm"},
		{"collapses punctuation runs", "Carnedd-Wen (Phase 2)", "carnedd wen phase 2"},
		{"collapses internal whitespace", "Little  Cheyne   Court", "little cheyne court"},
		{"trims edges", "  Rampion Offshore ", "rampion offshore"},
		{"keeps digits", "Hornsea 2", "hornsea 2"},
		{"mixed punctuation and spaces", "St. John's / Solar & Battery", "st john s solar battery"},
		{"empty input", "", ""},
		{"punctuation only", "---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeFacilityName(tt.input))
		})
	}
}

func TestNormalizeCompany(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips ltd", "SSE Renewables Ltd", "sse renewables"},
		{"strips limited", "Banks Renewables Limited", "banks renewables"},
		{"strips plc", "ScottishPower PLC", "scottishpower"},
		{"strips llp", "Green Frog Power LLP", "green frog power"},
		{"strips holdings", "RWE Holdings", "rwe"},
		{"keeps non-suffix occurrences", "Limited Energy Co", "limited energy co"},
		{"plain name unchanged", "EDF Energy", "edf energy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCompany(tt.input))
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Run("built-in normalizers are registered", func(t *testing.T) {
		for _, name := range []string{"lowercase", "trim", "collapse_whitespace", "digits_only", "alphanumeric", "nfacility", "ncompany"} {
			_, ok := Get(name)
			assert.True(t, ok, "expected %s to be registered", name)
		}
	})

	t.Run("apply falls back to identity for unknown normalizer", func(t *testing.T) {
		assert.Equal(t, "UnChanged", Apply("UnChanged", "does_not_exist"))
	})

	t.Run("apply chain composes in order", func(t *testing.T) {
		result := ApplyChain("  The Wind-Farm  ", "nfacility")
		assert.Equal(t, "the wind farm", result)
	})
}
