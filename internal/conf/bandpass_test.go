package conf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBandpassSpec(t *testing.T) {
	bands, err := ParseBandpassSpec("wood thrush:300-2000")
	require.NoError(t, err)
	require.Equal(t, map[string]BandpassBand{
		"wood thrush": {Low: 300, High: 2000},
	}, bands)
}

func TestParseBandpassSpecMultiple(t *testing.T) {
	bands, err := ParseBandpassSpec(" wood thrush : 300-2000 , ovenbird:1000-9000,")
	require.NoError(t, err)
	require.Equal(t, map[string]BandpassBand{
		"wood thrush": {Low: 300, High: 2000},
		"ovenbird":    {Low: 1000, High: 9000},
	}, bands)
}

func TestParseBandpassSpecEmpty(t *testing.T) {
	bands, err := ParseBandpassSpec("")
	require.NoError(t, err)
	require.Nil(t, bands)

	bands, err = ParseBandpassSpec("   ")
	require.NoError(t, err)
	require.Nil(t, bands)
}

func TestParseBandpassSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"missing colon", "wood thrush 300-2000"},
		{"missing dash", "ovenbird:3002000"},
		{"bad low", "ovenbird:low-2000"},
		{"bad high", "ovenbird:300-high"},
		{"low above high", "ovenbird:2000-300"},
		{"negative low", "ovenbird:-300-2000"},
		{"duplicate class", "ovenbird:300-2000,ovenbird:500-900"},
		{"empty class", ":300-2000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBandpassSpec(tt.spec)
			require.Error(t, err, "spec %q", tt.spec)
		})
	}
}
