package atomic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `# ion  wavelength  f  gamma
H I 1025.7223 0.07912 1.897e8
H I 1215.6701 0.4164 6.265e8

D I 1215.3394 0.4164 6.265e8
CIV 1548.204 0.1899 2.643e8
CIV 1550.781 0.09475 2.628e8
`

func TestParse(t *testing.T) {
	table, err := Parse(strings.NewReader(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, 5, table.Len())
	assert.Equal(t, []string{"CIV", "D I", "H I"}, table.Ions())

	lines, err := table.Transitions("H I")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 1215.6701, lines[0].Wavelength())
	assert.Equal(t, 1025.7223, lines[1].Wavelength())
	assert.Equal(t, 0.4164, lines[0].Oscillator())
	assert.Equal(t, 6.265e8, lines[0].Damping())
	assert.Equal(t, "H I", lines[0].Ion())
}

func TestParse_DescendingWavelength(t *testing.T) {
	table, err := Parse(strings.NewReader(sampleTable))
	require.NoError(t, err)

	for _, ion := range table.Ions() {
		lines, err := table.Transitions(ion)
		require.NoError(t, err)
		for i := 1; i < len(lines); i++ {
			assert.Greater(t, lines[i-1].Wavelength(), lines[i].Wavelength(), ion)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "too few fields", input: "H I 1215.67"},
		{name: "bad number", input: "H I 1215.67 abc 6e8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestTable_UnknownIon(t *testing.T) {
	table := NewTable(nil)

	_, err := table.Transitions("Fe II")
	assert.ErrorIs(t, err, ErrUnknownIon)
	assert.False(t, table.Has("Fe II"))
}

func TestTable_TransitionsReturnsCopy(t *testing.T) {
	table := NewTable([]Transition{NewTransition("H I", 1215.67, 0.4164, 6.265e8)})

	lines, err := table.Transitions("H I")
	require.NoError(t, err)
	lines[0] = NewTransition("X", 1, 1, 1)

	again, err := table.Transitions("H I")
	require.NoError(t, err)
	assert.Equal(t, "H I", again[0].Ion())
}
