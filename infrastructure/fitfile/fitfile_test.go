package fitfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/helixml/linefit/domain/fit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<SpectralFit>
  <CompositeSpectrum SpectrumFile="q1.dat" Chi2="123.4" Pixels="100" Params="3">
    <Absorber id="H" ionName="H I" N="15.5" b="20.0" z="2.34" NLocked="false" bLocked="FALSE" zLocked="false"/>
    <ContinuumPoint id="c0" x="1210" y="1" xLocked="True" yLocked="false" yError="0.01"/>
    <Region start="1210" end="1220"/>
    <View zoom="2"><Panel name="top"/></View>
  </CompositeSpectrum>
</SpectralFit>
`

func TestDecode(t *testing.T) {
	m, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	require.Equal(t, 1, m.NumAbsorbers())
	a := m.AbsorberAt(0)
	assert.Equal(t, "H", a.ID())
	assert.Equal(t, "H I", a.Ion())
	assert.Equal(t, 15.5, a.N())
	assert.Equal(t, 20.0, a.B())
	assert.Equal(t, 2.34, a.Z())
	assert.Len(t, a.Unlocked(), 3)

	require.Equal(t, 1, m.NumContinuumPoints())
	x, _ := m.ContinuumAt(0).Param(fit.AttrX)
	y, _ := m.ContinuumAt(0).Param(fit.AttrY)
	assert.True(t, x.Locked, "booleans parse case-insensitively")
	assert.Equal(t, 0.01, y.Error)

	require.Len(t, m.Regions(), 1)
	assert.Equal(t, 1210.0, m.Regions()[0].Start())
	assert.Equal(t, 123.4, m.ChiSquare())
	assert.Equal(t, 97, m.DOF())
	assert.Equal(t, "q1.dat", m.DatasetPath())

	aux := m.Auxiliary()
	require.Len(t, aux, 1)
	assert.Equal(t, "View", aux[0].Name)
	assert.Contains(t, aux[0].Inner, `<Panel name="top"/>`)
}

func TestRoundTrip(t *testing.T) {
	region, err := fit.NewRegion(1210, 1220)
	require.NoError(t, err)
	original, err := fit.NewModel(
		[]fit.Absorber{fit.NewAbsorber("H", "H I", 15.5, 20.0, 2.34)},
		nil,
		[]fit.Region{region},
	)
	require.NoError(t, err)

	var first bytes.Buffer
	require.NoError(t, Encode(&first, original))
	decoded, err := Decode(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, Encode(&second, decoded))
	assert.Equal(t, first.String(), second.String())

	a := decoded.AbsorberAt(0)
	assert.Equal(t, "H I", a.Ion())
	for _, attr := range fit.AbsorberAttributes {
		want, _ := original.AbsorberAt(0).Param(attr)
		got, _ := a.Param(attr)
		assert.Equal(t, want, got, "attribute %s", attr)
	}
	assert.Equal(t, original.Regions(), decoded.Regions())
}

func TestRoundTrip_PreservesUnknownElements(t *testing.T) {
	m, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m))
	again, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.Auxiliary(), again.Auxiliary())
	assert.Equal(t, m.ContinuumPoints(), again.ContinuumPoints())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not xml", body: "{"},
		{name: "missing ion", body: `<SpectralFit><CompositeSpectrum><Absorber id="H" N="1" b="1" z="1"/></CompositeSpectrum></SpectralFit>`},
		{name: "missing N", body: `<SpectralFit><CompositeSpectrum><Absorber id="H" ionName="H I" b="1" z="1"/></CompositeSpectrum></SpectralFit>`},
		{name: "bad float", body: `<SpectralFit><CompositeSpectrum><ContinuumPoint x="abc" y="1"/></CompositeSpectrum></SpectralFit>`},
		{name: "bad pixels", body: `<SpectralFit><CompositeSpectrum Pixels="many"></CompositeSpectrum></SpectralFit>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := Decode(strings.NewReader(`<SpectralFit><CompositeSpectrum><Region start="2" end="1"/></CompositeSpectrum></SpectralFit>`))
	assert.ErrorIs(t, err, fit.ErrInvertedRegion)
}

func TestFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fit.xml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "q1.dat"), m.DatasetPath())

	out := filepath.Join(dir, "out.xml")
	require.NoError(t, WriteFile(out, m))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `SpectrumFile="q1.dat"`)

	again, err := ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, m.DatasetPath(), again.DatasetPath())
	assert.True(t, m.AbsorberAt(0).Equal(*again.AbsorberAt(0)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}
