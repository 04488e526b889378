package sensor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	t.Parallel()

	s2, err := Preset("sentinel2")
	require.NoError(t, err)
	b, err := s2.Band(NIR)
	require.NoError(t, err)
	assert.Equal(t, 7, b)

	// continuum removal needs these three wavelengths
	for _, r := range []Role{NIR, SWIR1, SWIR2} {
		w, err := s2.Wavelength(r)
		require.NoError(t, err)
		assert.Greater(t, w, 0.0)
	}

	l8, err := Preset("landsat8")
	require.NoError(t, err)
	nir, _ := l8.Band(NIR)
	bnir, _ := l8.Band(BNIR)
	assert.Equal(t, nir, bnir, "OLI has a single NIR band")
	_, err = l8.Band(RedEdge1)
	assert.Error(t, err, "landsat has no red edge")

	s1, err := Preset("sentinel1")
	require.NoError(t, err)
	_, err = s1.Band(VV)
	assert.NoError(t, err)

	_, err = Preset("modis")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sensor.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "custom",
		"bands": {"red": 0, "nir": 1},
		"wavelengths": {"red": 0.66, "nir": 0.86}
	}`), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", m.Name)
	b, err := m.Band(Red)
	require.NoError(t, err)
	assert.Equal(t, 0, b)
	_, err = m.Band(SWIR1)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"name":"x"}`), 0644))
	_, err = Load(empty)
	assert.Error(t, err)
}
