package config

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/evotsp/internal/opt"
	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/tsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML_OverridesDefaults(t *testing.T) {
	f, err := ParseYAML([]byte(`
mode: sa
generations: 2000
cooling: 0.99
selection: tournament
random: 25
checkpoint_interval: 30
`))
	require.NoError(t, err)

	want := solve.DefaultParams()
	want.Mode = solve.ModeSA
	want.Generations = 2000
	want.Cooling = 0.99
	want.Selection = "tournament"

	assert.Equal(t, want, f.Params)
	assert.Equal(t, 25, f.Random)
	assert.Equal(t, 30, f.CheckpointInterval)
}

func TestParseYAML_InlineCities(t *testing.T) {
	f, err := ParseYAML([]byte(`
cities:
  - {x: 0, y: 0}
  - {x: 0, y: 1}
  - {x: 1, y: 1}
`))
	require.NoError(t, err)

	cities, err := f.LoadCities(nil)
	require.NoError(t, err)
	assert.Equal(t, []tsp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}, cities)
}

func TestParseYAML_Errors(t *testing.T) {
	_, err := ParseYAML([]byte("mutation_rate: 1.5\n"))
	assert.ErrorIs(t, err, opt.ErrInvalidConfig)

	_, err = ParseYAML([]byte("random: 10\ncities_path: a.json\n"))
	assert.Error(t, err)

	_, err = ParseYAML([]byte("generations: [1, 2]\n"))
	assert.Error(t, err)
}

func TestLoad_ResolvesRelativeCitiesPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"),
		[]byte(`[{"x":0,"y":0},{"x":3,"y":0},{"x":3,"y":4}]`), 0644))
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cities_path: c.json\n"), 0644))

	f, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "c.json"), f.CitiesPath)

	cities, err := f.LoadCities(nil)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, tsp.TourLength(cities), 1e-12)
}

func TestLoadCities_RandomAndMissing(t *testing.T) {
	f := Default()
	_, err := f.LoadCities(nil)
	assert.ErrorIs(t, err, ErrNoCities)

	f.Random = 12
	cities, err := f.LoadCities(rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, cities, 12)
}
