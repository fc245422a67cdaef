// Package config loads YAML run files for the CLI and server.
package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/tsp"
	"gopkg.in/yaml.v3"
)

// Side length of the square that random instances are drawn from.
const RandomExtent = 1000

// ErrNoCities is returned when a run file names no city source.
var ErrNoCities = errors.New("no cities: set cities, cities_path or random")

// File is a YAML run description. Search parameters are inlined at the top
// level; missing keys keep solve.DefaultParams.
//
//	cities_path: berlin52.tsp
//	mode: ga
//	generations: 2000
//	selection: tournament
type File struct {
	Cities     []tsp.Point `yaml:"cities,omitempty"`
	CitiesPath string      `yaml:"cities_path,omitempty"`
	Random     int         `yaml:"random,omitempty"`

	solve.Params `yaml:",inline"`

	DataDir            string `yaml:"data_dir,omitempty"`
	CheckpointInterval int    `yaml:"checkpoint_interval,omitempty"`
	LogLevel           string `yaml:"log_level,omitempty"`
}

// Default returns a File holding only defaults.
func Default() *File {
	return &File{Params: solve.DefaultParams()}
}

// ParseYAML parses a File from YAML bytes and validates it.
func ParseYAML(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return f, nil
}

// Load reads and validates a run file. A relative cities_path is resolved
// against the directory of path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	f, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	if f.CitiesPath != "" && !filepath.IsAbs(f.CitiesPath) {
		f.CitiesPath = filepath.Join(filepath.Dir(path), f.CitiesPath)
	}
	return f, nil
}

// Validate checks the search parameters and that at most one city source is set.
func (f *File) Validate() error {
	if err := f.Params.Validate(); err != nil {
		return err
	}

	sources := 0
	if len(f.Cities) > 0 {
		sources++
	}
	if f.CitiesPath != "" {
		sources++
	}
	if f.Random > 0 {
		sources++
	}
	if sources > 1 {
		return fmt.Errorf("cities, cities_path and random are mutually exclusive")
	}
	if f.Random < 0 {
		return fmt.Errorf("random must be non-negative, got %d", f.Random)
	}
	if f.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint_interval must be non-negative, got %d", f.CheckpointInterval)
	}
	return nil
}

// LoadCities resolves the configured city source. Random instances use rng.
func (f *File) LoadCities(rng *rand.Rand) ([]tsp.Point, error) {
	switch {
	case len(f.Cities) > 0:
		return f.Cities, nil
	case f.CitiesPath != "":
		return tsp.LoadCities(f.CitiesPath)
	case f.Random > 0:
		return tsp.RandomCities(f.Random, RandomExtent, RandomExtent, rng), nil
	default:
		return nil, ErrNoCities
	}
}
