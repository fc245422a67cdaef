package tsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCities reads a city list from path. The format follows the extension:
// .json and .yaml/.yml hold a list of {x, y} objects, .tsp is TSPLIB with a
// NODE_COORD_SECTION.
func LoadCities(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cities file: %w", err)
	}
	defer f.Close()

	var cities []Point
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cities, err = ParseJSON(f)
	case ".yaml", ".yml":
		cities, err = ParseYAML(f)
	case ".tsp":
		cities, err = ParseTSPLIB(f)
	default:
		return nil, fmt.Errorf("unsupported cities file extension: %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cities, nil
}

// ParseJSON decodes a JSON array of {"x": .., "y": ..} objects.
func ParseJSON(r io.Reader) ([]Point, error) {
	var cities []Point
	if err := json.NewDecoder(r).Decode(&cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// ParseYAML decodes a YAML sequence of {x, y} mappings.
func ParseYAML(r io.Reader) ([]Point, error) {
	var cities []Point
	if err := yaml.NewDecoder(r).Decode(&cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// ParseTSPLIB reads the NODE_COORD_SECTION (or DISPLAY_DATA_SECTION) of a
// TSPLIB file. Node ids are ignored; cities keep file order.
func ParseTSPLIB(r io.Reader) ([]Point, error) {
	scanner := bufio.NewScanner(r)
	var cities []Point
	inSection := false
	line := 0

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if !inSection {
			switch fields[0] {
			case "NODE_COORD_SECTION", "DISPLAY_DATA_SECTION":
				inSection = true
			case "EDGE_WEIGHT_SECTION":
				return nil, fmt.Errorf("line %d: explicit edge weights are not supported", line)
			}
			continue
		}

		if fields[0] == "EOF" {
			break
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected \"id x y\", got %q", line, scanner.Text())
		}
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid x: %w", line, err)
		}
		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid y: %w", line, err)
		}
		cities = append(cities, Point{X: x, Y: y})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !inSection {
		return nil, fmt.Errorf("no NODE_COORD_SECTION found")
	}
	return cities, nil
}

// RandomCities scatters n cities uniformly over [0, width) x [0, height).
func RandomCities(n int, width, height float64, rng *rand.Rand) []Point {
	cities := make([]Point, n)
	for i := range cities {
		cities[i] = Point{X: rng.Float64() * width, Y: rng.Float64() * height}
	}
	return cities
}
