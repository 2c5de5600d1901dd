package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// coverageFile accepts both shapes a capture can emit: a bare key/count
// map, or the same map wrapped under a "counts" field.
type coverageFile struct {
	Counts map[string]uint64 `json:"counts"`
}

// LoadCoverageCounts reads a coverage counter file from disk.
func LoadCoverageCounts(path string) (map[string]uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening coverage file %s: %w", path, err)
	}
	return ParseCoverageCounts(data, path)
}

// ParseCoverageCounts decodes coverage counters from raw JSON.
func ParseCoverageCounts(data []byte, source string) (map[string]uint64, error) {
	var wrapper coverageFile
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Counts != nil {
		return wrapper.Counts, nil
	}

	var counts map[string]uint64
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("parsing coverage file %s: %w", source, err)
	}
	if counts == nil {
		counts = map[string]uint64{}
	}
	return counts, nil
}

// CoverageComparison reports how a capture lines up with the catalog's
// expected key universe. All three lists are sorted.
type CoverageComparison struct {
	Missing    []string `json:"missing"`
	Unexpected []string `json:"unexpected"`
	Covered    []string `json:"covered"`
}

// Clean reports whether the capture touched every expected key and
// nothing else.
func (c CoverageComparison) Clean() bool {
	return len(c.Missing) == 0 && len(c.Unexpected) == 0
}

// Compare splits the catalog keys against observed counters. A key
// counts as covered only when its counter is greater than zero.
func Compare(coverage CatalogCoverage, counts map[string]uint64) CoverageComparison {
	expected := make(map[string]bool, len(coverage.Keys))
	for _, key := range coverage.Keys {
		expected[key] = true
	}

	comparison := CoverageComparison{
		Missing:    []string{},
		Unexpected: []string{},
		Covered:    []string{},
	}
	for _, key := range coverage.Keys {
		if _, ok := counts[key]; !ok {
			comparison.Missing = append(comparison.Missing, key)
		} else if counts[key] > 0 {
			comparison.Covered = append(comparison.Covered, key)
		}
	}
	for key := range counts {
		if !expected[key] {
			comparison.Unexpected = append(comparison.Unexpected, key)
		}
	}

	sort.Strings(comparison.Missing)
	sort.Strings(comparison.Unexpected)
	sort.Strings(comparison.Covered)
	return comparison
}
