package permission

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type tableFile struct {
	Version      int           `json:"version"`
	Requirements []Requirement `json:"requirements"`
}

const tableVersion = 1

// LoadTable reads the requirement table from disk. The table is loaded
// once at startup and immutable for the process lifetime. A missing
// file yields an empty table, which allows everything (fail-open).
func LoadTable(path string) ([]Requirement, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read permission table: %w", err)
	}

	var parsed tableFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse permission table: %w", err)
	}

	requirements := make([]Requirement, 0, len(parsed.Requirements))
	for i, req := range parsed.Requirements {
		if strings.TrimSpace(req.Action) == "" {
			return nil, fmt.Errorf("permission table entry %d: action is required", i)
		}
		if req.MinSovereignty < 0 || req.MinSovereignty > 1 {
			return nil, fmt.Errorf("permission table entry %q: min_sovereignty must be in [0,1], got %v", req.Action, req.MinSovereignty)
		}
		for category, minScore := range req.RequiredScores {
			if minScore < 0 || minScore > 1 {
				return nil, fmt.Errorf("permission table entry %q: required score for %q must be in [0,1], got %v", req.Action, category, minScore)
			}
		}
		requirements = append(requirements, req)
	}
	return requirements, nil
}

// SaveTable writes a requirement table file. Used by `warden init` to
// seed an example table.
func SaveTable(path string, requirements []Requirement) error {
	data, err := json.MarshalIndent(tableFile{Version: tableVersion, Requirements: requirements}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal permission table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write permission table: %w", err)
	}
	return nil
}
