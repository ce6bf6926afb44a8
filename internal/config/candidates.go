package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CandidateTable maps a canonical key to the ordered source labels accepted for it.
type CandidateTable map[string][]string

// LoadCandidateTable reads a YAML candidate table. An empty path yields an
// empty table.
//
//	task_id: ["Task ID", "DCWF #"]
//	task_name: ["Task Name", "Task/KSA"]
func LoadCandidateTable(path string) (CandidateTable, error) {
	if path == "" {
		return CandidateTable{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidate table: %w", err)
	}

	return ParseCandidateTable(data)
}

// ParseCandidateTable decodes YAML candidate table content.
func ParseCandidateTable(data []byte) (CandidateTable, error) {
	table := CandidateTable{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse candidate table: %w", err)
	}

	for key, labels := range table {
		if len(labels) == 0 {
			return nil, fmt.Errorf("candidate table: key %q has no candidates", key)
		}
		for _, l := range labels {
			if l == "" {
				return nil, fmt.Errorf("candidate table: key %q has an empty candidate", key)
			}
		}
	}

	return table, nil
}
