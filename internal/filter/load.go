package filter

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Load builds a Filter from inline patterns followed by the patterns stored at path.
// An empty path adds nothing.
func Load(patterns []string, path string) (*Filter, error) {
	all := append([]string(nil), patterns...)

	if path != "" {
		stored, err := ReadPatterns(path)
		if err != nil {
			return nil, err
		}

		all = append(all, stored...)
	}

	return New(all)
}

// ReadPatterns parses a JSONC array of exclude patterns. Comments and trailing commas are allowed:
//
//	[
//	  ".git", // version control
//	  "**/*.tmp",
//	]
func ReadPatterns(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from user-supplied config
	if err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}

	var patterns []string
	if err := json.Unmarshal(jsonc.ToJSONInPlace(data), &patterns); err != nil {
		return nil, fmt.Errorf("exclude file %q must hold an array of strings: %w", path, err)
	}

	return patterns, nil
}
