package filter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"

	"github.com/vaultea/teax/internal/filter"
)

// Case is a single test case from a YAML golden file.
type Case struct {
	Description string `yaml:"description"`
	Pattern     string `yaml:"pattern"`
	Path        string `yaml:"path"`
	Excluded    bool   `yaml:"excluded"`
}

func loadCases(t *testing.T) []Case {
	t.Helper()

	data, err := os.ReadFile("testdata/excludes.yml")
	if err != nil {
		t.Fatalf("reading testdata: %v", err)
	}

	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		t.Fatalf("parsing testdata: %v", err)
	}

	return cases
}

func TestExcluded(t *testing.T) {
	t.Parallel()

	for _, tc := range loadCases(t) {
		t.Run(tc.Description, func(t *testing.T) {
			t.Parallel()

			flt, err := filter.New([]string{tc.Pattern})
			if err != nil {
				t.Fatalf("New(%q): %v", tc.Pattern, err)
			}

			if got := flt.Excluded(tc.Path); got != tc.Excluded {
				t.Errorf("Excluded(%q) with %q = %v, want %v", tc.Path, tc.Pattern, got, tc.Excluded)
			}
		})
	}
}

func TestEmptyFilter(t *testing.T) {
	t.Parallel()

	var nilFilter *filter.Filter
	if nilFilter.Excluded("anything") {
		t.Error("nil filter excluded a path")
	}

	empty, err := filter.New([]string{"", "  "})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if empty.Excluded("anything") || len(empty.Patterns()) != 0 {
		t.Error("blank patterns should be dropped")
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := filter.New([]string{"[unclosed"}); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

func TestReadPatterns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "excludes.jsonc")

	content := `[
  ".git", // version control
  /* editors */ "*.swp",
  "**/node_modules",
]`

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing patterns: %v", err)
	}

	patterns, err := filter.ReadPatterns(path)
	if err != nil {
		t.Fatalf("LoadPatterns: %v", err)
	}

	want := []string{".git", "*.swp", "**/node_modules"}
	if len(patterns) != len(want) {
		t.Fatalf("patterns = %v, want %v", patterns, want)
	}

	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("pattern %d = %q, want %q", i, patterns[i], want[i])
		}
	}

	if _, err := filter.ReadPatterns(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "excludes.jsonc")
	if err := os.WriteFile(path, []byte(`["*.bak"] // stored`), 0o600); err != nil {
		t.Fatalf("writing patterns: %v", err)
	}

	flt, err := filter.Load([]string{"*.log"}, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !flt.Excluded("a/x.log") || !flt.Excluded("b/y.bak") || flt.Excluded("c/z.txt") {
		t.Errorf("unexpected matches for patterns %v", flt.Patterns())
	}

	inline, err := filter.Load([]string{"*.log"}, "")
	if err != nil {
		t.Fatalf("Load without file: %v", err)
	}

	if len(inline.Patterns()) != 1 {
		t.Errorf("patterns = %v, want one", inline.Patterns())
	}
}
