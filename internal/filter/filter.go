// Package filter decides which directory entries are left out of an archive.
package filter

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter matches slash-separated paths, relative to the archived directory, against exclude patterns.
// Patterns use doublestar syntax ("**" crosses directories).
// A pattern without a slash also matches the base name at any depth, so "*.log" excludes every log file.
// A nil or empty Filter excludes nothing.
type Filter struct {
	excludes []string
}

// New validates and normalizes the exclude patterns.
func New(excludes []string) (*Filter, error) {
	flt := &Filter{excludes: make([]string, 0, len(excludes))}

	for _, pattern := range excludes {
		pattern = normalize(pattern)
		if pattern == "" {
			continue
		}

		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}

		flt.excludes = append(flt.excludes, pattern)
	}

	return flt, nil
}

// Excluded reports whether rel matches an exclude pattern.
// Callers walking a tree skip the contents of excluded directories themselves.
func (f *Filter) Excluded(rel string) bool {
	if f == nil || len(f.excludes) == 0 {
		return false
	}

	rel = normalize(rel)

	for _, pattern := range f.excludes {
		if match(pattern, rel) {
			return true
		}

		if !strings.Contains(pattern, "/") && match(pattern, path.Base(rel)) {
			return true
		}
	}

	return false
}

// Patterns returns the normalized exclude patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}

	return append([]string(nil), f.excludes...)
}

func match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)

	return err == nil && ok
}

// normalize strips leading "./" and trailing slashes so patterns line up with cleaned paths.
func normalize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "./")

	return strings.TrimSuffix(p, "/")
}
