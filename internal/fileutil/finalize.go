// Package fileutil provides the temp-file-and-rename protocol used for every output.
package fileutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/absfs/absfs"
)

// TempSuffix is appended to the final path while an output is being written.
const TempSuffix = ".tmp"

// TempContext holds state for an atomic file write operation.
type TempContext struct {
	fs absfs.FileSystem

	TmpFile   absfs.File
	TmpName   string
	FinalName string

	closed bool
}

// TempName returns the in-progress path for outPath.
func TempName(outPath string) string {
	return outPath + TempSuffix
}

// NewTempContext creates (or truncates) <outPath>.tmp for writing.
// A stale temp file from an interrupted run is overwritten.
// Caller must defer CleanupOnError.
func NewTempContext(fs absfs.FileSystem, outPath string) (*TempContext, error) {
	const ownerReadWrite = 0o600

	tmpName := TempName(outPath)

	tmpFile, err := fs.OpenFile(tmpName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, ownerReadWrite)
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	return &TempContext{
		fs:        fs,
		TmpFile:   tmpFile,
		TmpName:   tmpName,
		FinalName: outPath,
	}, nil
}

// Close closes the temp file once; later calls are no-ops.
func (tc *TempContext) Close() error {
	if tc.closed {
		return nil
	}

	tc.closed = true

	return tc.TmpFile.Close()
}

// Commit flushes the temp file and renames it over the final path.
func (tc *TempContext) Commit() error {
	if err := tc.TmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing temporary file: %w", err)
	}

	if err := tc.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := tc.fs.Rename(tc.TmpName, tc.FinalName); err != nil {
		return fmt.Errorf("renaming output file: %w", err)
	}

	return nil
}

// CleanupOnError closes the temp file and removes it if the write failed.
func (tc *TempContext) CleanupOnError(errp *error) {
	tc.Close() //nolint:errcheck,gosec // best-effort cleanup

	if *errp != nil {
		RemoveIfExists(tc.fs, tc.TmpName) //nolint:errcheck,gosec // best-effort cleanup
	}
}

// RemoveIfExists removes name, treating a missing file as success.
func RemoveIfExists(fs absfs.FileSystem, name string) error {
	if err := fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %q: %w", name, err)
	}

	return nil
}
