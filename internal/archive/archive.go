// Package archive bundles a directory into a single store-only zip file
// so that the encryption pipeline only ever handles one byte stream.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/absfs/absfs"

	"github.com/vaultea/teax/internal/filter"
)

const copyBufferSize = 1 << 20

// Entry is one item below the archived directory.
type Entry struct {
	// Path is slash-separated and relative to the directory root.
	Path  string
	IsDir bool
	Size  int64
}

// Walk enumerates every entry below root in lexical order, depth first,
// and returns the total size of the regular files.
// Entries matched by flt are skipped; an excluded directory is skipped with its contents.
// Paths listed in skip (full paths as passed to the filesystem) are never returned.
func Walk(fs absfs.FileSystem, root string, flt *filter.Filter, skip ...string) ([]Entry, int64, error) {
	w := walker{fs: fs, flt: flt, skip: make(map[string]struct{}, len(skip))}

	for _, s := range skip {
		w.skip[filepath.Clean(s)] = struct{}{}
	}

	if err := w.walk(root, ""); err != nil {
		return nil, 0, err
	}

	return w.entries, w.total, nil
}

type walker struct {
	fs      absfs.FileSystem
	flt     *filter.Filter
	skip    map[string]struct{}
	entries []Entry
	total   int64
}

func (w *walker) walk(dir, rel string) error {
	infos, err := readDir(w.fs, dir)
	if err != nil {
		return err
	}

	for _, info := range infos {
		full := filepath.Join(dir, info.Name())
		entryRel := path.Join(rel, info.Name())

		if _, ok := w.skip[filepath.Clean(full)]; ok {
			continue
		}

		if w.flt.Excluded(entryRel) {
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			// Follow links to files; links to directories could loop.
			target, err := w.fs.Stat(full)
			if err != nil {
				return fmt.Errorf("resolving link %q: %w", full, err)
			}

			if !target.Mode().IsRegular() {
				continue
			}

			info = target
		}

		switch {
		case info.IsDir():
			w.entries = append(w.entries, Entry{Path: entryRel, IsDir: true})

			if err := w.walk(full, entryRel); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			w.entries = append(w.entries, Entry{Path: entryRel, Size: info.Size()})
			w.total += info.Size()
		}
	}

	return nil
}

func readDir(fs absfs.FileSystem, dir string) ([]os.FileInfo, error) {
	f, err := fs.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening directory %q: %w", dir, err)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", dir, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	return infos, nil
}

// Size returns the total size of the regular files below root, or the size of root itself if it is a file.
func Size(fs absfs.FileSystem, root string, flt *filter.Filter) (int64, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("stat %q: %w", root, err)
	}

	if !info.IsDir() {
		return info.Size(), nil
	}

	_, total, err := Walk(fs, root, flt)

	return total, err
}

// Zip writes every entry below root into a new uncompressed archive at dest and returns its size.
// dest must not exist yet.
// Entry names are relative to root; directories end in "/".
// On failure the partial archive is removed.
func Zip(fs absfs.FileSystem, root, dest string, flt *filter.Filter) (size int64, err error) {
	entries, _, err := Walk(fs, root, flt, dest)
	if err != nil {
		return 0, err
	}

	out, err := fs.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600) //nolint:mnd
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}

	defer func() {
		if err != nil {
			out.Close()
			fs.Remove(dest) //nolint:errcheck,gosec // best-effort cleanup
		}
	}()

	writer := zip.NewWriter(out)
	buf := make([]byte, copyBufferSize)

	for _, entry := range entries {
		if err := addEntry(fs, writer, root, entry, buf); err != nil {
			return 0, err
		}
	}

	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("finishing archive: %w", err)
	}

	info, err := out.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("closing archive: %w", err)
	}

	return info.Size(), nil
}

func addEntry(fs absfs.FileSystem, writer *zip.Writer, root string, entry Entry, buf []byte) error {
	full := filepath.Join(root, filepath.FromSlash(entry.Path))

	info, err := fs.Stat(full)
	if err != nil {
		return fmt.Errorf("stat %q: %w", full, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("creating header for %q: %w", entry.Path, err)
	}

	header.Name = entry.Path
	header.Method = zip.Store

	if entry.IsDir {
		header.Name += "/"

		if _, err := writer.CreateHeader(header); err != nil {
			return fmt.Errorf("adding %q: %w", header.Name, err)
		}

		return nil
	}

	w, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("adding %q: %w", header.Name, err)
	}

	in, err := fs.Open(full)
	if err != nil {
		return fmt.Errorf("opening %q: %w", full, err)
	}
	defer in.Close()

	if _, err := io.CopyBuffer(w, in, buf); err != nil {
		return fmt.Errorf("archiving %q: %w", full, err)
	}

	return nil
}
