package logic

import (
	"path/filepath"
	"strings"
)

const (
	// Extension marks encrypted artifacts.
	Extension = ".teax"
	// ArchiveExtension is appended to directory names before Extension.
	ArchiveExtension = ".zip"
)

// OutputPath derives the output path for an input:
//
//	name.ext      -> name.ext.teax   (encrypt)
//	name/         -> name.zip.teax   (encrypt directory)
//	name.ext.teax -> name.ext        (decrypt)
//	name.other    -> name.other      (decrypt, unchanged)
//
// When outputDir is set the output is placed there instead of next to the input.
func OutputPath(path string, isDir, decrypt bool, outputDir string) string {
	path = filepath.Clean(path)

	var out string

	switch {
	case decrypt:
		out = strings.TrimSuffix(path, Extension)
	case isDir:
		out = path + ArchiveExtension + Extension
	default:
		out = path + Extension
	}

	if outputDir != "" {
		out = filepath.Join(outputDir, filepath.Base(out))
	}

	return out
}
