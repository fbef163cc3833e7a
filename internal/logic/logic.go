// Package logic implements the core business logic for the encryption/decryption.
package logic

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/absfs/absfs"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/vaultea/teax/internal/config"
	"github.com/vaultea/teax/internal/encryption"
	"github.com/vaultea/teax/internal/filter"
	"github.com/vaultea/teax/internal/logging"
	"github.com/vaultea/teax/internal/osfs"
)

// Summary counts the outcome of a batch.
type Summary struct {
	Processed int
	Skipped   []encryption.Event
	TotalSize int64
}

// Run is the main logic of the application: it encrypts or decrypts every positional argument.
func Run(cfg *config.Config) error {
	start := time.Now()

	fs := osfs.New()

	proc, err := newProcessor(fs, cfg)
	if err != nil {
		return err
	}

	batch, err := BuildBatch(fs, proc, cfg)
	if err != nil {
		return err
	}

	password, err := ResolvePassword(cfg, os.Stdin, os.Stderr, !cfg.Decrypt)
	if err != nil {
		return err
	}

	events := proc.Encrypt(batch, password)
	if cfg.Decrypt {
		events = proc.Decrypt(batch, password)
	}

	summary, err := Consume(fs, events, cfg, len(batch), newProgressPrinter(cfg))

	if cfg.Stats {
		printStats(len(batch), summary, time.Since(start))
	}

	if err != nil {
		return err
	}

	if len(summary.Skipped) > 0 {
		return fmt.Errorf("%d file(s) skipped: incorrect password, corrupt or modified content, or not an encrypted file",
			len(summary.Skipped))
	}

	return nil
}

// newProcessor creates the engine configured from cfg.
func newProcessor(fs absfs.FileSystem, cfg *config.Config) (*encryption.Processor, error) {
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	flt, err := filter.Load(cfg.Exclude, cfg.ExcludeFrom)
	if err != nil {
		return nil, fmt.Errorf("loading exclude patterns: %w", err)
	}

	return encryption.NewProcessor(fs,
		encryption.WithKDF(kdfFromConfig(cfg)),
		encryption.WithExclude(flt),
		encryption.WithLogger(logger),
	), nil
}

func kdfFromConfig(cfg *config.Config) encryption.KDF {
	kdf := encryption.DefaultKDF

	if cfg.KDFCost > 0 {
		kdf.N = 1 << cfg.KDFCost
	}

	return kdf
}

// BuildBatch resolves every input and derives its output path.
// Existing outputs are refused unless cfg.Force is set; the engine itself never prompts.
func BuildBatch(fs absfs.FileSystem, proc *encryption.Processor, cfg *config.Config) (encryption.Batch, error) {
	var (
		batch    encryption.Batch
		existing []string
	)

	outputs := make(map[string]string, len(cfg.Files))

	for _, name := range cfg.Files {
		input, err := proc.Describe(name)
		if err != nil {
			return nil, err
		}

		if cfg.Decrypt && input.IsDir {
			return nil, fmt.Errorf("cannot decrypt directory %q", name)
		}

		output := OutputPath(input.Path, input.IsDir, cfg.Decrypt, cfg.Output)

		if output == input.Path {
			return nil, fmt.Errorf("%q would be written onto itself, expected a %s suffix", input.Path, Extension)
		}

		if other, ok := outputs[output]; ok {
			return nil, fmt.Errorf("%q and %q would both be written to %q", other, input.Path, output)
		}

		outputs[output] = input.Path

		if _, err := fs.Stat(output); err == nil {
			existing = append(existing, output)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking output %q: %w", output, err)
		}

		batch = append(batch, encryption.Item{Input: input, Output: output})
	}

	if err := checkArchiveTemps(fs, batch); err != nil {
		return nil, err
	}

	if len(existing) > 0 && !cfg.Force {
		return nil, fmt.Errorf("outputs already exist, use --force to overwrite:\n  %s", strings.Join(existing, "\n  "))
	}

	return batch, nil
}

// checkArchiveTemps refuses directories whose archive temp path already exists or is another input.
// The temp file is removed after encryption, so it must never be a file of the user.
func checkArchiveTemps(fs absfs.FileSystem, batch encryption.Batch) error {
	inputs := make(map[string]bool, len(batch))
	for _, item := range batch {
		inputs[item.Input.Path] = true
	}

	for _, item := range batch {
		if !item.Input.IsDir {
			continue
		}

		temp := encryption.ArchiveTempName(item.Output)

		if inputs[temp] {
			return fmt.Errorf("%q is an input and the archive path of %q", temp, item.Input.Path)
		}

		if _, err := fs.Stat(temp); err == nil {
			return fmt.Errorf("%q already exists, move it before archiving %q", temp, item.Input.Path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking archive path %q: %w", temp, err)
		}
	}

	return nil
}

// Consume pulls every event of a pipeline, reporting progress and results.
// A fatal event aborts the remaining batch and is returned as an error.
func Consume(fs absfs.FileSystem, events iter.Seq[encryption.Event], cfg *config.Config, total int,
	progress func(encryption.Event, int),
) (Summary, error) {
	var summary Summary

	for event := range events {
		switch event.Kind {
		case encryption.KindProgress:
			progress(event, total)
		case encryption.KindCommitted:
			summary.Processed++

			if info, err := fs.Stat(event.Output); err == nil {
				summary.TotalSize += info.Size()
			}

			if !cfg.Quiet {
				fmt.Printf("Processed %q -> %q\n", event.Input, event.Output) //nolint:forbidigo
			}

			if cfg.Delete && event.Input != event.Output {
				deleteInput(fs, event.Input, cfg.Quiet)
			}
		case encryption.KindSkipped:
			summary.Skipped = append(summary.Skipped, event)

			fmt.Fprintf(os.Stderr, "Skipped %q: %v\n", event.Input, event.Err)
		case encryption.KindFatal:
			return summary, fmt.Errorf("processing %q, all remaining files aborted: %w", event.Input, event.Err)
		}
	}

	return summary, nil
}

// deleteInput removes a successfully processed input. Directories are left in place.
func deleteInput(fs absfs.FileSystem, name string, quiet bool) {
	info, err := fs.Stat(name)
	if err != nil || info.IsDir() {
		return
	}

	if err := fs.Remove(name); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting %q: %v\n", name, err)

		return
	}

	if !quiet {
		fmt.Printf("Deleted %q\n", name) //nolint:forbidigo
	}
}

// newProgressPrinter returns a progress callback that redraws a status line on an interactive stderr.
func newProgressPrinter(cfg *config.Config) func(encryption.Event, int) {
	if cfg.Quiet || !term.IsTerminal(int(os.Stderr.Fd())) { //nolint:gosec // fd fits in int
		return func(encryption.Event, int) {}
	}

	verb := "Encrypting"
	if cfg.Decrypt {
		verb = "Decrypting"
	}

	return func(event encryption.Event, total int) {
		printProgress(os.Stderr, verb, event, total)
	}
}

func printProgress(w io.Writer, verb string, event encryption.Event, total int) {
	percent := 100.0
	if total > 0 {
		percent = event.Progress / float64(total) * 100 //nolint:mnd
	}

	fmt.Fprintf(w, "\r\033[K%s %q... %5.1f%%", verb, event.Name, percent)

	if percent >= 100 { //nolint:mnd
		fmt.Fprintln(w)
	}
}

func printStats(scanned int, summary Summary, duration time.Duration) {
	fmt.Fprintf(os.Stderr, "\nStats\n")
	fmt.Fprintf(os.Stderr, "  Inputs:    %d\n", scanned)
	fmt.Fprintf(os.Stderr, "  Processed: %d\n", summary.Processed)
	fmt.Fprintf(os.Stderr, "  Skipped:   %d\n", len(summary.Skipped))
	//nolint:gosec // totalSize is always non-negative (sum of file sizes)
	fmt.Fprintf(os.Stderr, "  Size:      %s\n", humanize.IBytes(uint64(max(0, summary.TotalSize))))
	fmt.Fprintf(os.Stderr, "  Duration:  %s\n", duration.Round(time.Millisecond))
}
