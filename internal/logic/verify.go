package logic

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/vaultea/teax/internal/config"
	"github.com/vaultea/teax/internal/encryption"
	"github.com/vaultea/teax/internal/osfs"
)

// Result is the outcome of verifying one artifact.
type Result struct {
	Input string
	Error error
}

// RunVerify authenticates every artifact in cfg.Files with up to cfg.Parallel workers.
// Nothing is written to disk.
func RunVerify(cfg *config.Config) error {
	proc, err := newProcessor(osfs.New(), cfg)
	if err != nil {
		return err
	}

	password, err := ResolvePassword(cfg, os.Stdin, os.Stderr, false)
	if err != nil {
		return err
	}

	results := make(chan Result, len(cfg.Files))

	failed := 0

	// Start result printer
	done := make(chan struct{})
	go func() {
		defer close(done)

		for result := range results {
			if result.Error != nil {
				failed++

				fmt.Fprintf(os.Stderr, "FAILED %q: %v\n", result.Input, result.Error)
			} else if !cfg.Quiet {
				fmt.Printf("OK     %q\n", result.Input) //nolint:forbidigo
			}
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(max(1, cfg.Parallel))

	for _, file := range cfg.Files {
		g.Go(func() error {
			err := proc.Verify(file, password)
			results <- Result{Input: file, Error: err}

			// Bad artifacts are reported, only I/O failures stop the group.
			if err != nil && !encryption.IsRecoverable(err) {
				return fmt.Errorf("verifying %q: %w", file, err)
			}

			return nil
		})
	}

	err = g.Wait()
	close(results)
	<-done

	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d artifact(s) failed verification", failed, len(cfg.Files))
	}

	return nil
}

// RunInspect prints the header fields of every artifact in cfg.Files.
func RunInspect(cfg *config.Config) error {
	fs := osfs.New()

	proc, err := newProcessor(fs, cfg)
	if err != nil {
		return err
	}

	for _, file := range cfg.Files {
		header, err := proc.Inspect(file)
		if err != nil {
			return fmt.Errorf("inspecting %q: %w", file, err)
		}

		info, err := fs.Stat(file)
		if err != nil {
			return fmt.Errorf("stat %q: %w", file, err)
		}

		printHeader(os.Stdout, file, header, info.Size()-encryption.HeaderSize)
	}

	return nil
}

func printHeader(w io.Writer, name string, header *encryption.Header, payload int64) {
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  salt:         %s\n", hex.EncodeToString(header.Salt[:]))
	fmt.Fprintf(w, "  wrap nonce:   %s\n", hex.EncodeToString(header.WrapNonce[:]))
	fmt.Fprintf(w, "  wrap tag:     %s\n", hex.EncodeToString(header.WrapTag[:]))
	fmt.Fprintf(w, "  wrapped key:  %s\n", hex.EncodeToString(header.WrappedKey[:]))
	fmt.Fprintf(w, "  stream nonce: %s\n", hex.EncodeToString(header.StreamNonce[:]))
	fmt.Fprintf(w, "  stream tag:   %s\n", hex.EncodeToString(header.StreamTag[:]))
	//nolint:gosec // payload is non-negative once a full header was read
	fmt.Fprintf(w, "  payload:      %s\n", humanize.IBytes(uint64(max(0, payload))))
}
