package encryption

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/absfs/absfs"
	"github.com/awnumar/memguard"

	"github.com/vaultea/teax/internal/archive"
	"github.com/vaultea/teax/internal/fileutil"
	"github.com/vaultea/teax/internal/filter"
)

// File describes an input, resolved once before a batch starts.
type File struct {
	// Path is absolute.
	Path string
	// Size is the file size, or the total size of the regular files below a directory.
	Size  int64
	IsDir bool
}

// Item pairs an input with the path its output is committed to.
type Item struct {
	Input  File
	Output string
}

// Batch is processed strictly in order.
type Batch []Item

// Processor runs the encryption and decryption pipelines against a filesystem.
// It holds no per-batch state; every call receives its batch and password explicitly.
type Processor struct {
	// fs is where inputs are read and outputs committed
	fs absfs.FileSystem

	// kdf derives wrapping keys from passwords
	kdf KDF

	// rand supplies salts, keys, nonces and the tag placeholder
	rand io.Reader

	// chunkSize is the payload step size
	chunkSize int

	// exclude filters directory entries before archiving
	exclude *filter.Filter

	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithKDF overrides the scrypt cost. Artifacts only decrypt with the cost they were produced with.
func WithKDF(kdf KDF) Option {
	return func(p *Processor) { p.kdf = kdf }
}

// WithExclude sets the patterns applied when archiving directories.
func WithExclude(flt *filter.Filter) Option {
	return func(p *Processor) { p.exclude = flt }
}

// WithLogger sets the logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithRand replaces the randomness source.
func WithRand(r io.Reader) Option {
	return func(p *Processor) { p.rand = r }
}

// NewProcessor creates a Processor working on fs.
func NewProcessor(fs absfs.FileSystem, opts ...Option) *Processor {
	processor := &Processor{
		fs:        fs,
		kdf:       DefaultKDF,
		rand:      rand.Reader,
		chunkSize: ChunkSize,
		logger:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(processor)
	}

	return processor
}

// Describe resolves name into a File, measuring directories with the processor's exclude patterns.
func (p *Processor) Describe(name string) (File, error) {
	if !filepath.IsAbs(name) {
		abs, err := filepath.Abs(name)
		if err != nil {
			return File{}, fmt.Errorf("resolving %q: %w", name, err)
		}

		name = abs
	}

	info, err := p.fs.Stat(name)
	if err != nil {
		return File{}, fmt.Errorf("stat %q: %w", name, err)
	}

	if !info.IsDir() {
		return File{Path: name, Size: info.Size()}, nil
	}

	size, err := archive.Size(p.fs, name, p.exclude)
	if err != nil {
		return File{}, fmt.Errorf("measuring %q: %w", name, err)
	}

	return File{Path: name, Size: size, IsDir: true}, nil
}

// Encrypt returns the lazy encryption pipeline for batch.
// Nothing happens until the sequence is ranged over; each value is produced after one unit of work.
// Breaking out of the loop abandons the current file and removes its temporary output.
func (p *Processor) Encrypt(batch Batch, password string) iter.Seq[Event] {
	return p.pipeline(batch, "encrypt", func(item Item, rep *reporter) error {
		return p.encryptFile(item, password, rep)
	})
}

// Decrypt returns the lazy decryption pipeline for batch.
// Decrypted directory archives are left packed.
func (p *Processor) Decrypt(batch Batch, password string) iter.Seq[Event] {
	return p.pipeline(batch, "decrypt", func(item Item, rep *reporter) error {
		return p.decryptFile(item, password, rep)
	})
}

func (p *Processor) pipeline(batch Batch, op string, work func(Item, *reporter) error) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for idx, item := range batch {
			rep := &reporter{
				yield:     yield,
				completed: idx,
				name:      filepath.Base(item.Input.Path),
				input:     item.Input.Path,
				output:    item.Output,
			}

			if !rep.emit(KindProgress, float64(idx), nil) {
				return
			}

			logger := p.logger.With("op", op, "input", item.Input.Path, "output", item.Output)
			logger.Debug("processing file", "size", item.Input.Size)

			err := work(item, rep)

			switch {
			case err == nil:
				logger.Debug("committed")

				if !rep.emit(KindCommitted, float64(idx+1), nil) {
					return
				}
			case errors.Is(err, ErrStopped):
				logger.Debug("stopped by caller")

				return
			case IsRecoverable(err):
				logger.Warn("skipped", "error", err)

				if !rep.emit(KindSkipped, float64(idx+1), err) {
					return
				}
			default:
				logger.Error("aborting batch", "error", err)
				rep.emit(KindFatal, float64(idx), err)

				return
			}
		}
	}
}

// reporter turns processed byte counts into events for the current file.
type reporter struct {
	yield     func(Event) bool
	completed int
	name      string
	input     string
	output    string
	total     int64
	done      int64
}

func (r *reporter) emit(kind Kind, progress float64, err error) bool {
	return r.yield(Event{
		Kind:     kind,
		Progress: progress,
		Name:     r.name,
		Input:    r.input,
		Output:   r.output,
		Err:      err,
	})
}

// advance records n processed bytes and yields a progress event.
// It returns ErrStopped when the consumer no longer wants events.
func (r *reporter) advance(n int) error {
	r.done += int64(n)

	if r.total <= 0 {
		return nil
	}

	fraction := min(float64(r.done)/float64(r.total), 1)

	if !r.emit(KindProgress, float64(r.completed)+fraction, nil) {
		return ErrStopped
	}

	return nil
}

func (p *Processor) encryptFile(item Item, password string, rep *reporter) (err error) {
	input := item.Input

	if input.IsDir {
		archivePath := ArchiveTempName(item.Output)

		size, err := archive.Zip(p.fs, input.Path, archivePath, p.exclude)
		if err != nil {
			return fmt.Errorf("archiving directory: %w", err)
		}

		defer fileutil.RemoveIfExists(p.fs, archivePath) //nolint:errcheck // best-effort cleanup

		input = File{Path: archivePath, Size: size}
	}

	rep.total = input.Size

	env, dataKey, err := p.wrapKey(password)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(dataKey)

	header := Header{Envelope: env}

	if _, err := io.ReadFull(p.rand, header.StreamNonce[:]); err != nil {
		return fmt.Errorf("generating stream nonce: %w", err)
	}

	// Random placeholder, overwritten with the real tag once the payload is complete.
	if _, err := io.ReadFull(p.rand, header.StreamTag[:]); err != nil {
		return fmt.Errorf("generating tag placeholder: %w", err)
	}

	stream, err := newStreamCipher(dataKey, header.StreamNonce[:])
	if err != nil {
		return err
	}

	in, err := p.fs.Open(input.Path)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer in.Close()

	tc, err := fileutil.NewTempContext(p.fs, item.Output)
	if err != nil {
		return fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	if _, err = header.WriteTo(tc.TmpFile); err != nil {
		return err
	}

	if err = p.transform(in, tc.TmpFile, stream.encrypt, rep); err != nil {
		return err
	}

	if _, err = tc.TmpFile.WriteAt(stream.tag(), StreamTagOffset); err != nil {
		return fmt.Errorf("writing authentication tag: %w", err)
	}

	if err = tc.Commit(); err != nil {
		return err
	}

	return nil
}

func (p *Processor) decryptFile(item Item, password string, rep *reporter) (err error) {
	in, err := p.fs.Open(item.Input.Path)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer in.Close()

	header, err := ReadHeader(in)
	if err != nil {
		return err
	}

	dataKey, err := p.unwrapKey(&header.Envelope, password)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(dataKey)

	stream, err := newStreamCipher(dataKey, header.StreamNonce[:])
	if err != nil {
		return err
	}

	rep.total = max(item.Input.Size-HeaderSize, 0)

	tc, err := fileutil.NewTempContext(p.fs, item.Output)
	if err != nil {
		return fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	if err = p.transform(in, tc.TmpFile, stream.decrypt, rep); err != nil {
		return err
	}

	if !stream.verify(header.StreamTag[:]) {
		err = ErrAuthentication

		return err
	}

	if err = tc.Commit(); err != nil {
		return err
	}

	return nil
}

// transform streams r through fn into w one chunk at a time, reporting after every chunk.
func (p *Processor) transform(r io.Reader, w io.Writer, fn func(dst, src []byte), rep *reporter) error {
	buf, release := getBuffer(p.chunkSize)
	defer release()

	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			fn(buf[:n], buf[:n])

			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}

			if err := rep.advance(n); err != nil {
				return err
			}
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return nil
		}

		if readErr != nil {
			return fmt.Errorf("reading input: %w", readErr)
		}
	}
}

// Verify authenticates the artifact at name without writing anything.
// It returns ErrAuthentication or ErrMalformedHeader for bad artifacts.
func (p *Processor) Verify(name, password string) error {
	in, err := p.fs.Open(name)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer in.Close()

	header, err := ReadHeader(in)
	if err != nil {
		return err
	}

	dataKey, err := p.unwrapKey(&header.Envelope, password)
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(dataKey)

	stream, err := newStreamCipher(dataKey, header.StreamNonce[:])
	if err != nil {
		return err
	}

	buf, release := getBuffer(p.chunkSize)
	defer release()

	for {
		n, readErr := io.ReadFull(in, buf)
		if n > 0 {
			stream.authenticate(buf[:n])
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}

		if readErr != nil {
			return fmt.Errorf("reading input: %w", readErr)
		}
	}

	if !stream.verify(header.StreamTag[:]) {
		return ErrAuthentication
	}

	return nil
}

// Inspect reads the header of the artifact at name.
func (p *Processor) Inspect(name string) (*Header, error) {
	in, err := p.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer in.Close()

	return ReadHeader(in)
}

// ArchiveTempName is the sibling path a directory is archived to before encryption,
// "name.zip.teax" becoming "name.zip.tmp". The path must not exist beforehand.
func ArchiveTempName(output string) string {
	ext := filepath.Ext(output)
	if ext == "" {
		return output + ".archive" + fileutil.TempSuffix
	}

	return strings.TrimSuffix(output, ext) + fileutil.TempSuffix
}
