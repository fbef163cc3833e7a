package encryption

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"

	"github.com/vaultea/teax/internal/filter"
)

const testPassword = "correct horse battery staple"

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}

	return data
}

func pattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}

	return data
}

func assertMissing(t *testing.T, paths ...string) {
	t.Helper()

	for _, path := range paths {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should not exist (stat error: %v)", path, err)
		}
	}
}

// item resolves input and pairs it with output.
func item(t *testing.T, p *Processor, input, output string) Item {
	t.Helper()

	file, err := p.Describe(input)
	if err != nil {
		t.Fatalf("Describe(%s): %v", input, err)
	}

	return Item{Input: file, Output: output}
}

func collect(events func(func(Event) bool)) []Event {
	var out []Event

	for event := range events {
		out = append(out, event)
	}

	return out
}

// outcomes drops progress events.
func outcomes(events []Event) []Event {
	var out []Event

	for _, event := range events {
		if event.Kind != KindProgress {
			out = append(out, event)
		}
	}

	return out
}

func encryptOne(t *testing.T, p *Processor, input, output string) {
	t.Helper()

	results := outcomes(collect(p.Encrypt(Batch{item(t, p, input, output)}, testPassword)))
	if len(results) != 1 || results[0].Kind != KindCommitted {
		t.Fatalf("encrypting %s: got %+v, want one committed event", input, results)
	}
}

func decryptOne(t *testing.T, p *Processor, input, output, password string) Event {
	t.Helper()

	results := outcomes(collect(p.Decrypt(Batch{item(t, p, input, output)}, password)))
	if len(results) != 1 {
		t.Fatalf("decrypting %s: got %d outcomes, want 1", input, len(results))
	}

	return results[0]
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 63, 64, 65, 64*3 + 5, 4096} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			plain := filepath.Join(dir, "data.bin")
			artifact := plain + ".teax"
			restored := filepath.Join(dir, "restored.bin")

			writeFile(t, plain, pattern(size))

			p := newTestProcessor(t)
			p.chunkSize = 64

			encryptOne(t, p, plain, artifact)

			if got := len(readFile(t, artifact)); got != HeaderSize+size {
				t.Errorf("artifact size = %d, want %d", got, HeaderSize+size)
			}

			if event := decryptOne(t, p, artifact, restored, testPassword); event.Kind != KindCommitted {
				t.Fatalf("decrypt: %v (%v)", event.Kind, event.Err)
			}

			if !bytes.Equal(readFile(t, restored), pattern(size)) {
				t.Error("restored content differs")
			}

			assertMissing(t, artifact+".tmp", restored+".tmp")
		})
	}
}

func TestWrongPasswordIsSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "note.txt")
	out := filepath.Join(dir, "out.txt")

	writeFile(t, plain, []byte("meet me at the usual place"))

	p := newTestProcessor(t)
	encryptOne(t, p, plain, plain+".teax")

	event := decryptOne(t, p, plain+".teax", out, "not the password")

	if event.Kind != KindSkipped || !errors.Is(event.Err, ErrAuthentication) {
		t.Fatalf("got %v (%v), want skipped with ErrAuthentication", event.Kind, event.Err)
	}

	assertMissing(t, out, out+".tmp")
}

func TestTamperingIsDetected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		offset int
	}{
		{"salt", 0},
		{"wrap nonce", 16},
		{"wrap tag", 28},
		{"wrapped key", 44},
		{"stream nonce", 76},
		{"stream tag", 88},
		{"first payload byte", HeaderSize},
		{"last payload byte", HeaderSize + 199},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			plain := filepath.Join(dir, "plain")
			artifact := plain + ".teax"
			out := filepath.Join(dir, "out")

			writeFile(t, plain, pattern(200))

			p := newTestProcessor(t)
			p.chunkSize = 64

			encryptOne(t, p, plain, artifact)

			data := readFile(t, artifact)
			data[tt.offset] ^= 0x80
			writeFile(t, artifact, data)

			event := decryptOne(t, p, artifact, out, testPassword)
			if event.Kind != KindSkipped || !errors.Is(event.Err, ErrAuthentication) {
				t.Fatalf("got %v (%v), want skipped with ErrAuthentication", event.Kind, event.Err)
			}

			if err := p.Verify(artifact, testPassword); !errors.Is(err, ErrAuthentication) {
				t.Errorf("Verify = %v, want ErrAuthentication", err)
			}

			assertMissing(t, out, out+".tmp")
		})
	}
}

func TestShortArtifactIsSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := filepath.Join(dir, "short.teax")
	out := filepath.Join(dir, "short")

	writeFile(t, artifact, make([]byte, 50))

	p := newTestProcessor(t)

	event := decryptOne(t, p, artifact, out, testPassword)
	if event.Kind != KindSkipped || !errors.Is(event.Err, ErrMalformedHeader) {
		t.Fatalf("got %v (%v), want skipped with ErrMalformedHeader", event.Kind, event.Err)
	}

	assertMissing(t, out, out+".tmp")
}

func TestBatchContinuesAfterSkip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newTestProcessor(t)

	var batch Batch

	for i, name := range []string{"a", "b", "c"} {
		plain := filepath.Join(dir, name)
		writeFile(t, plain, pattern(100+i))
		encryptOne(t, p, plain, plain+".teax")

		if name == "b" {
			data := readFile(t, plain+".teax")
			data[HeaderSize+10] ^= 0xff
			writeFile(t, plain+".teax", data)
		}

		batch = append(batch, item(t, p, plain+".teax", filepath.Join(dir, name+".out")))
	}

	results := outcomes(collect(p.Decrypt(batch, testPassword)))

	want := []Kind{KindCommitted, KindSkipped, KindCommitted}
	if len(results) != len(want) {
		t.Fatalf("got %d outcomes, want %d", len(results), len(want))
	}

	for i, kind := range want {
		if results[i].Kind != kind {
			t.Errorf("outcome %d = %v, want %v", i, results[i].Kind, kind)
		}
	}

	if !bytes.Equal(readFile(t, filepath.Join(dir, "c.out")), pattern(102)) {
		t.Error("file after the skipped one was not decrypted correctly")
	}

	assertMissing(t, filepath.Join(dir, "b.out"), filepath.Join(dir, "b.out.tmp"))
}

func TestFatalErrorEndsSequence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newTestProcessor(t)

	good := filepath.Join(dir, "good")
	writeFile(t, good, []byte("fine"))

	batch := Batch{
		{Input: File{Path: filepath.Join(dir, "missing"), Size: 10}, Output: filepath.Join(dir, "missing.teax")},
		item(t, p, good, good+".teax"),
	}

	results := outcomes(collect(p.Encrypt(batch, testPassword)))

	if len(results) != 1 || results[0].Kind != KindFatal {
		t.Fatalf("got %+v, want a single fatal event", results)
	}

	if results[0].Err == nil || IsRecoverable(results[0].Err) {
		t.Errorf("fatal event error = %v, want an unrecoverable error", results[0].Err)
	}

	assertMissing(t, good+".teax", filepath.Join(dir, "missing.teax.tmp"))
}

func TestFreshRandomnessPerArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "same")
	writeFile(t, plain, pattern(128))

	p := newTestProcessor(t)
	encryptOne(t, p, plain, filepath.Join(dir, "one.teax"))
	encryptOne(t, p, plain, filepath.Join(dir, "two.teax"))

	one := readFile(t, filepath.Join(dir, "one.teax"))
	two := readFile(t, filepath.Join(dir, "two.teax"))

	if bytes.Equal(one[0:16], two[0:16]) {
		t.Error("salts repeated")
	}

	if bytes.Equal(one[76:88], two[76:88]) {
		t.Error("stream nonces repeated")
	}

	if bytes.Equal(one[HeaderSize:], two[HeaderSize:]) {
		t.Error("payloads repeated")
	}
}

func TestRandomnessSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	writeFile(t, plain, []byte("deterministic layout"))

	source := pattern(256)

	p := newTestProcessor(t, WithRand(bytes.NewReader(source)))
	encryptOne(t, p, plain, plain+".teax")

	data := readFile(t, plain+".teax")

	// Read order: data key, salt, stream nonce, tag placeholder.
	if !bytes.Equal(data[0:16], source[32:48]) {
		t.Errorf("salt = %x, want %x", data[0:16], source[32:48])
	}

	if !bytes.Equal(data[76:88], source[48:60]) {
		t.Errorf("stream nonce = %x, want %x", data[76:88], source[48:60])
	}

	if bytes.Equal(data[88:104], source[60:76]) {
		t.Error("tag placeholder was not replaced")
	}

	if event := decryptOne(t, newTestProcessor(t), plain+".teax", plain+".out", testPassword); event.Kind != KindCommitted {
		t.Fatalf("decrypt: %v (%v)", event.Kind, event.Err)
	}
}

func TestProgress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newTestProcessor(t)
	p.chunkSize = 16

	var encrypt, decrypt Batch

	for _, name := range []string{"first", "second"} {
		plain := filepath.Join(dir, name)
		writeFile(t, plain, pattern(100))
		encrypt = append(encrypt, item(t, p, plain, plain+".teax"))
	}

	checkProgress(t, collect(p.Encrypt(encrypt, testPassword)), len(encrypt))

	for _, it := range encrypt {
		decrypt = append(decrypt, item(t, p, it.Output, it.Input.Path+".out"))
	}

	checkProgress(t, collect(p.Decrypt(decrypt, testPassword)), len(decrypt))
}

// checkProgress asserts that progress is monotonic, starts every file at its index
// and reaches the index of the next file before the outcome of the current one.
func checkProgress(t *testing.T, events []Event, files int) {
	t.Helper()

	last := -1.0
	lastProgress := -1.0
	starts := map[float64]bool{}
	finished := 0

	for _, event := range events {
		if event.Progress < last {
			t.Fatalf("progress went backwards: %v after %v", event.Progress, last)
		}

		if event.Progress > float64(files) {
			t.Fatalf("progress %v beyond batch size", event.Progress)
		}

		last = event.Progress

		if event.Kind == KindProgress {
			if event.Progress == float64(int(event.Progress)) {
				starts[event.Progress] = true
			}

			lastProgress = event.Progress

			continue
		}

		if event.Kind != KindCommitted {
			t.Fatalf("%s: %v (%v)", event.Name, event.Kind, event.Err)
		}

		if want := float64(finished + 1); lastProgress != want {
			t.Errorf("%s: last progress before its outcome = %v, want %v", event.Name, lastProgress, want)
		}

		finished++
	}

	if finished != files {
		t.Fatalf("%d files committed, want %d", finished, files)
	}

	if last != float64(files) {
		t.Errorf("final progress = %v, want %d", last, files)
	}

	for idx := range files {
		if !starts[float64(idx)] {
			t.Errorf("file %d did not start with a progress event at its index, got %v", idx, starts)
		}
	}

	if events[0].Name != "first" && events[0].Name != "first.teax" {
		t.Errorf("unexpected first display name %q", events[0].Name)
	}
}

func TestStoppingCleansUp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "big")
	artifact := plain + ".teax"
	writeFile(t, plain, pattern(1000))

	p := newTestProcessor(t)
	p.chunkSize = 16

	for event := range p.Encrypt(Batch{item(t, p, plain, artifact)}, testPassword) {
		if event.Progress > 0 {
			break
		}
	}

	assertMissing(t, artifact, artifact+".tmp")
}

func TestDirectoryRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := filepath.Join(dir, "photos")

	files := map[string][]byte{
		"a.txt":           []byte("alpha"),
		"nested/b.txt":    []byte("bravo"),
		"nested/deep/c":   pattern(300),
		"nested/skip.log": []byte("excluded"),
	}

	for name, data := range files {
		writeFile(t, filepath.Join(root, filepath.FromSlash(name)), data)
	}

	flt, err := filter.New([]string{"*.log"})
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}

	p := newTestProcessor(t, WithExclude(flt))
	p.chunkSize = 64

	artifact := filepath.Join(dir, "photos.zip.teax")
	encryptOne(t, p, root, artifact)

	assertMissing(t, filepath.Join(dir, "photos.zip.tmp"), artifact+".tmp")

	archivePath := filepath.Join(dir, "photos.zip")
	if event := decryptOne(t, p, artifact, archivePath, testPassword); event.Kind != KindCommitted {
		t.Fatalf("decrypt: %v (%v)", event.Kind, event.Err)
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer reader.Close()

	var names []string

	for _, f := range reader.File {
		names = append(names, f.Name)

		if f.Method != zip.Store {
			t.Errorf("%s is compressed", f.Name)
		}

		want, ok := files[f.Name]
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", f.Name, err)
		}

		got, err := io.ReadAll(rc)
		rc.Close()

		if err != nil {
			t.Fatalf("reading %s: %v", f.Name, err)
		}

		if !bytes.Equal(got, want) {
			t.Errorf("%s content differs", f.Name)
		}
	}

	sort.Strings(names)

	want := []string{"a.txt", "nested/", "nested/b.txt", "nested/deep/", "nested/deep/c"}
	if len(names) != len(want) {
		t.Fatalf("archive entries = %v, want %v", names, want)
	}

	for i := range want {
		if names[i] != want[i] {
			t.Errorf("archive entries = %v, want %v", names, want)

			break
		}
	}
}

func TestDirectoryKeepsExistingArchiveTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := filepath.Join(dir, "photos")
	writeFile(t, filepath.Join(root, "a.txt"), []byte("alpha"))

	existing := filepath.Join(dir, "photos.zip.tmp")
	writeFile(t, existing, []byte("not ours"))

	p := newTestProcessor(t)
	artifact := filepath.Join(dir, "photos.zip.teax")

	results := outcomes(collect(p.Encrypt(Batch{item(t, p, root, artifact)}, testPassword)))
	if len(results) != 1 || results[0].Kind != KindFatal {
		t.Fatalf("got %+v, want a single fatal event", results)
	}

	if got := readFile(t, existing); string(got) != "not ours" {
		t.Errorf("%s = %q, want it untouched", existing, got)
	}

	assertMissing(t, artifact, artifact+".tmp")
}

func TestInMemoryFileSystem(t *testing.T) {
	t.Parallel()

	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS: %v", err)
	}

	writeMem(t, fs, "/plain.txt", pattern(500))

	p := NewProcessor(fs, WithKDF(testKDF))
	p.chunkSize = 128

	memItem := func(input, output string) Item {
		t.Helper()

		file, err := p.Describe(input)
		if err != nil {
			t.Fatalf("Describe(%s): %v", input, err)
		}

		return Item{Input: file, Output: output}
	}

	for _, event := range outcomes(collect(p.Encrypt(Batch{memItem("/plain.txt", "/plain.txt.teax")}, testPassword))) {
		if event.Kind != KindCommitted {
			t.Fatalf("encrypt: %v (%v)", event.Kind, event.Err)
		}
	}

	if err := p.Verify("/plain.txt.teax", testPassword); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	for _, event := range outcomes(collect(p.Decrypt(Batch{memItem("/plain.txt.teax", "/restored.txt")}, testPassword))) {
		if event.Kind != KindCommitted {
			t.Fatalf("decrypt: %v (%v)", event.Kind, event.Err)
		}
	}

	f, err := fs.Open("/restored.txt")
	if err != nil {
		t.Fatalf("opening restored file: %v", err)
	}
	defer f.Close()

	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}

	if !bytes.Equal(got, pattern(500)) {
		t.Error("restored content differs")
	}
}

func writeMem(t *testing.T, fs absfs.FileSystem, name string, data []byte) {
	t.Helper()

	f, err := fs.Create(name)
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}

	if _, err := f.Write(data); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("closing %s: %v", name, err)
	}
}

func TestVerifyAndInspect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	artifact := plain + ".teax"
	writeFile(t, plain, pattern(77))

	p := newTestProcessor(t)
	encryptOne(t, p, plain, artifact)

	if err := p.Verify(artifact, testPassword); err != nil {
		t.Errorf("Verify: %v", err)
	}

	if err := p.Verify(artifact, "nope"); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Verify with wrong password = %v, want ErrAuthentication", err)
	}

	header, err := p.Inspect(artifact)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	raw, err := header.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	if !bytes.Equal(raw, readFile(t, artifact)[:HeaderSize]) {
		t.Error("inspected header differs from the artifact prefix")
	}
}

func TestArchiveTempName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/out/photos.zip.teax": "/out/photos.zip.tmp",
		"/out/photos.teax":     "/out/photos.tmp",
		"/out/photos":          "/out/photos.archive.tmp",
	}

	for output, want := range tests {
		if got := ArchiveTempName(output); got != want {
			t.Errorf("ArchiveTempName(%q) = %q, want %q", output, got, want)
		}
	}
}
