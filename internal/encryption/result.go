package encryption

// Kind discriminates the events produced while processing a batch.
type Kind int

const (
	// KindProgress reports the position within the current file.
	KindProgress Kind = iota
	// KindCommitted reports that the current file was written to its final path.
	KindCommitted
	// KindSkipped reports a per-file failure (wrong password, corrupt artifact); the batch continues.
	KindSkipped
	// KindFatal reports an unexpected failure; the sequence ends after it.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindCommitted:
		return "committed"
	case KindSkipped:
		return "skipped"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Event is one step of a batch.
type Event struct {
	Kind Kind

	// Progress is the number of files already handled plus the processed fraction of the current one,
	// so it runs from 0 to len(batch).
	Progress float64

	// Name is the display name of the current input.
	Name string

	// Input and output paths of the current item
	Input  string
	Output string

	// Err is set for KindSkipped and KindFatal.
	Err error
}

// Failed reports whether the event ends the current file without output.
func (e Event) Failed() bool {
	return e.Kind == KindSkipped || e.Kind == KindFatal
}
