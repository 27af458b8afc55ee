package update

import "io"

// ByteSink wraps an io.Writer with a running byte counter, so callers
// can compute self-referential offsets (the xref position is written
// inside the very bytes whose position it describes). It never seeks.
// The counter starts at startingPosition (the length of the
// pre-existing document, or 0 for an isolated per-object emission),
// so Count always returns an absolute file offset.
type ByteSink struct {
	w io.Writer
	n int64
}

// NewByteSink returns a ByteSink wrapping w with its counter starting
// at startingPosition.
func NewByteSink(w io.Writer, startingPosition int64) *ByteSink {
	return &ByteSink{w: w, n: startingPosition}
}

// Write appends p to the underlying writer and advances the counter.
// Errors propagate unchanged from the underlying writer.
func (s *ByteSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += int64(n)
	return n, err
}

// Count returns the absolute byte offset of the next byte to be
// written.
func (s *ByteSink) Count() int64 {
	return s.n
}
