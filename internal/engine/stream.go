package engine

import "context"

// Stream is a single-consumption sequence of segments. Once iterated it
// cannot be replayed; consumers needing the data more than once must Collect
// it and derive further views from the materialized slice.
type Stream struct {
	ch  chan Segment
	err error
}

// NewStream creates a stream with the given channel capacity. The producer
// pushes segments with Send and finishes with Close; consumers iterate with
// Next and read the terminal error afterwards.
func NewStream(capacity int) *Stream {
	return &Stream{ch: make(chan Segment, capacity)}
}

// Send delivers one segment to the consumer, aborting if the context is
// cancelled before the consumer takes it.
func (s *Stream) Send(ctx context.Context, seg Segment) error {
	select {
	case s.ch <- seg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Push delivers one segment without blocking. It is only safe while the
// buffered capacity passed to NewStream has not been exhausted.
func (s *Stream) Push(seg Segment) {
	s.ch <- seg
}

// Close ends the stream. A non-nil err becomes visible through Err once the
// consumer has drained the remaining segments. Close must be called exactly
// once, after all sends.
func (s *Stream) Close(err error) {
	s.err = err
	close(s.ch)
}

// Next returns the next segment in iteration order. ok is false once the
// stream is exhausted; check Err at that point.
func (s *Stream) Next() (Segment, bool) {
	seg, ok := <-s.ch
	return seg, ok
}

// Err reports the terminal error, if any. Valid only after Next returned
// ok == false.
func (s *Stream) Err() error {
	return s.err
}

// Collect drains the stream into an ordered slice. This is the single
// materialization point for code paths that need the segments more than once.
func (s *Stream) Collect() ([]Segment, error) {
	var segments []Segment
	for {
		seg, ok := s.Next()
		if !ok {
			return segments, s.Err()
		}
		segments = append(segments, seg)
	}
}
