package engine

import (
	"context"
	"io"
	"sync"
)

// Fake is an in-process Engine for tests and local development. It replays a
// fixed segment sequence and records what it was called with.
type Fake struct {
	Segments []Segment
	Info     Info
	Err      error

	mu        sync.Mutex
	calls     int
	lastOpts  Options
	lastAudio []byte
}

func (f *Fake) Transcribe(ctx context.Context, audio io.ReadSeeker, opts Options) (*Stream, *Info, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	f.lastAudio = data
	f.mu.Unlock()

	if f.Err != nil {
		return nil, nil, f.Err
	}

	info := f.Info
	st := NewStream(len(f.Segments))
	for _, seg := range f.Segments {
		st.Push(seg)
	}
	st.Close(nil)

	return st, &info, nil
}

// Calls returns how many times Transcribe was invoked.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastOptions returns the options of the most recent call.
func (f *Fake) LastOptions() Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

// LastAudio returns the audio bytes of the most recent call.
func (f *Fake) LastAudio() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAudio
}
