package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdapterPassthrough(t *testing.T) {
	fake := &Fake{
		Segments: []Segment{
			{ID: 0, Start: 0, End: 1.5, Text: " hello"},
			{ID: 1, Start: 1.5, End: 3.0, Text: " world"},
		},
		Info: Info{Language: "en", LanguageProbability: 0.98, Duration: 3.0},
	}

	adapter := NewAdapter(fake, 2, testLogger())

	st, info, err := adapter.Transcribe(context.Background(), bytes.NewReader([]byte("audio")), Options{Task: TaskTranscribe})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if info.Language != "en" {
		t.Errorf("Language = %q, want en", info.Language)
	}

	segments, err := st.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(segments) != 2 || segments[0].Text != " hello" {
		t.Errorf("segments = %v, want the fake's segments unmodified", segments)
	}
}

func TestAdapterSimplifiesChinese(t *testing.T) {
	fake := &Fake{
		Segments: []Segment{{ID: 0, Text: "漢字轉換"}},
		Info:     Info{Language: "zh", LanguageProbability: 0.99},
	}

	adapter := NewAdapter(fake, 1, testLogger())

	st, _, err := adapter.Transcribe(context.Background(), bytes.NewReader([]byte("audio")), Options{Task: TaskTranscribe})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	segments, err := st.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if segments[0].Text != "汉字转换" {
		t.Errorf("Text = %q, want the simplified form 汉字转换", segments[0].Text)
	}
}

func TestAdapterLeavesOtherLanguagesAlone(t *testing.T) {
	fake := &Fake{
		Segments: []Segment{{ID: 0, Text: "漢字"}},
		Info:     Info{Language: "ja"},
	}

	adapter := NewAdapter(fake, 1, testLogger())

	st, _, err := adapter.Transcribe(context.Background(), bytes.NewReader(nil), Options{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	segments, err := st.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if segments[0].Text != "漢字" {
		t.Errorf("Text = %q, want untouched 漢字", segments[0].Text)
	}
}

func TestAdapterPropagatesEngineError(t *testing.T) {
	engErr := &Error{Message: "HTTP 500: upstream broke"}
	fake := &Fake{Err: engErr}

	adapter := NewAdapter(fake, 1, testLogger())

	_, _, err := adapter.Transcribe(context.Background(), bytes.NewReader(nil), Options{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var got *Error
	if !errors.As(err, &got) {
		t.Errorf("error = %v, want *Error", err)
	}
}

func TestAdapterReleasesSlotAfterDrain(t *testing.T) {
	fake := &Fake{
		Segments: []Segment{{ID: 0, Text: "one"}},
		Info:     Info{Language: "en"},
	}

	// A single worker: the second call can only proceed once the first
	// stream has been fully drained and its slot released.
	adapter := NewAdapter(fake, 1, testLogger())

	for i := 0; i < 3; i++ {
		st, _, err := adapter.Transcribe(context.Background(), bytes.NewReader(nil), Options{})
		if err != nil {
			t.Fatalf("call %d: Transcribe() error = %v", i, err)
		}
		if _, err := st.Collect(); err != nil {
			t.Fatalf("call %d: Collect() error = %v", i, err)
		}
	}

	if fake.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", fake.Calls())
	}
}

func TestAdapterQueueRespectsCancellation(t *testing.T) {
	fake := &Fake{
		Segments: []Segment{{ID: 0, Text: "held"}},
		Info:     Info{Language: "en"},
	}
	adapter := NewAdapter(fake, 1, testLogger())

	// Occupy the only slot by not draining the first stream.
	_, _, err := adapter.Transcribe(context.Background(), bytes.NewReader(nil), Options{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = adapter.Transcribe(ctx, bytes.NewReader(nil), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("queued Transcribe() error = %v, want context.Canceled", err)
	}
}

func TestAdapterWorkersFloor(t *testing.T) {
	adapter := NewAdapter(&Fake{}, 0, testLogger())
	if adapter.Workers() != 1 {
		t.Errorf("Workers() = %d, want 1", adapter.Workers())
	}
}
