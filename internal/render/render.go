package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/zetahernandez/whisper-fastapi/internal/engine"
)

// Supported response formats.
const (
	FormatJSON   = "json"
	FormatText   = "text"
	FormatTSV    = "tsv"
	FormatSRT    = "srt"
	FormatVTT    = "vtt"
	FormatStream = "stream"
)

// ValidFormat reports whether s names one of the six supported formats.
func ValidFormat(s string) bool {
	switch s {
	case FormatJSON, FormatText, FormatTSV, FormatSRT, FormatVTT, FormatStream:
		return true
	}
	return false
}

// ContentType returns the response content type for a format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatStream:
		return "text/event-stream"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Result is the materialized form of one transcription call: the summary
// fields, the ordered segments, and the newline-joined text.
type Result struct {
	engine.Info
	Segments []engine.Segment `json:"segments"`
	Text     string           `json:"text"`
}

// Build drains the stream once and materializes it. All non-streaming views
// that need the data more than once derive from the returned Result instead
// of re-invoking the engine.
func Build(st *engine.Stream, info *engine.Info) (*Result, error) {
	segments, err := st.Collect()
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = strings.TrimSpace(seg.Text)
	}

	return &Result{
		Info:     *info,
		Segments: segments,
		Text:     strings.Join(texts, "\n"),
	}, nil
}

// flusher is implemented by response writers that can push buffered output to
// the client between segments.
type flusher interface {
	Flush()
}

func flush(w io.Writer) {
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
}

// JSON materializes the stream and writes one Result object.
func JSON(w io.Writer, st *engine.Stream, info *engine.Info) error {
	result, err := Build(st, info)
	if err != nil {
		return err
	}

	return json.NewEncoder(w).Encode(result)
}

// Text writes one trimmed line per segment as segments become available.
func Text(w io.Writer, st *engine.Stream) error {
	for {
		seg, ok := st.Next()
		if !ok {
			return st.Err()
		}

		if _, err := io.WriteString(w, strings.TrimSpace(seg.Text)+"\n"); err != nil {
			return err
		}
		flush(w)
	}
}

// TSV writes a header row followed by one row per segment with start and end
// rounded to milliseconds.
func TSV(w io.Writer, st *engine.Stream) error {
	if _, err := io.WriteString(w, "start\tend\ttext\n"); err != nil {
		return err
	}

	for {
		seg, ok := st.Next()
		if !ok {
			return st.Err()
		}

		row := strconv.FormatInt(roundMillis(seg.Start), 10) + "\t" +
			strconv.FormatInt(roundMillis(seg.End), 10) + "\t" +
			strings.TrimSpace(seg.Text) + "\n"
		if _, err := io.WriteString(w, row); err != nil {
			return err
		}
		flush(w)
	}
}

// SRT writes numbered subtitle cues with 1-based indices and comma decimal
// markers.
func SRT(w io.Writer, st *engine.Stream) error {
	index := 0
	for {
		seg, ok := st.Next()
		if !ok {
			return st.Err()
		}

		index++
		cue := fmt.Sprintf("%d\n%s --> %s\n%s\n\n",
			index,
			FormatTimestamp(seg.Start, ','),
			FormatTimestamp(seg.End, ','),
			strings.TrimSpace(seg.Text),
		)
		if _, err := io.WriteString(w, cue); err != nil {
			return err
		}
		flush(w)
	}
}

// VTT writes the WEBVTT header followed by subtitle cues with dot decimal
// markers.
func VTT(w io.Writer, st *engine.Stream) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return err
	}

	for {
		seg, ok := st.Next()
		if !ok {
			return st.Err()
		}

		cue := fmt.Sprintf("%s --> %s\n%s\n\n",
			FormatTimestamp(seg.Start, '.'),
			FormatTimestamp(seg.End, '.'),
			strings.TrimSpace(seg.Text),
		)
		if _, err := io.WriteString(w, cue); err != nil {
			return err
		}
		flush(w)
	}
}

// SSE writes one data frame per segment as produced, terminated by the
// literal [DONE] sentinel frame. This is the only renderer that consumes the
// live sequence without materializing it.
func SSE(w io.Writer, st *engine.Stream) error {
	for {
		seg, ok := st.Next()
		if !ok {
			break
		}

		seg.Text = strings.TrimSpace(seg.Text)
		payload, err := json.Marshal(seg)
		if err != nil {
			return err
		}

		if _, err := io.WriteString(w, "data: "+string(payload)+"\n\n"); err != nil {
			return err
		}
		flush(w)
	}

	if err := st.Err(); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flush(w)

	return nil
}

// FormatTimestamp renders seconds as HH:MM:SS with millisecond precision,
// hours always included, using the given decimal marker.
func FormatTimestamp(seconds float64, marker byte) string {
	if seconds < 0 {
		seconds = 0
	}

	millis := int64(math.Round(seconds * 1000))
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	secs := millis / 1000
	millis -= secs * 1000

	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, marker, millis)
}

func roundMillis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
