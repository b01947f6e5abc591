package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/zetahernandez/whisper-fastapi/internal/engine"
)

func testStream() *engine.Stream {
	segments := []engine.Segment{
		{ID: 0, Start: 0, End: 1.5, Text: " hello"},
		{ID: 1, Start: 1.5, End: 3.0, Text: " world"},
	}

	st := engine.NewStream(len(segments))
	for _, seg := range segments {
		st.Push(seg)
	}
	st.Close(nil)
	return st
}

func testInfo() *engine.Info {
	return &engine.Info{Language: "en", LanguageProbability: 0.97, Duration: 3.0}
}

func TestValidFormat(t *testing.T) {
	for _, format := range []string{"json", "text", "tsv", "srt", "vtt", "stream"} {
		if !ValidFormat(format) {
			t.Errorf("ValidFormat(%q) = false, want true", format)
		}
	}

	for _, format := range []string{"", "verbose_json", "xml", "JSON"} {
		if ValidFormat(format) {
			t.Errorf("ValidFormat(%q) = true, want false", format)
		}
	}
}

func TestBuild(t *testing.T) {
	result, err := Build(testStream(), testInfo())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if result.Text != "hello\nworld" {
		t.Errorf("Text = %q, want %q", result.Text, "hello\nworld")
	}
	if result.Language != "en" {
		t.Errorf("Language = %q, want en", result.Language)
	}
	if len(result.Segments) != 2 {
		t.Errorf("len(Segments) = %d, want 2", len(result.Segments))
	}
	// Segment text keeps its original spacing; only the joined text is trimmed.
	if result.Segments[0].Text != " hello" {
		t.Errorf("Segments[0].Text = %q, want %q", result.Segments[0].Text, " hello")
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, testStream(), testInfo()); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var decoded struct {
		Language string           `json:"language"`
		Duration float64          `json:"duration"`
		Text     string           `json:"text"`
		Segments []engine.Segment `json:"segments"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Language != "en" || decoded.Duration != 3.0 {
		t.Errorf("summary fields = %+v", decoded)
	}
	if decoded.Text != "hello\nworld" {
		t.Errorf("text = %q, want %q", decoded.Text, "hello\nworld")
	}
	if len(decoded.Segments) != 2 {
		t.Errorf("len(segments) = %d, want 2", len(decoded.Segments))
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	if err := Text(&buf, testStream()); err != nil {
		t.Fatalf("Text() error = %v", err)
	}

	want := "hello\nworld\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := TSV(&buf, testStream()); err != nil {
		t.Fatalf("TSV() error = %v", err)
	}

	want := "start\tend\ttext\n0\t1500\thello\n1500\t3000\tworld\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestSRT(t *testing.T) {
	var buf bytes.Buffer
	if err := SRT(&buf, testStream()); err != nil {
		t.Fatalf("SRT() error = %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:01,500\nhello\n\n" +
		"2\n00:00:01,500 --> 00:00:03,000\nworld\n\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestVTT(t *testing.T) {
	var buf bytes.Buffer
	if err := VTT(&buf, testStream()); err != nil {
		t.Fatalf("VTT() error = %v", err)
	}

	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.500\nhello\n\n" +
		"00:00:01.500 --> 00:00:03.000\nworld\n\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestSSE(t *testing.T) {
	var buf bytes.Buffer
	if err := SSE(&buf, testStream()); err != nil {
		t.Fatalf("SSE() error = %v", err)
	}

	out := buf.String()

	frames := strings.Split(strings.TrimSuffix(out, "\n\n"), "\n\n")
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3: %q", len(frames), out)
	}

	var seg engine.Segment
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &seg); err != nil {
		t.Fatalf("first frame is not a segment: %v", err)
	}
	if seg.Text != "hello" {
		t.Errorf("first frame text = %q, want hello", seg.Text)
	}

	if frames[2] != "data: [DONE]" {
		t.Errorf("last frame = %q, want the [DONE] sentinel", frames[2])
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		marker  byte
		want    string
	}{
		{0, ',', "00:00:00,000"},
		{1.5, ',', "00:00:01,500"},
		{3.0, '.', "00:00:03.000"},
		{3661.007, '.', "01:01:01.007"},
		{59.9995, ',', "00:01:00,000"},
		{-1, ',', "00:00:00,000"},
	}

	for _, tt := range tests {
		if got := FormatTimestamp(tt.seconds, tt.marker); got != tt.want {
			t.Errorf("FormatTimestamp(%v, %q) = %q, want %q", tt.seconds, tt.marker, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, "application/json"},
		{FormatStream, "text/event-stream"},
		{FormatText, "text/plain; charset=utf-8"},
		{FormatSRT, "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		if got := ContentType(tt.format); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}
