package wyoming

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
)

func TestEventRoundtrip(t *testing.T) {
	data, err := json.Marshal(AudioFormat{Rate: 16000, Width: 2, Channels: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	ev := &Event{
		Type:    TypeAudioChunk,
		Data:    data,
		Payload: []byte{0x01, 0x02, 0x03, 0x04},
	}

	var buf bytes.Buffer
	if err := WriteEvent(&buf, ev); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	got, err := ReadEvent(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}

	if got.Type != TypeAudioChunk {
		t.Errorf("Type = %q, want audio-chunk", got.Type)
	}
	if !bytes.Equal(got.Payload, ev.Payload) {
		t.Errorf("Payload = %v, want %v", got.Payload, ev.Payload)
	}

	format, payload, err := ParseAudioChunk(got)
	if err != nil {
		t.Fatalf("ParseAudioChunk() error = %v", err)
	}
	if format.Rate != 16000 || format.Width != 2 || format.Channels != 1 {
		t.Errorf("format = %+v", format)
	}
	if len(payload) != 4 {
		t.Errorf("len(payload) = %d, want 4", len(payload))
	}
}

func TestReadEventOutOfLineData(t *testing.T) {
	// Peers may send the JSON data after the header line instead of inline.
	data := []byte(`{"language":"fr"}`)
	wire := fmt.Sprintf(`{"type":"transcribe","data_length":%d}`+"\n", len(data))

	var buf bytes.Buffer
	buf.WriteString(wire)
	buf.Write(data)

	ev, err := ReadEvent(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}

	lang, err := ParseTranscribe(ev)
	if err != nil {
		t.Fatalf("ParseTranscribe() error = %v", err)
	}
	if lang != "fr" {
		t.Errorf("language = %q, want fr", lang)
	}
}

func TestReadEventRejectsMissingType(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`{"data":{}}` + "\n")

	if _, err := ReadEvent(bufio.NewReader(&buf)); err == nil {
		t.Error("expected error for missing type, got nil")
	}
}

func TestReadEventRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf(`{"type":"audio-chunk","payload_length":%d}`+"\n", maxPayloadLength+1))

	if _, err := ReadEvent(bufio.NewReader(&buf)); err == nil {
		t.Error("expected error for oversized payload, got nil")
	}
}

func TestReadEventRejectsMalformedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("this is not json\n")

	if _, err := ReadEvent(bufio.NewReader(&buf)); err == nil {
		t.Error("expected error for malformed header, got nil")
	}
}

func TestNewTranscript(t *testing.T) {
	ev, err := NewTranscript("hello world")
	if err != nil {
		t.Fatalf("NewTranscript() error = %v", err)
	}

	if ev.Type != TypeTranscript {
		t.Errorf("Type = %q, want transcript", ev.Type)
	}

	var data transcriptData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data.Text != "hello world" {
		t.Errorf("Text = %q, want hello world", data.Text)
	}
}
