package wyoming

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Event types exchanged with peers.
const (
	TypeDescribe   = "describe"
	TypeInfo       = "info"
	TypeTranscribe = "transcribe"
	TypeTranscript = "transcript"
	TypeAudioChunk = "audio-chunk"
	TypeAudioStart = "audio-start"
	TypeAudioStop  = "audio-stop"
)

// Wire limits. Events larger than these are treated as protocol violations.
const (
	maxDataLength    = 1 << 20  // 1 MiB of event data
	maxPayloadLength = 16 << 20 // 16 MiB of binary payload per event
)

// Event is one protocol message: a type, optional JSON data, and an optional
// binary payload (audio bytes for chunk events).
type Event struct {
	Type    string
	Data    json.RawMessage
	Payload []byte
}

// header is the JSON envelope written as the first line of every event. Data
// may be inline or follow the header as data_length bytes; the payload always
// follows last.
type header struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

// ReadEvent reads one event from the wire.
func ReadEvent(r *bufio.Reader) (*Event, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("malformed event header: %w", err)
	}

	if h.Type == "" {
		return nil, fmt.Errorf("event header is missing a type")
	}

	if h.DataLength < 0 || h.DataLength > maxDataLength {
		return nil, fmt.Errorf("event data length %d out of range", h.DataLength)
	}

	if h.PayloadLength < 0 || h.PayloadLength > maxPayloadLength {
		return nil, fmt.Errorf("event payload length %d out of range", h.PayloadLength)
	}

	ev := &Event{Type: h.Type, Data: h.Data}

	// Out-of-line data overrides any inline data field.
	if h.DataLength > 0 {
		data := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading event data: %w", err)
		}
		ev.Data = data
	}

	if h.PayloadLength > 0 {
		payload := make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading event payload: %w", err)
		}
		ev.Payload = payload
	}

	return ev, nil
}

// WriteEvent writes one event to the wire with inline data.
func WriteEvent(w io.Writer, ev *Event) error {
	h := header{
		Type:          ev.Type,
		Data:          ev.Data,
		PayloadLength: len(ev.Payload),
	}

	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encoding event header: %w", err)
	}

	if _, err := w.Write(append(line, '\n')); err != nil {
		return err
	}

	if len(ev.Payload) > 0 {
		if _, err := w.Write(ev.Payload); err != nil {
			return err
		}
	}

	return nil
}

// AudioFormat describes the framing of an audio chunk payload.
type AudioFormat struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

type transcribeData struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

type transcriptData struct {
	Text string `json:"text"`
}

// ParseAudioChunk extracts the framing and audio bytes of an audio-chunk
// event.
func ParseAudioChunk(ev *Event) (AudioFormat, []byte, error) {
	var format AudioFormat
	if len(ev.Data) == 0 {
		return format, nil, fmt.Errorf("audio-chunk event has no data")
	}

	if err := json.Unmarshal(ev.Data, &format); err != nil {
		return format, nil, fmt.Errorf("malformed audio-chunk data: %w", err)
	}

	return format, ev.Payload, nil
}

// ParseTranscribe extracts the requested language of a transcribe event, if
// any.
func ParseTranscribe(ev *Event) (string, error) {
	if len(ev.Data) == 0 {
		return "", nil
	}

	var data transcribeData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return "", fmt.Errorf("malformed transcribe data: %w", err)
	}

	return data.Language, nil
}

// NewTranscript builds a transcript event carrying the final text.
func NewTranscript(text string) (*Event, error) {
	data, err := json.Marshal(transcriptData{Text: text})
	if err != nil {
		return nil, err
	}

	return &Event{Type: TypeTranscript, Data: data}, nil
}

// Attribution credits the origin of a program or model in capability
// descriptions.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AsrModel describes one model in a capability description.
type AsrModel struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Languages   []string    `json:"languages"`
	Version     string      `json:"version"`
}

// AsrProgram describes this service in a capability description.
type AsrProgram struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Version     string      `json:"version"`
	Models      []AsrModel  `json:"models"`
}

// InfoData is the payload of the capability-description reply to a describe
// event.
type InfoData struct {
	Asr []AsrProgram `json:"asr"`
}

// NewInfo builds a capability-description event.
func NewInfo(data InfoData) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{Type: TypeInfo, Data: raw}, nil
}
