package engine

import (
	"context"
	"io"
)

// Task values accepted by the engine.
const (
	TaskTranscribe = "transcribe"
	TaskTranslate  = "translate"
)

// Segment is one timed span of transcribed text.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Word carries word-level timing within a segment.
type Word struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Word        string  `json:"word"`
	Probability float64 `json:"probability,omitempty"`
}

// Info summarizes one transcription call. It is produced once per call,
// immutable after creation, and paired with exactly one segment sequence.
type Info struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Duration            float64 `json:"duration"`
}

// VadOptions tunes the engine's voice-activity detection. Fields are pointers
// so that an absent value is distinguishable from an explicit zero; nil fields
// stay at the engine's defaults.
type VadOptions struct {
	Threshold            *float64
	NegThreshold         *float64
	MinSpeechDurationMs  *int
	MaxSpeechDurationS   *float64
	MinSilenceDurationMs *int
	SpeechPadMs          *int
}

// Options parameterizes a single transcription call.
type Options struct {
	Task              string
	Language          string // empty means auto-detect
	VADFilter         bool
	InitialPrompt     string
	RepetitionPenalty float64
	WordTimestamps    bool
	VAD               *VadOptions
}

// Error wraps a failure reported by the engine. Engine failures carry the
// engine's original message and are never retried automatically.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "engine: " + e.Message
}

// Engine is the external transcription engine boundary. The audio reader must
// be seekable from byte offset zero; the engine may read it more than once.
type Engine interface {
	Transcribe(ctx context.Context, audio io.ReadSeeker, opts Options) (*Stream, *Info, error)
}
