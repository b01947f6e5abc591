package wyoming

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/zetahernandez/whisper-fastapi/internal/audio"
	"github.com/zetahernandez/whisper-fastapi/internal/engine"
	"github.com/zetahernandez/whisper-fastapi/internal/render"
)

// EventWriter sends protocol events back to the peer.
type EventWriter interface {
	WriteEvent(ev *Event) error
}

// Handler is the per-connection state machine. It is Idle until the first
// audio chunk opens an accumulation buffer, Receiving while chunks arrive,
// and returns to Idle after an audio-stop finalizes the turn. Exactly one
// buffer exists at a time and nothing is shared across connections.
type Handler struct {
	adapter *engine.Adapter
	info    *Event
	writer  EventWriter
	logger  *slog.Logger

	buf  *audio.Buffer // nil while Idle
	lang string        // pending language override, consumed by the next finalize
}

// NewHandler creates a handler bound to one connection's event writer.
func NewHandler(adapter *engine.Adapter, info *Event, writer EventWriter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		adapter: adapter,
		info:    info,
		writer:  writer,
		logger:  logger,
	}
}

// HandleEvent processes one incoming event. A returned error is a protocol
// violation and is fatal for the connection, never for the process.
func (h *Handler) HandleEvent(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case TypeAudioChunk:
		return h.handleAudioChunk(ev)

	case TypeAudioStop:
		return h.handleAudioStop(ctx)

	case TypeTranscribe:
		lang, err := ParseTranscribe(ev)
		if err != nil {
			return err
		}
		if lang != "" {
			h.lang = lang
			h.logger.Debug("Language override stored", slog.String("language", lang))
		}
		return nil

	case TypeDescribe:
		return h.writer.WriteEvent(h.info)

	default:
		// Unrecognized events keep the connection open.
		h.logger.Debug("Ignoring event", slog.String("type", ev.Type))
		return nil
	}
}

// handleAudioChunk opens the turn buffer on the first chunk and appends the
// audio bytes. The first chunk of a turn fixes the framing; later declared
// parameters are ignored.
func (h *Handler) handleAudioChunk(ev *Event) error {
	format, payload, err := ParseAudioChunk(ev)
	if err != nil {
		return err
	}

	if h.buf == nil {
		buf, err := audio.NewBuffer(audio.RawParams{
			Channels: format.Channels,
			Rate:     format.Rate,
			Width:    format.Width,
		})
		if err != nil {
			return err
		}
		h.buf = buf
		h.logger.Debug("Audio turn started",
			slog.Int("rate", format.Rate),
			slog.Int("width", format.Width),
			slog.Int("channels", format.Channels),
		)
	}

	h.buf.Append(payload)
	return nil
}

// handleAudioStop finalizes the turn: the accumulated buffer is normalized,
// transcribed with the pending language override (consumed exactly once), and
// the transcript is emitted. The handler is back to Idle afterwards whatever
// the outcome.
func (h *Handler) handleAudioStop(ctx context.Context) error {
	if h.buf == nil {
		return fmt.Errorf("audio-stop without an open audio buffer")
	}

	wav, err := h.buf.Finalize()
	duration := h.buf.Duration()
	h.buf = nil

	lang := h.lang
	h.lang = ""

	if err != nil {
		return fmt.Errorf("finalizing audio buffer: %w", err)
	}

	h.logger.Info("Audio turn complete",
		slog.Float64("duration_seconds", duration),
		slog.String("language", lang),
	)

	st, info, err := h.adapter.Transcribe(ctx, bytes.NewReader(wav), engine.Options{
		Task:     engine.TaskTranscribe,
		Language: lang,
	})
	if err != nil {
		return fmt.Errorf("transcribing audio turn: %w", err)
	}

	result, err := render.Build(st, info)
	if err != nil {
		return fmt.Errorf("collecting transcription result: %w", err)
	}

	transcript, err := NewTranscript(result.Text)
	if err != nil {
		return err
	}

	return h.writer.WriteEvent(transcript)
}

// Receiving reports whether an audio buffer is currently open.
func (h *Handler) Receiving() bool {
	return h.buf != nil
}
