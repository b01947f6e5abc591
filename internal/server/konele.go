package server

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/zetahernandez/whisper-fastapi/internal/audio"
	"github.com/zetahernandez/whisper-fastapi/internal/engine"
	"github.com/zetahernandez/whisper-fastapi/internal/render"
)

// Trailing sentinel konele clients append to the final audio frame.
var eosSentinel = []byte("EOS")

// koneleWSResponse is the envelope dictation clients expect over WebSocket.
type koneleWSResponse struct {
	Status  int          `json:"status"`
	Segment int          `json:"segment"`
	Result  koneleResult `json:"result"`
	ID      string       `json:"id"`
}

type koneleResult struct {
	Hypotheses []koneleTranscript `json:"hypotheses"`
	Final      bool               `json:"final"`
}

type koneleTranscript struct {
	Transcript string `json:"transcript"`
}

// konelePostResponse is the flatter envelope of the POST variant.
type konelePostResponse struct {
	Status     int               `json:"status"`
	Hypotheses []koneleUtterance `json:"hypotheses"`
	ID         string            `json:"id"`
}

type koneleUtterance struct {
	Utterance string `json:"utterance"`
}

// koneleParams are the request parameters shared by both konele transports.
type koneleParams struct {
	task          string
	language      string
	initialPrompt string
	vadFilter     bool
	contentType   string
}

// koneleParamsFromQuery reads the konele query parameters. The WebSocket
// variant carries the framing declaration in a content-type query parameter;
// the POST variant overrides it with the request header.
func koneleParamsFromQuery(r *http.Request) koneleParams {
	query := r.URL.Query()

	p := koneleParams{
		task:          query.Get("task"),
		initialPrompt: query.Get("initial_prompt"),
		contentType:   query.Get("content-type"),
	}

	if p.task == "" {
		p.task = engine.TaskTranscribe
	}

	lang := query.Get("lang")
	if lang == "" {
		lang = "und"
	}
	// Clients send BCP 47 tags like en-US; the engine wants the bare code.
	lang, _, _ = strings.Cut(lang, "-")
	if lang != "und" {
		p.language = lang
	}

	if v, err := strconv.ParseBool(query.Get("vad_filter")); err == nil {
		p.vadFilter = v
	}

	return p
}

func (p koneleParams) engineOptions() engine.Options {
	return engine.Options{
		Task:              p.task,
		Language:          p.language,
		VADFilter:         p.vadFilter,
		InitialPrompt:     p.initialPrompt,
		RepetitionPenalty: 1.0,
		WordTimestamps:    true,
	}
}

// parseRawContentType reads the legacy framing declaration, e.g.
// "audio/x-raw, rate=16000, channels=1". GStreamer caps type annotations like
// rate=(int)44100 are accepted too. Entries that fail to parse keep the
// defaults.
func parseRawContentType(contentType string, defaults audio.RawParams) audio.RawParams {
	params := defaults

	for _, part := range strings.Split(contentType, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}

		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "(") {
			if _, rest, ok := strings.Cut(value, ")"); ok {
				value = rest
			}
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}

		switch strings.TrimSpace(key) {
		case "channels":
			params.Channels = n
		case "rate":
			params.Rate = n
		}
	}

	return params
}

// contentHash is the stable request id: the digest of the audio bytes exactly
// as received, sentinel included.
func contentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// transcribeKonele runs the shared tail of both konele transports: normalize,
// transcribe, materialize, and optionally refine.
func (h *HTTPServer) transcribeKonele(r *http.Request, raw []byte, p koneleParams, refine bool) (string, error) {
	params := parseRawContentType(p.contentType, audio.DefaultRawParams())

	wav, err := audio.Normalize(raw, p.contentType, params)
	if err != nil {
		return "", err
	}
	h.recordAudio(wav)

	st, info, err := h.adapter.Transcribe(r.Context(), bytes.NewReader(wav), p.engineOptions())
	if err != nil {
		return "", err
	}

	result, err := render.Build(st, info)
	if err != nil {
		return "", err
	}

	text := result.Text
	if refine && h.refiner != nil {
		refined, err := h.refiner.Refine(r.Context(), text, p.initialPrompt)
		if h.metrics != nil {
			h.metrics.RecordRefine(err)
		}
		if err != nil {
			return "", err
		}
		text = refined
	}

	return text, nil
}

// handleKonelePost serves the one-shot dictation variant: the whole utterance
// arrives as the request body, framed by the Content-Type header.
func (h *HTTPServer) handleKonelePost(refine bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.httpError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
		if err != nil {
			h.httpError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
			return
		}

		p := koneleParamsFromQuery(r)
		if ct := r.Header.Get("Content-Type"); ct != "" {
			p.contentType = ct
		}

		id := contentHash(body)

		text, err := h.transcribeKonele(r, body, p, refine)
		if err != nil {
			h.koneleError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, h.logger, konelePostResponse{
			Status:     0,
			Hypotheses: []koneleUtterance{{Utterance: text}},
			ID:         id,
		})
	}
}

// handleKoneleWS serves the streaming dictation variant: binary frames are
// accumulated until one ends with the EOS sentinel, then the whole utterance
// is transcribed and a single final result is sent back.
func (h *HTTPServer) handleKoneleWS(refine bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			h.logger.Warn("WebSocket accept failed", slog.String("error", err.Error()))
			return
		}
		defer c.CloseNow()

		c.SetReadLimit(h.maxUpload)

		var data []byte
		for {
			_, frame, err := c.Read(r.Context())
			if err != nil {
				if len(data) == 0 {
					return
				}
				// Transcribe whatever arrived before the connection broke.
				break
			}

			data = append(data, frame...)
			if bytes.HasSuffix(data, eosSentinel) {
				break
			}
		}

		id := contentHash(data)
		raw := bytes.TrimSuffix(data, eosSentinel)

		p := koneleParamsFromQuery(r)
		if p.contentType == "" {
			p.contentType = "audio/x-raw"
		}

		text, err := h.transcribeKonele(r, raw, p, refine)
		if err != nil {
			h.logger.Error("Dictation failed", slog.String("error", err.Error()))
			c.Close(websocket.StatusInternalError, "transcription failed")
			return
		}

		resp := koneleWSResponse{
			Status:  0,
			Segment: 0,
			Result: koneleResult{
				Hypotheses: []koneleTranscript{{Transcript: text}},
				Final:      true,
			},
			ID: id,
		}

		if err := wsjson.Write(r.Context(), c, resp); err != nil {
			h.logger.Warn("WebSocket write failed", slog.String("error", err.Error()))
			return
		}

		c.Close(websocket.StatusNormalClosure, "")
	}
}

// handleKoneleStatus reports worker availability to polling clients.
func (h *HTTPServer) handleKoneleStatus(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("WebSocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer c.CloseNow()

	status := map[string]int{"num_workers_available": h.adapter.Workers()}
	if err := wsjson.Write(r.Context(), c, status); err != nil {
		return
	}

	c.Close(websocket.StatusNormalClosure, "")
}

// koneleError maps failures of the POST variant to status codes: bad audio is
// the client's fault, everything past normalization is ours.
func (h *HTTPServer) koneleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, audio.ErrUnsupportedFormat) {
		h.httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.transcribeError(w, r, err)
}
