package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zetahernandez/whisper-fastapi/internal/audio"
	"github.com/zetahernandez/whisper-fastapi/internal/config"
	"github.com/zetahernandez/whisper-fastapi/internal/engine"
	"github.com/zetahernandez/whisper-fastapi/internal/metrics"
	"github.com/zetahernandez/whisper-fastapi/internal/render"
)

// Refiner rewrites a raw transcript with surrounding context. Implemented by
// the refine client; tests substitute fakes.
type Refiner interface {
	Refine(ctx context.Context, text, contextText string) (string, error)
}

// HTTPServer serves the transcription API, the konele protocol, and the
// monitoring endpoints.
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	adapter   *engine.Adapter
	refiner   Refiner
	metrics   *metrics.Metrics
	maxUpload int64
	startTime time.Time
}

// NewHTTPServer creates a new HTTP server with all routes registered.
func NewHTTPServer(cfg config.ServerConfig, adapter *engine.Adapter, refiner Refiner, m *metrics.Metrics, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}

	h := &HTTPServer{
		logger:    logger,
		adapter:   adapter,
		refiner:   refiner,
		metrics:   m,
		maxUpload: cfg.MaxUploadBytes(),
		startTime: time.Now(),
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      withCORS(h.routes()),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
	}

	return h
}

// routes builds the request multiplexer. The konele endpoints are registered
// under every alias spelling clients are known to use.
func (h *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/audio/transcriptions", h.withMetrics("/v1/audio/transcriptions", h.handleSpeech(engine.TaskTranscribe)))
	mux.HandleFunc("/v1/audio/translations", h.withMetrics("/v1/audio/translations", h.handleSpeech(engine.TaskTranslate)))

	for _, prefix := range []string{"", "/v1"} {
		for _, name := range []string{"konele", "k6nele"} {
			base := prefix + "/" + name
			mux.HandleFunc(base+"/status", h.handleKoneleStatus)
			mux.HandleFunc(base+"/ws", h.handleKoneleWS(false))
			mux.HandleFunc(base+"/ws/gpt_refine", h.handleKoneleWS(true))
			mux.HandleFunc(base+"/post", h.withMetrics("/konele/post", h.handleKonelePost(false)))
			mux.HandleFunc(base+"/post/gpt_refine", h.withMetrics("/konele/post/gpt_refine", h.handleKonelePost(true)))
		}
	}

	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start begins serving HTTP requests.
func (h *HTTPServer) Start() error {
	h.logger.Info("HTTP server starting", slog.String("address", h.server.Addr))

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("HTTP server stopping")
	return h.server.Shutdown(ctx)
}

// httpError writes an error response in the API's JSON error shape.
func (h *HTTPServer) httpError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

// handleSpeech serves one multipart transcription or translation request. The
// task comes from the route; an explicit task field overrides it.
func (h *HTTPServer) handleSpeech(defaultTask string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.httpError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			h.httpError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			h.httpError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		responseFormat := r.FormValue("response_format")
		if responseFormat == "" {
			responseFormat = render.FormatJSON
		}
		if !render.ValidFormat(responseFormat) {
			h.httpError(w, http.StatusBadRequest, "invalid response_format: "+responseFormat)
			return
		}

		opts, err := h.optionsFromForm(r, defaultTask)
		if err != nil {
			h.httpError(w, http.StatusBadRequest, err.Error())
			return
		}

		payload, err := io.ReadAll(file)
		if err != nil {
			h.httpError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
			return
		}

		wav, err := audio.Normalize(payload, header.Header.Get("Content-Type"), audio.DefaultRawParams())
		if err != nil {
			h.httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.recordAudio(wav)

		start := time.Now()
		st, info, err := h.adapter.Transcribe(r.Context(), bytes.NewReader(wav), opts)
		if h.metrics != nil {
			h.metrics.RecordTranscription(time.Since(start).Seconds(), err)
		}
		if err != nil {
			h.transcribeError(w, r, err)
			return
		}

		h.respond(w, r, responseFormat, st, info, opts.InitialPrompt)
	}
}

// optionsFromForm collects the engine options of a multipart request. Voice
// activity detector fields left out of the form stay at the engine's own
// defaults.
func (h *HTTPServer) optionsFromForm(r *http.Request, defaultTask string) (engine.Options, error) {
	opts := engine.Options{
		Task:              defaultTask,
		InitialPrompt:     r.FormValue("prompt"),
		RepetitionPenalty: 1.0,
		WordTimestamps:    true,
	}

	if task := r.FormValue("task"); task != "" {
		if task != engine.TaskTranscribe && task != engine.TaskTranslate {
			return opts, fmt.Errorf("invalid task: %s", task)
		}
		opts.Task = task
	}

	if lang := r.FormValue("language"); lang != "" && lang != "und" {
		opts.Language = lang
	}

	var err error
	if opts.VADFilter, err = formBool(r, "vad_filter"); err != nil {
		return opts, err
	}

	if s := r.FormValue("repetition_penalty"); s != "" {
		if opts.RepetitionPenalty, err = strconv.ParseFloat(s, 64); err != nil {
			return opts, fmt.Errorf("invalid repetition_penalty: %s", s)
		}
	}

	if opts.VAD, err = vadOptionsFromForm(r); err != nil {
		return opts, err
	}

	return opts, nil
}

// vadOptionsFromForm builds the detector overlay from whichever tuning fields
// the request actually carries. Nothing supplied means no overlay at all.
func vadOptionsFromForm(r *http.Request) (*engine.VadOptions, error) {
	vad := &engine.VadOptions{}
	set := false

	floatField := func(name string, dst **float64) error {
		s := r.FormValue(name)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", name, s)
		}
		*dst = &f
		set = true
		return nil
	}

	intField := func(name string, dst **int) error {
		s := r.FormValue(name)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", name, s)
		}
		*dst = &n
		set = true
		return nil
	}

	if err := floatField("vad_threshold", &vad.Threshold); err != nil {
		return nil, err
	}
	if err := floatField("vad_neg_threshold", &vad.NegThreshold); err != nil {
		return nil, err
	}
	if err := intField("vad_min_speech_duration_ms", &vad.MinSpeechDurationMs); err != nil {
		return nil, err
	}
	if err := floatField("vad_max_speech_duration_s", &vad.MaxSpeechDurationS); err != nil {
		return nil, err
	}
	if err := intField("vad_min_silence_duration_ms", &vad.MinSilenceDurationMs); err != nil {
		return nil, err
	}
	if err := intField("vad_speech_pad_ms", &vad.SpeechPadMs); err != nil {
		return nil, err
	}

	if !set {
		return nil, nil
	}
	return vad, nil
}

func formBool(r *http.Request, name string) (bool, error) {
	s := r.FormValue(name)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %s", name, s)
	}
	return v, nil
}

// respond renders the transcription in the requested format. Streamed formats
// write segments as the engine produces them; a mid-stream engine failure can
// only be logged because the status line is already out.
func (h *HTTPServer) respond(w http.ResponseWriter, r *http.Request, format string, st *engine.Stream, info *engine.Info, prompt string) {
	w.Header().Set("Content-Type", render.ContentType(format))

	var err error
	switch format {
	case render.FormatJSON:
		err = render.JSON(w, st, info)
	case render.FormatText:
		if h.refiner != nil && formRefineRequested(r) {
			h.respondRefined(w, r, st, info, prompt)
			return
		}
		err = render.Text(w, st)
	case render.FormatTSV:
		err = render.TSV(w, st)
	case render.FormatSRT:
		err = render.SRT(w, st)
	case render.FormatVTT:
		err = render.VTT(w, st)
	case render.FormatStream:
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		err = render.SSE(w, st)
	}

	if err != nil {
		h.logger.Error("Response rendering failed",
			slog.String("format", format),
			slog.String("error", err.Error()),
		)
	}
}

func formRefineRequested(r *http.Request) bool {
	v, err := formBool(r, "gpt_refine")
	return err == nil && v
}

// respondRefined materializes the transcript and passes it through the
// language-model rewrite before answering.
func (h *HTTPServer) respondRefined(w http.ResponseWriter, r *http.Request, st *engine.Stream, info *engine.Info, prompt string) {
	result, err := render.Build(st, info)
	if err != nil {
		h.transcribeError(w, r, err)
		return
	}

	refined, err := h.refiner.Refine(r.Context(), result.Text, prompt)
	if h.metrics != nil {
		h.metrics.RecordRefine(err)
	}
	if err != nil {
		h.logger.Error("Refinement failed", slog.String("error", err.Error()))
		h.httpError(w, http.StatusBadGateway, "refinement failed: "+err.Error())
		return
	}

	io.WriteString(w, refined)
}

// transcribeError maps an engine failure to a response. Client cancellation
// gets no response at all.
func (h *HTTPServer) transcribeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}

	h.logger.Error("Transcription failed", slog.String("error", err.Error()))
	h.httpError(w, http.StatusInternalServerError, err.Error())
}

func (h *HTTPServer) recordAudio(wav []byte) {
	if h.metrics == nil {
		return
	}

	info, err := audio.GetWAVInfo(wav)
	if err != nil {
		h.metrics.RecordAudioNormalized(len(wav), 0)
		return
	}
	h.metrics.RecordAudioNormalized(len(wav), info.Duration)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Response write failed", slog.String("error", err.Error()))
	}
}

// handleHealth returns server health status
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "healthy",
		"service":        "whisper-gateway",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"workers":        h.adapter.Workers(),
	})
}
