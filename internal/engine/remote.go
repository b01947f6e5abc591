package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// RemoteConfig contains remote engine configuration
type RemoteConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Remote is the production Engine: it posts canonical WAV audio to an
// upstream faster-whisper server and adapts the verbose JSON response into
// the lazy segment stream contract.
type Remote struct {
	config     RemoteConfig
	httpClient *http.Client
}

// NewRemote creates a remote engine client
func NewRemote(config RemoteConfig) (*Remote, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Remote{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// verboseResponse mirrors the upstream verbose_json response shape.
type verboseResponse struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Duration            float64 `json:"duration"`
	Segments            []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []Word  `json:"words,omitempty"`
	} `json:"segments"`
}

// Transcribe implements Engine against the upstream server. Upstream
// rejections surface as *Error with the server's message attached and are
// never retried here.
func (r *Remote) Transcribe(ctx context.Context, audio io.ReadSeeker, opts Options) (*Stream, *Info, error) {
	if _, err := audio.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("seeking audio: %w", err)
	}

	body, contentType, err := r.buildRequest(audio, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("building engine request: %w", err)
	}

	path := "/v1/audio/transcriptions"
	if opts.Task == TaskTranslate {
		path = "/v1/audio/translations"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("creating engine request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if r.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &Error{Message: fmt.Sprintf("reading engine response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &Error{Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))}
	}

	var parsed verboseResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, nil, &Error{Message: fmt.Sprintf("malformed engine response: %v", err)}
	}

	info := &Info{
		Language:            parsed.Language,
		LanguageProbability: parsed.LanguageProbability,
		Duration:            parsed.Duration,
	}

	// The upstream response arrives fully materialized; the buffered stream
	// still presents it through the lazy single-consumption contract.
	st := NewStream(len(parsed.Segments))
	for _, s := range parsed.Segments {
		st.Push(Segment{ID: s.ID, Start: s.Start, End: s.End, Text: s.Text, Words: s.Words})
	}
	st.Close(nil)

	return st, info, nil
}

// buildRequest creates the multipart/form-data request body
func (r *Remote) buildRequest(audio io.Reader, opts Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := io.Copy(fileWriter, audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
	}

	if r.config.Model != "" {
		fields["model"] = r.config.Model
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if opts.InitialPrompt != "" {
		fields["prompt"] = opts.InitialPrompt
	}
	if opts.VADFilter {
		fields["vad_filter"] = "true"
	}
	if opts.WordTimestamps {
		fields["word_timestamps"] = "true"
	}
	if opts.RepetitionPenalty != 0 && opts.RepetitionPenalty != 1.0 {
		fields["repetition_penalty"] = strconv.FormatFloat(opts.RepetitionPenalty, 'f', -1, 64)
	}

	// Only explicitly supplied VAD fields go on the wire; the upstream keeps
	// its own defaults for the rest.
	if vad := opts.VAD; vad != nil {
		if vad.Threshold != nil {
			fields["vad_threshold"] = strconv.FormatFloat(*vad.Threshold, 'f', -1, 64)
		}
		if vad.NegThreshold != nil {
			fields["vad_neg_threshold"] = strconv.FormatFloat(*vad.NegThreshold, 'f', -1, 64)
		}
		if vad.MinSpeechDurationMs != nil {
			fields["vad_min_speech_duration_ms"] = strconv.Itoa(*vad.MinSpeechDurationMs)
		}
		if vad.MaxSpeechDurationS != nil {
			fields["vad_max_speech_duration_s"] = strconv.FormatFloat(*vad.MaxSpeechDurationS, 'f', -1, 64)
		}
		if vad.MinSilenceDurationMs != nil {
			fields["vad_min_silence_duration_ms"] = strconv.Itoa(*vad.MinSilenceDurationMs)
		}
		if vad.SpeechPadMs != nil {
			fields["vad_speech_pad_ms"] = strconv.Itoa(*vad.SpeechPadMs)
		}
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
