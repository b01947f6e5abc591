// Package audio normalizes uploaded and streamed audio payloads into the
// canonical seekable PCM WAV form consumed by the transcription engine.
// It decodes FLAC containers, wraps headerless raw PCM with an explicit WAV
// header, and accumulates incremental audio chunks for streaming sessions.
package audio
