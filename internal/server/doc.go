// Package server implements the gateway's HTTP surface: the OpenAI-style
// transcription API, the legacy konele dictation protocol over WebSocket and
// POST, and the monitoring endpoints.
package server
