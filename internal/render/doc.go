// Package render turns a transcription segment stream into the supported
// response formats: aggregated JSON, plain text, TSV, SRT and WebVTT
// subtitles, and a server-sent-event stream of per-segment JSON frames.
package render
