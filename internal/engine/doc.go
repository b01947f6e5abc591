// Package engine defines the transcription engine contract and wraps the one
// shared engine instance behind a worker-pool adapter. The engine itself is a
// black box: it accepts canonical audio plus options and produces a lazy
// sequence of timed text segments with a metadata summary.
package engine
