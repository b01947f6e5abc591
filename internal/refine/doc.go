// Package refine corrects transcription text through a chat-completion
// endpoint. Refinement failures are surfaced distinctly from transcription
// failures; the unrefined text is never substituted silently.
package refine
