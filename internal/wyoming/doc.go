// Package wyoming implements the event-driven streaming protocol used by
// home-automation ASR integrations: a persistent TCP connection exchanging
// typed JSON events with optional binary audio payloads. Each connection runs
// a small finite-state handler that accumulates audio chunks and emits a
// transcript when the client signals a stop.
package wyoming
