// Package simulator serves a synthetic pose stream for local runs and tests.
//
// Ownership boundary:
//   - builds the demo chain rig and its per-tick local matrices
//   - serves /ws (handshake then frames), /health and /metrics over gin
//   - never consumes frames; the client side lives in session and router
package simulator
