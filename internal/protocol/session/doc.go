// Package session owns the client side of a pose-stream connection.
//
// Ownership boundary:
// - websocket dial and whole-message receive (text or binary)
// - connect retry, backoff and optional reconnect
// - explicit Start/Stop lifecycle; one reader goroutine per client
//
// Each received message is handed to a router.Router and handled to
// completion before the next read.
package session
