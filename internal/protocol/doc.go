// Package protocol owns the pose-stream wire contract.
//
// Ownership boundary:
// - wire constants (magic, header size, matrix layout, handshake tag)
// - inbound message shape (text or binary, whole message per delivery)
// - error taxonomy shared by frame, handshake and skeleton packages
//
// Sub-packages:
// - frame: binary pose-frame codec
// - handshake: SKELETON_DEF message schema
// - session: websocket client session and reconnect policy
package protocol
