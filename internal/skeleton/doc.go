// Package skeleton owns reconstructed bone trees.
//
// Ownership boundary:
// - hierarchy validation and tree build from a SKELETON_DEF handshake
// - bone arena (index = protocol identity), roots, parent->children edges
// - per-bone local transforms and frame application
//
// World transforms are not computed here; a renderer composes them from
// LocalMatrix and the parent/child indices.
package skeleton
