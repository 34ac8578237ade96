// Package protocol owns the packet model and the registries that route it.
//
// Ownership boundary:
// - packet/bundle model and bundle registry
// - frame encoder/decoder (header codec lives in frame, primitives in wire)
// - listener registry with declared capability propagation
// - environment and networker contracts consumed by session
package protocol
