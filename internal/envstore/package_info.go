// Package envstore holds the in-memory mirror of the environment and
// filter population delivered by the auto-configuration stream.
//
// The Store is owned exclusively by the stream supervisor: every mutation
// happens on the same goroutine, in the order changes arrive on the wire,
// so no internal locking is required.
package envstore
