// Package recorder persists received frames and connection status snapshots.
//
// Frames flow from the transport's listeners into a growable buffer and are
// batch-inserted on a flush interval. A recorder is optional; the stream
// works identically without one.
package recorder
