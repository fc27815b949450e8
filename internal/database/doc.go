// Package database provides the PostgreSQL connection pool for frame storage.
//
// The streamer keeps a single pool; recorded frames and status snapshots are
// time-series data, so TimescaleDB-backed instances work unchanged.
package database
