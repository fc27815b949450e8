// Package transport implements the realtime transport client.
//
// The client:
//   - Owns a single long-lived WebSocket multiplexing many channel
//     subscriptions
//   - Reconnects automatically with exponential backoff and jitter
//   - Replays wanted channels after every reconnect
//   - Keeps the connection alive with periodic pings
//   - Rebinds a rotated access token by forcing a reconnect
package transport
