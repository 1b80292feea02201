// Package timeouts defines shared timeout constants used across the game
// runtime.
package timeouts

import "time"

// ReadHeader limits how long the push HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// StoreRetry caps the total time spent retrying a busy SQLite commit.
const StoreRetry = 2 * time.Second

// PushWrite caps one websocket write to a connected client.
const PushWrite = 3 * time.Second
