// Package server composes the game core into a runnable process.
//
// It loads the content tables, opens the stores, builds the combat resolver
// and group coordinator once, and serves a gRPC health endpoint plus an
// optional websocket push socket while the group maintenance loop runs.
package server
