// Package storage defines persistence records and interfaces for the game
// service.
//
// It covers characters, inventory, dungeon runs, endless progress, group
// sessions with their contribution ledgers, room activity, and the battle log.
// The durable implementation lives in the sqlite subpackage. EphemeralStore is
// the TTL side channel for rate limits, cooldowns, and short windows; the
// ephemeral subpackage implements it in memory.
//
// Common error types:
//   - ErrNotFound: requested record is missing
//   - ErrActiveRunExists: a character already has an active run
//   - ErrActiveSessionExists: a room already has an active group session
package storage
