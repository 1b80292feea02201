// Package sqlite implements the game storage interfaces on SQLite.
//
// Uniqueness of the active run per character and the active session per room
// is enforced by partial unique indexes. Multi-row commits run in one
// transaction and retry with exponential backoff while the database is busy.
package sqlite
