// Package battlelog contains durable battle log writes for combat and group
// encounters.
//
// Every resolved action appends one entry with the monster HP before and
// after the hit and the seed of the rolls that produced it, so a disputed
// outcome can be replayed from the log alone.
//
// For distributed tracing, this service still uses package `internal/platform/otel`.
package battlelog
