// Package combat resolves solo dungeon actions.
//
// A Resolver owns the run lifecycle of every character: it starts runs from
// dungeon definitions, resolves each inbound action through the rate-limit,
// energy, size, damage, and lethal-blow gates, and commits the outcome of
// the action atomically together with its battle log entry. Damage math is
// exposed as ComputeDamage so group encounters share the same formula.
package combat
