// Package group coordinates shared room encounters: four staged monsters
// fought by every participant of a room at once, threshold events,
// engagement chains, inactivity regression, and proportional reward
// settlement.
//
// All mutation of a room's session happens under that room's lock, so
// concurrent hits never lose damage and a stage transition fires once.
package group
