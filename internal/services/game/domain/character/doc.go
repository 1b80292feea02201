// Package character models player characters: their stat block, level curve,
// derived combat chances, lazy regeneration, and the effective combat profile
// computed from equipped items.
//
// Every function here is pure. Persistence lives behind the storage package
// and the combat and group packages decide when characters change.
package character
