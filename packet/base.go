// Package packet implements the declarative packet schema engine: the
// header formats and ID registries for the four packet families (top-level,
// tribulle, legacy, extension), and the "mutable-until-frozen" packet value
// model described in spec.md §4.C.
package packet

import (
	"fmt"

	"gotice/cipher"
)

// ErrSchema covers an unknown enum value on a strict Enum field, or an
// Optional discriminator that disagreed with the payload actually present.
var ErrSchema = fmt.Errorf("packet: schema error")

// ErrFrozen is the error checkMutable reports for a packet that has been
// frozen.
var ErrFrozen = fmt.Errorf("packet: packet is frozen")

// Family identifies which of the four coexisting packet families a header
// and ID belong to.
type Family int

const (
	FamilyTopLevel Family = iota
	FamilyTribulle
	FamilyLegacy
	FamilyExtension
)

func (f Family) String() string {
	switch f {
	case FamilyTopLevel:
		return "top-level"
	case FamilyTribulle:
		return "tribulle"
	case FamilyLegacy:
		return "legacy"
	case FamilyExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// Direction marks which side of the connection a packet type is declared
// for; a packet schema is only ever valid in one direction.
type Direction int

const (
	Serverbound Direction = iota
	Clientbound
)

// TopLevelID is the (C, CC) pair every top-level and legacy packet is keyed
// by.
type TopLevelID [2]uint8

// Ctx carries the state every pack/unpack call needs: the session's current
// Secrets. Never thread-local — always threaded explicitly per spec.md §9.
type Ctx struct {
	Secrets *cipher.Secrets
}

// ShiftedStringShift returns the ShiftedString shift amount for this
// context's current game version.
func (c *Ctx) ShiftedStringShift() int {
	if c == nil || c.Secrets == nil {
		return 0
	}
	if c.Secrets.IsBotRole() {
		return 0
	}
	v := c.Secrets.GameVersion % 5
	if v < 0 {
		v += 5
	}
	return int(v)
}

// Base is embedded in every packet struct to provide the "mutable until
// frozen" lifecycle from spec.md §3: conn.Connection calls Freeze on every
// packet it reads or writes. Packet fields are plain exported fields with no
// setters, so Freeze does not stop later field assignments; Frozen and
// checkMutable only report the state.
type Base struct {
	frozen bool
}

// Freeze marks the packet immutable. Idempotent.
func (b *Base) Freeze() {
	b.frozen = true
}

// Frozen reports whether Freeze has been called.
func (b *Base) Frozen() bool {
	return b.frozen
}

// checkMutable returns ErrFrozen once Freeze has been called, nil before.
func (b *Base) checkMutable() error {
	if b.frozen {
		return ErrFrozen
	}
	return nil
}
