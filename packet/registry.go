package packet

import "fmt"

// TopLevelPacket is implemented by every concrete top-level packet. Body
// packing/unpacking excludes the header: the Header types below own the
// (C, CC) id and, for serverbound packets, the fingerprint byte.
type TopLevelPacket interface {
	TopLevelID() TopLevelID
	PackBody(ctx *Ctx) ([]byte, error)
}

// TopLevelFactory unpacks a packet body into a concrete TopLevelPacket.
type TopLevelFactory func(body []byte, ctx *Ctx) (TopLevelPacket, error)

type topLevelEntry struct {
	name    string
	cipher  string // "" (no cipher), cipher.NameIdentification, or cipher.NameXOR
	factory TopLevelFactory
}

var topLevelRegistry = map[Direction]map[TopLevelID]topLevelEntry{
	Serverbound: {},
	Clientbound: {},
}

// RegisterTopLevel adds a concrete top-level packet type to the (family,
// direction, id) registry described in spec.md §9. cipherName is "" for
// packets with no declared CIPHER.
func RegisterTopLevel(dir Direction, id TopLevelID, name string, cipherName string, factory TopLevelFactory) {
	topLevelRegistry[dir][id] = topLevelEntry{name: name, cipher: cipherName, factory: factory}
}

// LookupTopLevel finds the registered entry for (dir, id), if any.
func LookupTopLevel(dir Direction, id TopLevelID) (name string, cipherName string, factory TopLevelFactory, ok bool) {
	entry, ok := topLevelRegistry[dir][id]
	if !ok {
		return "", "", nil, false
	}
	return entry.name, entry.cipher, entry.factory, true
}

// GenericUnknown is the fallback schema used for any top-level ID with no
// registered descriptor: an opaque body, per spec.md §4.C. It is also
// substituted in place of a registered-but-ciphered schema when the active
// Secrets don't yet carry key material.
type GenericUnknown struct {
	Base
	ID   TopLevelID
	Body []byte
}

// NewGenericUnknown builds a GenericUnknown carrying a copy of body.
func NewGenericUnknown(id TopLevelID, body []byte) *GenericUnknown {
	return &GenericUnknown{ID: id, Body: append([]byte(nil), body...)}
}

func (g *GenericUnknown) TopLevelID() TopLevelID { return g.ID }

func (g *GenericUnknown) PackBody(ctx *Ctx) ([]byte, error) {
	return append([]byte(nil), g.Body...), nil
}

// UnpackTopLevel resolves the registered schema for (dir, id) and unpacks
// body with it, falling back to GenericUnknown for unregistered IDs. When
// dir is Serverbound, a registered CIPHER but absent key material also falls
// back to GenericUnknown — the caller is responsible for deciphering body
// first when key material IS available (see conn.Connection).
func UnpackTopLevel(dir Direction, id TopLevelID, body []byte, ctx *Ctx, cipherKeyAvailable bool) (TopLevelPacket, error) {
	name, cipherName, factory, ok := LookupTopLevel(dir, id)
	if !ok {
		return NewGenericUnknown(id, body), nil
	}
	if dir == Serverbound && cipherName != "" && !cipherKeyAvailable {
		return NewGenericUnknown(id, body), nil
	}

	pkt, err := factory(body, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking %s: %v", ErrSchema, name, err)
	}
	return pkt, nil
}
