package packet

import (
	"fmt"
	"strings"
)

// TribullePacket is implemented by every concrete tribulle (community
// platform) packet.
type TribullePacket interface {
	TribulleID() int16
	PackBody(ctx *Ctx) ([]byte, error)
}

type TribulleFactory func(body []byte, ctx *Ctx) (TribullePacket, error)

type tribulleEntry struct {
	name    string
	factory TribulleFactory
}

var tribulleRegistry = map[Direction]map[int16]tribulleEntry{
	Serverbound: {},
	Clientbound: {},
}

func RegisterTribulle(dir Direction, id int16, name string, factory TribulleFactory) {
	tribulleRegistry[dir][id] = tribulleEntry{name: name, factory: factory}
}

// GenericTribulle is the tribulle family's opaque-body fallback.
type GenericTribulle struct {
	Base
	ID   int16
	Body []byte
}

func NewGenericTribulle(id int16, body []byte) *GenericTribulle {
	return &GenericTribulle{ID: id, Body: append([]byte(nil), body...)}
}

func (g *GenericTribulle) TribulleID() int16 { return g.ID }
func (g *GenericTribulle) PackBody(ctx *Ctx) ([]byte, error) {
	return append([]byte(nil), g.Body...), nil
}

// UnpackTribulle resolves and unpacks a nested tribulle packet, falling back
// to GenericTribulle for unregistered IDs.
func UnpackTribulle(dir Direction, id int16, body []byte, ctx *Ctx) (TribullePacket, error) {
	entry, ok := tribulleRegistry[dir][id]
	if !ok {
		return NewGenericTribulle(id, body), nil
	}
	pkt, err := entry.factory(body, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking tribulle %s: %v", ErrSchema, entry.name, err)
	}
	return pkt, nil
}

// LegacyPacket is implemented by every concrete legacy (ASCII component)
// packet. Legacy packets pack/unpack from a list of UTF-8 body components
// rather than a byte schema, per spec.md §4.C.
type LegacyPacket interface {
	LegacyID() TopLevelID
	BodyComponents(ctx *Ctx) ([]string, error)
}

type LegacyFactory func(components []string, ctx *Ctx) (LegacyPacket, error)

type legacyEntry struct {
	name    string
	factory LegacyFactory
}

var legacyRegistry = map[Direction]map[TopLevelID]legacyEntry{
	Serverbound: {},
	Clientbound: {},
}

func RegisterLegacy(dir Direction, id TopLevelID, name string, factory LegacyFactory) {
	legacyRegistry[dir][id] = legacyEntry{name: name, factory: factory}
}

// GenericLegacy is the legacy family's opaque-components fallback.
type GenericLegacy struct {
	Base
	ID         TopLevelID
	Components []string
}

func NewGenericLegacy(id TopLevelID, components []string) *GenericLegacy {
	return &GenericLegacy{ID: id, Components: append([]string(nil), components...)}
}

func (g *GenericLegacy) LegacyID() TopLevelID { return g.ID }
func (g *GenericLegacy) BodyComponents(ctx *Ctx) ([]string, error) {
	return append([]string(nil), g.Components...), nil
}

// UnpackLegacyString splits a legacy wrapper's single packed string on
// 0x01. The first component's first two code points are the (C, CC) id; the
// remainder of that component and every later component are body
// components, per spec.md §3/§6.
func UnpackLegacyString(s string, dir Direction, ctx *Ctx) (LegacyPacket, error) {
	components := strings.Split(s, "\x01")
	if len(components) == 0 || len([]rune(components[0])) < 2 {
		return nil, fmt.Errorf("%w: legacy id needs at least 2 code points", ErrSchema)
	}

	runes := []rune(components[0])
	id := TopLevelID{uint8(runes[0]), uint8(runes[1])}

	firstRest := string(runes[2:])
	body := append([]string{firstRest}, components[1:]...)

	entry, ok := legacyRegistry[dir][id]
	if !ok {
		return NewGenericLegacy(id, body), nil
	}
	pkt, err := entry.factory(body, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking legacy %s: %v", ErrSchema, entry.name, err)
	}
	return pkt, nil
}

// PackLegacyString reassembles a legacy packet's id and body components into
// the single \x01-joined string the wrapper carries on the wire.
func PackLegacyString(pkt LegacyPacket, ctx *Ctx) (string, error) {
	id := pkt.LegacyID()
	components, err := pkt.BodyComponents(ctx)
	if err != nil {
		return "", err
	}

	first := string([]rune{rune(id[0]), rune(id[1])})
	if len(components) > 0 {
		first += components[0]
		components = components[1:]
	}

	all := append([]string{first}, components...)
	return strings.Join(all, "\x01"), nil
}

// ExtensionPacket is implemented by every concrete extension packet — the
// out-of-band family used only between a proxy and its local tooling, never
// forwarded upstream.
type ExtensionPacket interface {
	ExtensionID() string
	PackBody(ctx *Ctx) ([]byte, error)
}

type ExtensionFactory func(body []byte, ctx *Ctx) (ExtensionPacket, error)

type extensionEntry struct {
	factory ExtensionFactory
}

var extensionRegistry = map[Direction]map[string]extensionEntry{
	Serverbound: {},
	Clientbound: {},
}

func RegisterExtension(dir Direction, id string, factory ExtensionFactory) {
	extensionRegistry[dir][id] = extensionEntry{factory: factory}
}

// GenericExtension is the extension family's opaque-body fallback.
type GenericExtension struct {
	Base
	ID   string
	Body []byte
}

func NewGenericExtension(id string, body []byte) *GenericExtension {
	return &GenericExtension{ID: id, Body: append([]byte(nil), body...)}
}

func (g *GenericExtension) ExtensionID() string { return g.ID }
func (g *GenericExtension) PackBody(ctx *Ctx) ([]byte, error) {
	return append([]byte(nil), g.Body...), nil
}

// UnpackExtension resolves and unpacks a nested extension packet.
func UnpackExtension(dir Direction, id string, body []byte, ctx *Ctx) (ExtensionPacket, error) {
	entry, ok := extensionRegistry[dir][id]
	if !ok {
		return NewGenericExtension(id, body), nil
	}
	pkt, err := entry.factory(body, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking extension %s: %v", ErrSchema, id, err)
	}
	return pkt, nil
}

// Any is the sum type described in spec.md §9's "variant packets" design
// note: a decoded nested (or top-level) packet value tagged by which family
// it came from, holding whichever concrete value that family produced.
type Any struct {
	Family Family
	Value  any
}
