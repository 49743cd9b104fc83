package packet

import "gotice/wire"

// TribulleWrapper is the top-level (60, 3) packet carrying exactly one
// nested tribulle packet.
type TribulleWrapper struct {
	Base
	Direction Direction
	Nested    TribullePacket
}

func (w *TribulleWrapper) TopLevelID() TopLevelID { return TribulleWrapperID }

func (tw *TribulleWrapper) PackBody(ctx *Ctx) ([]byte, error) {
	body, err := tw.Nested.PackBody(ctx)
	if err != nil {
		return nil, err
	}
	w := wire.NewWriter()
	WriteTribulleHeader(w, TribulleHeader{ID: tw.Nested.TribulleID()})
	w.WriteBytes(body)
	return w.Bytes(), nil
}

func unpackTribulleWrapper(dir Direction) TopLevelFactory {
	return func(body []byte, ctx *Ctx) (TopLevelPacket, error) {
		r := wire.NewReader(body)
		h, err := ReadTribulleHeader(r)
		if err != nil {
			return nil, err
		}
		nested, err := UnpackTribulle(dir, h.ID, r.Remaining(), ctx)
		if err != nil {
			return nil, err
		}
		return &TribulleWrapper{Direction: dir, Nested: nested}, nil
	}
}

// LegacyWrapper is the top-level (1, 1) packet whose body is a single
// u16-prefixed UTF-8 string, itself \x01-split into the nested legacy
// packet's id and body components.
type LegacyWrapper struct {
	Base
	Direction Direction
	Nested    LegacyPacket
}

func (w *LegacyWrapper) TopLevelID() TopLevelID { return LegacyWrapperID }

func (lw *LegacyWrapper) PackBody(ctx *Ctx) ([]byte, error) {
	s, err := PackLegacyString(lw.Nested, ctx)
	if err != nil {
		return nil, err
	}
	w := wire.NewWriter()
	wire.WriteString(w, s)
	return w.Bytes(), nil
}

func unpackLegacyWrapper(dir Direction) TopLevelFactory {
	return func(body []byte, ctx *Ctx) (TopLevelPacket, error) {
		r := wire.NewReader(body)
		s, err := wire.ReadString(r)
		if err != nil {
			return nil, err
		}
		nested, err := UnpackLegacyString(s, dir, ctx)
		if err != nil {
			return nil, err
		}
		return &LegacyWrapper{Direction: dir, Nested: nested}, nil
	}
}

// ExtensionWrapper is the top-level (255, 255) packet carrying exactly one
// nested extension packet. Extension packets are never forwarded upstream by
// a proxy.
type ExtensionWrapper struct {
	Base
	Direction Direction
	Nested    ExtensionPacket
}

func (w *ExtensionWrapper) TopLevelID() TopLevelID { return ExtensionWrapperID }

func (ew *ExtensionWrapper) PackBody(ctx *Ctx) ([]byte, error) {
	body, err := ew.Nested.PackBody(ctx)
	if err != nil {
		return nil, err
	}
	w := wire.NewWriter()
	WriteExtensionHeader(w, ExtensionHeader{ID: ew.Nested.ExtensionID()})
	w.WriteBytes(body)
	return w.Bytes(), nil
}

func unpackExtensionWrapper(dir Direction) TopLevelFactory {
	return func(body []byte, ctx *Ctx) (TopLevelPacket, error) {
		r := wire.NewReader(body)
		h, err := ReadExtensionHeader(r)
		if err != nil {
			return nil, err
		}
		nested, err := UnpackExtension(dir, h.ID, r.Remaining(), ctx)
		if err != nil {
			return nil, err
		}
		return &ExtensionWrapper{Direction: dir, Nested: nested}, nil
	}
}

func init() {
	for _, dir := range []Direction{Serverbound, Clientbound} {
		RegisterTopLevel(dir, TribulleWrapperID, "TribulleWrapper", "", unpackTribulleWrapper(dir))
		RegisterTopLevel(dir, LegacyWrapperID, "LegacyWrapper", "", unpackLegacyWrapper(dir))
		RegisterTopLevel(dir, ExtensionWrapperID, "ExtensionWrapper", "", unpackExtensionWrapper(dir))
	}
}
