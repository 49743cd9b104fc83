package packet

import "gotice/wire"

// KeySources is the extension packet local tooling sends to a proxy's
// SidecarListener to supply the upstream server's packet-key sources; it is
// never forwarded upstream.
type KeySources struct {
	Base
	Sources []uint8
}

const keySourcesID = "packet_key_sources"

func (p *KeySources) ExtensionID() string { return keySourcesID }

func (p *KeySources) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	for _, b := range p.Sources {
		wire.WriteU8(w, b)
	}
	return w.Bytes(), nil
}

func unpackKeySources(body []byte, ctx *Ctx) (ExtensionPacket, error) {
	r := wire.NewReader(body)
	sources, err := wire.ReadGreedy(r, wire.ReadU8)
	if err != nil {
		return nil, err
	}
	return &KeySources{Sources: sources}, nil
}

// MainServerInfo is the extension packet local tooling sends to a proxy's
// SidecarListener to supply the upstream main server's address and ports.
type MainServerInfo struct {
	Base
	Address string
	Ports   []uint16
}

const mainServerInfoID = "main_server_info"

func (p *MainServerInfo) ExtensionID() string { return mainServerInfoID }

func (p *MainServerInfo) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.Address)
	for _, port := range p.Ports {
		wire.WriteU16(w, port)
	}
	return w.Bytes(), nil
}

func unpackMainServerInfo(body []byte, ctx *Ctx) (ExtensionPacket, error) {
	r := wire.NewReader(body)
	addr, err := readStringField(r)
	if err != nil {
		return nil, err
	}
	ports, err := wire.ReadGreedy(r, wire.ReadU16)
	if err != nil {
		return nil, err
	}
	return &MainServerInfo{Address: addr, Ports: ports}, nil
}

// AuthKeyInfo is the extension packet local tooling uses to push the
// upstream server's auth_key, the XOR mask applied to a client's auth_token
// before a Login packet's ciphered_auth_token field matches it.
type AuthKeyInfo struct {
	Base
	AuthKey uint32
}

const authKeyInfoID = "auth_key"

func (p *AuthKeyInfo) ExtensionID() string { return authKeyInfoID }

func (p *AuthKeyInfo) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteU32(w, p.AuthKey)
	return w.Bytes(), nil
}

func unpackAuthKeyInfo(body []byte, ctx *Ctx) (ExtensionPacket, error) {
	r := wire.NewReader(body)
	key, err := wire.ReadU32(r)
	if err != nil {
		return nil, err
	}
	return &AuthKeyInfo{AuthKey: key}, nil
}

func init() {
	RegisterExtension(Serverbound, keySourcesID, unpackKeySources)
	RegisterExtension(Serverbound, mainServerInfoID, unpackMainServerInfo)
	RegisterExtension(Serverbound, authKeyInfoID, unpackAuthKeyInfo)
}
