package packet

import (
	"fmt"
	"strconv"
	"strings"

	"gotice/wire"
)

func readStringField(r *wire.Reader) (string, error) { return wire.ReadString(r) }

func writeStringField(w *wire.Writer, s string) { wire.WriteString(w, s) }

// ExpectedLoaderStageSize is the loader_stage_size every genuine client
// presents in its Handshake packet, used both by server to validate an
// incoming handshake and by a proxy correcting one in flight.
const ExpectedLoaderStageSize = 0x7EE88

// Handshake is (28, 1), serverbound, the first packet sent on a main
// connection.
type Handshake struct {
	Base
	GameVersion               int16
	Language                  string
	ConnectionToken           string
	PlayerType                string
	BrowserInfo               string
	LoaderStageSize           int32
	CCFData                   string
	ConcatenatedFontNameHash  string
	ServerString              string
	UnkInt10                  int32
	MillisecondsSinceStart    int32
	GameName                  string
}

var handshakeID = TopLevelID{28, 1}

func (p *Handshake) TopLevelID() TopLevelID { return handshakeID }

func (p *Handshake) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteI16(w, p.GameVersion)
	writeStringField(w, p.Language)
	writeStringField(w, p.ConnectionToken)
	writeStringField(w, p.PlayerType)
	writeStringField(w, p.BrowserInfo)
	wire.WriteI32(w, p.LoaderStageSize)
	writeStringField(w, p.CCFData)
	writeStringField(w, p.ConcatenatedFontNameHash)
	writeStringField(w, p.ServerString)
	wire.WriteI32(w, p.UnkInt10)
	wire.WriteI32(w, p.MillisecondsSinceStart)
	writeStringField(w, p.GameName)
	return w.Bytes(), nil
}

func unpackHandshake(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &Handshake{}
	var err error
	if p.GameVersion, err = wire.ReadI16(r); err != nil {
		return nil, err
	}
	if p.Language, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.ConnectionToken, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.PlayerType, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.BrowserInfo, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.LoaderStageSize, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.CCFData, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.ConcatenatedFontNameHash, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.ServerString, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.UnkInt10, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.MillisecondsSinceStart, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.GameName, err = readStringField(r); err != nil {
		return nil, err
	}
	return p, nil
}

// HandshakeResponse is (26, 3), clientbound, the server's reply to Handshake.
type HandshakeResponse struct {
	Base
	NumOnlinePlayers int32
	Language         string
	Country          string
	AuthToken        int32
	UnkBoolean5      bool
}

var handshakeResponseID = TopLevelID{26, 3}

func (p *HandshakeResponse) TopLevelID() TopLevelID { return handshakeResponseID }

func (p *HandshakeResponse) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteI32(w, p.NumOnlinePlayers)
	writeStringField(w, p.Language)
	writeStringField(w, p.Country)
	wire.WriteI32(w, p.AuthToken)
	wire.WriteBool(w, p.UnkBoolean5)
	return w.Bytes(), nil
}

func unpackHandshakeResponse(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &HandshakeResponse{}
	var err error
	if p.NumOnlinePlayers, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.Language, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.Country, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.AuthToken, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.UnkBoolean5, err = wire.ReadBool(r); err != nil {
		return nil, err
	}
	return p, nil
}

// SystemInformation is (28, 17), serverbound.
type SystemInformation struct {
	Base
	Language     string
	OS           string
	FlashVersion string
	ZeroByte     uint8
}

var systemInformationID = TopLevelID{28, 17}

func (p *SystemInformation) TopLevelID() TopLevelID { return systemInformationID }

func (p *SystemInformation) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.Language)
	writeStringField(w, p.OS)
	writeStringField(w, p.FlashVersion)
	wire.WriteU8(w, p.ZeroByte)
	return w.Bytes(), nil
}

func unpackSystemInformation(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &SystemInformation{}
	var err error
	if p.Language, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.OS, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.FlashVersion, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.ZeroByte, err = wire.ReadU8(r); err != nil {
		return nil, err
	}
	return p, nil
}

// ClientVerificationRequest is (26, 20), clientbound: the server challenges
// the client to prove it can run the cipher keyed by the decimal string of
// VerificationToken.
type ClientVerificationRequest struct {
	Base
	VerificationToken int32
}

var clientVerificationRequestID = TopLevelID{26, 20}

func (p *ClientVerificationRequest) TopLevelID() TopLevelID { return clientVerificationRequestID }

func (p *ClientVerificationRequest) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteI32(w, p.VerificationToken)
	return w.Bytes(), nil
}

func unpackClientVerificationRequest(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	token, err := wire.ReadI32(r)
	if err != nil {
		return nil, err
	}
	return &ClientVerificationRequest{VerificationToken: token}, nil
}

// ClientVerificationResponse is (26, 20), serverbound: the client's answer,
// produced by cipher.ClientVerificationResponse.
type ClientVerificationResponse struct {
	Base
	CipheredData []byte
}

var clientVerificationResponseID = TopLevelID{26, 20}

func (p *ClientVerificationResponse) TopLevelID() TopLevelID { return clientVerificationResponseID }

func (p *ClientVerificationResponse) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	w.WriteBytes(p.CipheredData)
	return w.Bytes(), nil
}

func unpackClientVerificationResponse(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	return &ClientVerificationResponse{CipheredData: append([]byte(nil), body...)}, nil
}

// Login is (26, 8), serverbound, CIPHER=identification.
type Login struct {
	Base
	Username          string
	PasswordHash      string
	LoaderURL         string
	StartRoom         string
	CipheredAuthToken int32
	UnkShort6         int16
	LoginMethod       uint8
	UnkString8        string
}

var loginID = TopLevelID{26, 8}

func (p *Login) TopLevelID() TopLevelID { return loginID }

func (p *Login) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.Username)
	writeStringField(w, p.PasswordHash)
	writeStringField(w, p.LoaderURL)
	writeStringField(w, p.StartRoom)
	wire.WriteI32(w, p.CipheredAuthToken)
	wire.WriteI16(w, p.UnkShort6)
	wire.WriteU8(w, p.LoginMethod)
	writeStringField(w, p.UnkString8)
	return w.Bytes(), nil
}

func unpackLogin(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &Login{}
	var err error
	if p.Username, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.PasswordHash, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.LoaderURL, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.StartRoom, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.CipheredAuthToken, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.UnkShort6, err = wire.ReadI16(r); err != nil {
		return nil, err
	}
	if p.LoginMethod, err = wire.ReadU8(r); err != nil {
		return nil, err
	}
	if p.UnkString8, err = readStringField(r); err != nil {
		return nil, err
	}
	return p, nil
}

// LoginSuccess is (26, 2), clientbound.
type LoginSuccess struct {
	Base
	GlobalID         int32
	Username         string
	PlayedTime       int32
	Community        uint8
	SessionID        int32
	Registered       bool
	StaffRoleIDs     []uint8
	UnkBoolean8      bool
	UnkUShort9       uint16
	CommunityToFlag  map[string]string
}

var loginSuccessID = TopLevelID{26, 2}

func (p *LoginSuccess) TopLevelID() TopLevelID { return loginSuccessID }

func (p *LoginSuccess) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteI32(w, p.GlobalID)
	writeStringField(w, p.Username)
	wire.WriteI32(w, p.PlayedTime)
	wire.WriteU8(w, p.Community)
	wire.WriteI32(w, p.SessionID)
	wire.WriteBool(w, p.Registered)
	wire.WriteU8(w, uint8(len(p.StaffRoleIDs)))
	for _, id := range p.StaffRoleIDs {
		wire.WriteU8(w, id)
	}
	wire.WriteBool(w, p.UnkBoolean8)
	wire.WriteU16(w, p.UnkUShort9)
	wire.WriteU16(w, uint16(len(p.CommunityToFlag)))
	for k, v := range p.CommunityToFlag {
		writeStringField(w, k)
		writeStringField(w, v)
	}
	return w.Bytes(), nil
}

func unpackLoginSuccess(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &LoginSuccess{CommunityToFlag: map[string]string{}}
	var err error
	if p.GlobalID, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.Username, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.PlayedTime, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.Community, err = wire.ReadU8(r); err != nil {
		return nil, err
	}
	if p.SessionID, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.Registered, err = wire.ReadBool(r); err != nil {
		return nil, err
	}
	n, err := wire.ReadU8(r)
	if err != nil {
		return nil, err
	}
	p.StaffRoleIDs, err = wire.ReadFixedArray(r, int(n), wire.ReadU8)
	if err != nil {
		return nil, err
	}
	if p.UnkBoolean8, err = wire.ReadBool(r); err != nil {
		return nil, err
	}
	if p.UnkUShort9, err = wire.ReadU16(r); err != nil {
		return nil, err
	}
	flagCount, err := wire.ReadU16(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(flagCount); i++ {
		k, err := readStringField(r)
		if err != nil {
			return nil, err
		}
		v, err := readStringField(r)
		if err != nil {
			return nil, err
		}
		p.CommunityToFlag[k] = v
	}
	return p, nil
}

// AccountError is (26, 10), clientbound: login, or post-login account action,
// was rejected with the given code.
type AccountError struct {
	Base
	ErrorCode int16
}

var accountErrorID = TopLevelID{26, 10}

func (p *AccountError) TopLevelID() TopLevelID { return accountErrorID }

func (p *AccountError) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteI16(w, p.ErrorCode)
	return w.Bytes(), nil
}

func unpackAccountError(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	code, err := wire.ReadI16(r)
	if err != nil {
		return nil, err
	}
	return &AccountError{ErrorCode: code}, nil
}

// KeepAlive is (26, 26), serverbound, empty body.
type KeepAlive struct{ Base }

var keepAliveID = TopLevelID{26, 26}

func (p *KeepAlive) TopLevelID() TopLevelID                  { return keepAliveID }
func (p *KeepAlive) PackBody(ctx *Ctx) ([]byte, error)        { return nil, nil }
func unpackKeepAlive(body []byte, ctx *Ctx) (TopLevelPacket, error) { return &KeepAlive{}, nil }

// Ping is (26, 25), clientbound. MainServer distinguishes which connection
// this ping was sent down (and so which connection the Pong echoing Payload
// belongs on); also driven by server tooling probing a satellite's liveness.
type Ping struct {
	Base
	MainServer bool
	Payload    string
}

var pingID = TopLevelID{26, 25}

func (p *Ping) TopLevelID() TopLevelID { return pingID }

func (p *Ping) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteBool(w, p.MainServer)
	writeStringField(w, p.Payload)
	return w.Bytes(), nil
}

func unpackPing(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	mainServer, err := wire.ReadBool(r)
	if err != nil {
		return nil, err
	}
	payload, err := readStringField(r)
	if err != nil {
		return nil, err
	}
	return &Ping{MainServer: mainServer, Payload: payload}, nil
}

// Pong is (26, 25), serverbound: the client's reply to a Ping, echoing the
// same Payload on the connection the Ping named via MainServer.
type Pong struct {
	Base
	Payload string
}

var pongID = TopLevelID{26, 25}

func (p *Pong) TopLevelID() TopLevelID { return pongID }

func (p *Pong) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.Payload)
	return w.Bytes(), nil
}

func unpackPong(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	payload, err := readStringField(r)
	if err != nil {
		return nil, err
	}
	return &Pong{Payload: payload}, nil
}

// SatelliteDelayedIdentification is (44, 1), serverbound: sent to the
// satellite server immediately after switching to it.
type SatelliteDelayedIdentification struct {
	Base
	Timestamp int32
	GlobalID  int32
	AuthID    int32
}

var satelliteDelayedIdentificationID = TopLevelID{44, 1}

func (p *SatelliteDelayedIdentification) TopLevelID() TopLevelID {
	return satelliteDelayedIdentificationID
}

func (p *SatelliteDelayedIdentification) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteI32(w, p.Timestamp)
	wire.WriteI32(w, p.GlobalID)
	wire.WriteI32(w, p.AuthID)
	return w.Bytes(), nil
}

func unpackSatelliteDelayedIdentification(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &SatelliteDelayedIdentification{}
	var err error
	if p.Timestamp, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.GlobalID, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.AuthID, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	return p, nil
}

// Ports is the "-"-joined port list ChangeSatelliteServer carries.
type Ports []int

func parsePorts(s string) (Ports, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	ports := make(Ports, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed port list %q", ErrSchema, s)
		}
		ports[i] = n
	}
	return ports, nil
}

func (p Ports) String() string {
	parts := make([]string, len(p))
	for i, port := range p {
		parts[i] = strconv.Itoa(port)
	}
	return strings.Join(parts, "-")
}

// ChangeSatelliteServer is (44, 1), clientbound: tells the client to
// reconnect to a different satellite server.
type ChangeSatelliteServer struct {
	Base
	Timestamp int32
	GlobalID  int32
	AuthID    int32
	Address   string
	Ports     Ports
}

var changeSatelliteServerID = TopLevelID{44, 1}

func (p *ChangeSatelliteServer) TopLevelID() TopLevelID { return changeSatelliteServerID }

// ShouldIgnore mirrors the original client's should_ignore property: an
// address of "x" means this packet carries no real redirection.
func (p *ChangeSatelliteServer) ShouldIgnore() bool { return p.Address == "x" }

func (p *ChangeSatelliteServer) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteI32(w, p.Timestamp)
	wire.WriteI32(w, p.GlobalID)
	wire.WriteI32(w, p.AuthID)
	writeStringField(w, p.Address)
	writeStringField(w, p.Ports.String())
	return w.Bytes(), nil
}

func unpackChangeSatelliteServer(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &ChangeSatelliteServer{}
	var err error
	if p.Timestamp, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.GlobalID, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.AuthID, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.Address, err = readStringField(r); err != nil {
		return nil, err
	}
	portsStr, err := readStringField(r)
	if err != nil {
		return nil, err
	}
	if p.Ports, err = parsePorts(portsStr); err != nil {
		return nil, err
	}
	return p, nil
}

// ReaffirmServerAddress is (28, 98), clientbound: asks the client to confirm
// the address it believes it's connected to.
type ReaffirmServerAddress struct {
	Base
	Address string
}

var reaffirmServerAddressID = TopLevelID{28, 98}

func (p *ReaffirmServerAddress) TopLevelID() TopLevelID { return reaffirmServerAddressID }

func (p *ReaffirmServerAddress) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.Address)
	return w.Bytes(), nil
}

func unpackReaffirmServerAddress(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	addr, err := readStringField(r)
	if err != nil {
		return nil, err
	}
	return &ReaffirmServerAddress{Address: addr}, nil
}

// SteamInfo is (26, 12), serverbound: reported when the client believes it
// is running under Steam.
type SteamInfo struct {
	Base
	UserID     string
	UnkString2 string
}

var steamInfoID = TopLevelID{26, 12}

func (p *SteamInfo) TopLevelID() TopLevelID { return steamInfoID }

func (p *SteamInfo) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.UserID)
	writeStringField(w, p.UnkString2)
	return w.Bytes(), nil
}

func unpackSteamInfo(body []byte, ctx *Ctx) (TopLevelPacket, error) {
	r := wire.NewReader(body)
	p := &SteamInfo{}
	var err error
	if p.UserID, err = readStringField(r); err != nil {
		return nil, err
	}
	if p.UnkString2, err = readStringField(r); err != nil {
		return nil, err
	}
	return p, nil
}

func init() {
	RegisterTopLevel(Serverbound, handshakeID, "Handshake", "", unpackHandshake)
	RegisterTopLevel(Clientbound, handshakeResponseID, "HandshakeResponse", "", unpackHandshakeResponse)
	RegisterTopLevel(Serverbound, systemInformationID, "SystemInformation", "", unpackSystemInformation)
	RegisterTopLevel(Clientbound, clientVerificationRequestID, "ClientVerificationRequest", "", unpackClientVerificationRequest)
	RegisterTopLevel(Serverbound, clientVerificationResponseID, "ClientVerificationResponse", "", unpackClientVerificationResponse)
	RegisterTopLevel(Serverbound, loginID, "Login", "identification", unpackLogin)
	RegisterTopLevel(Clientbound, loginSuccessID, "LoginSuccess", "", unpackLoginSuccess)
	RegisterTopLevel(Clientbound, accountErrorID, "AccountError", "", unpackAccountError)
	RegisterTopLevel(Serverbound, keepAliveID, "KeepAlive", "", unpackKeepAlive)
	RegisterTopLevel(Clientbound, pingID, "Ping", "", unpackPing)
	RegisterTopLevel(Serverbound, pongID, "Pong", "", unpackPong)
	RegisterTopLevel(Serverbound, satelliteDelayedIdentificationID, "SatelliteDelayedIdentification", "", unpackSatelliteDelayedIdentification)
	RegisterTopLevel(Clientbound, changeSatelliteServerID, "ChangeSatelliteServer", "", unpackChangeSatelliteServer)
	RegisterTopLevel(Clientbound, reaffirmServerAddressID, "ReaffirmServerAddress", "", unpackReaffirmServerAddress)
	RegisterTopLevel(Serverbound, steamInfoID, "SteamInfo", "", unpackSteamInfo)
}
