// Package client implements the client-side connection state machine
// described in spec.md §4.F: open a main connection, handshake, verify,
// log in, then track an independent satellite connection.
package client

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"gotice/cipher"
	"gotice/conn"
	"gotice/dispatch"
	"gotice/packet"
)

// State is a position in the client's connection lifecycle.
type State int

const (
	Disconnected State = iota
	MainOpening
	HandshakeSent
	AwaitingVerification
	LoggingIn
	Active
	SatellitePairing
	ActiveWithSatellite
)

// ErrAccount reports a clientbound AccountError, surfaced as a fatal
// condition per spec.md §4.F step 8.
type ErrAccount struct {
	Code int16
}

func (e ErrAccount) Error() string {
	return fmt.Sprintf("client: account error %d", e.Code)
}

// Identity is the fixed handshake identity a Client presents, mirroring the
// constants a real client hardcodes (player type, browser info, and so on).
type Identity struct {
	PlayerType               string
	BrowserInfo              string
	LoaderStageSize          int32
	ConcatenatedFontNameHash string
	ServerString             string
	MillisecondsSinceStart   int32
	LoaderURL                string
}

// DefaultIdentity matches the values a stock client presents.
var DefaultIdentity = Identity{
	PlayerType:               "Flash Player",
	BrowserInfo:              "-",
	LoaderStageSize:          packet.ExpectedLoaderStageSize,
	ConcatenatedFontNameHash: "5610fd5713a0ed29fb13b576d2e0e4692dd99ddbbcd7b5c0a32b7271c91083e0",
	ServerString:             "A=t&SA=t&SV=t&EV=t&MP3=t&AE=t&VE=t&ACC=t&PR=t&L=en",
	MillisecondsSinceStart:   3128,
	LoaderURL:                "app:/Transformice.swf/[[DYNAMIC]]/1",
}

// Config configures a Client.
type Config struct {
	Secrets  *cipher.Secrets
	Identity Identity
	Language string

	Username     string // empty: sit at the login screen, per spec.md §4.F step 4
	PasswordHash string
	StartRoom    string

	SteamTicket []byte

	Registry *dispatch.Registry
}

// Client drives one player's connection lifecycle.
type Client struct {
	cfg Config

	mu        sync.Mutex
	state     State
	authToken int32
	sessionID int32

	main      *conn.Connection
	satellite *conn.Connection

	dialer func(ctx context.Context, network, address string) (net.Conn, error)
}

// New builds a Client in the Disconnected state.
func New(cfg Config) *Client {
	if cfg.Registry == nil {
		cfg.Registry = dispatch.NewRegistry()
	}
	return &Client{
		cfg:    cfg,
		state:  Disconnected,
		dialer: (&net.Dialer{}).DialContext,
	}
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SetSteamTicket attaches a Steam authentication ticket that will be sent
// (via SteamInfo) right after the handshake response, mirroring the
// original client's optional post-handshake Steam packet.
func (c *Client) SetSteamTicket(ticket []byte) {
	c.mu.Lock()
	c.cfg.SteamTicket = append([]byte(nil), ticket...)
	c.mu.Unlock()
}

// Run opens the main connection, drives the handshake/login sequence, then
// services incoming packets until ctx is canceled or the main connection
// closes.
func (c *Client) Run(ctx context.Context) error {
	if err := c.openMain(ctx); err != nil {
		return err
	}
	defer c.main.Close()

	keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
	defer cancelKeepAlive()
	go c.keepAliveLoop(keepAliveCtx)

	return c.listen(ctx, c.main)
}

// openMain implements transition 1: dial one of the configured ports in
// random order, falling back to the next on failure.
func (c *Client) openMain(ctx context.Context) error {
	c.setState(MainOpening)

	ports := append([]int(nil), c.cfg.Secrets.ServerPorts...)
	rand.Shuffle(len(ports), func(i, j int) { ports[i], ports[j] = ports[j], ports[i] })

	var lastErr error
	for _, port := range ports {
		addr := fmt.Sprintf("%s:%d", c.cfg.Secrets.ServerAddress, port)
		netConn, err := c.dialer(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}

		ctx := &packet.Ctx{Secrets: c.cfg.Secrets}
		c.mu.Lock()
		c.main = conn.New(netConn, packet.Serverbound, ctx)
		c.satellite = c.main
		c.mu.Unlock()

		return c.sendHandshake()
	}
	return fmt.Errorf("client: unable to connect to %s on ports %v: %w", c.cfg.Secrets.ServerAddress, c.cfg.Secrets.ServerPorts, lastErr)
}

// sendHandshake implements transition 2.
func (c *Client) sendHandshake() error {
	c.setState(HandshakeSent)

	id := c.cfg.Identity
	botRole := c.cfg.Secrets.IsBotRole()

	h := &packet.Handshake{
		GameVersion:              int16(c.cfg.Secrets.GameVersion),
		Language:                 c.cfg.Language,
		ConnectionToken:          c.cfg.Secrets.ConnectionToken,
		PlayerType:               id.PlayerType,
		BrowserInfo:              id.BrowserInfo,
		LoaderStageSize:          id.LoaderStageSize,
		ConcatenatedFontNameHash: id.ConcatenatedFontNameHash,
		ServerString:             id.ServerString,
		MillisecondsSinceStart:   id.MillisecondsSinceStart,
	}
	if botRole {
		h.ConcatenatedFontNameHash = ""
		h.ServerString = ""
	}
	return c.main.WritePacket(h)
}

// keepAliveLoop implements the 15-second keep-alive background task.
func (c *Client) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			main, satellite := c.main, c.satellite
			c.mu.Unlock()

			if main != nil {
				_ = main.WritePacket(&packet.KeepAlive{})
			}
			if satellite != nil && satellite != main {
				_ = satellite.WritePacket(&packet.KeepAlive{})
			}
		}
	}
}

// listen reads and handles packets on one connection until it errors out or
// ctx is canceled.
func (c *Client) listen(ctx context.Context, cn *conn.Connection) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := cn.ReadPacket()
		if err != nil {
			return err
		}

		if err := c.handlePacket(ctx, cn, pkt); err != nil {
			return err
		}

		mode := dispatch.Sequential
		if c.State() >= Active {
			mode = dispatch.Parallel
		}
		if _, _, err := c.cfg.Registry.Dispatch(ctx, cn, packet.Clientbound, pkt, mode); err != nil {
			return err
		}
	}
}

func (c *Client) handlePacket(ctx context.Context, cn *conn.Connection, pkt packet.TopLevelPacket) error {
	switch p := pkt.(type) {
	case *packet.HandshakeResponse:
		return c.onHandshakeResponse(p)
	case *packet.ClientVerificationRequest:
		return c.onClientVerification(p)
	case *packet.LoginSuccess:
		c.sessionID = p.SessionID
		c.setState(Active)
		return nil
	case *packet.ChangeSatelliteServer:
		return c.onChangeSatelliteServer(ctx, p)
	case *packet.AccountError:
		return ErrAccount{Code: p.ErrorCode}
	case *packet.Ping:
		return c.onPing(p)
	}
	return nil
}

// onPing implements transition 7: reply with a Pong carrying the same
// payload on whichever connection the Ping named.
func (c *Client) onPing(p *packet.Ping) error {
	c.mu.Lock()
	main, satellite := c.main, c.satellite
	c.mu.Unlock()

	target := satellite
	if p.MainServer {
		target = main
	}
	if target == nil {
		return nil
	}
	return target.WritePacket(&packet.Pong{Payload: p.Payload})
}

// onHandshakeResponse implements transition 3.
func (c *Client) onHandshakeResponse(p *packet.HandshakeResponse) error {
	c.mu.Lock()
	c.authToken = p.AuthToken
	c.mu.Unlock()

	if err := c.main.WritePacket(&packet.SystemInformation{
		Language:     c.cfg.Language,
		OS:           "Windows 10",
		FlashVersion: "WIN 32,0,0,445",
	}); err != nil {
		return err
	}

	if len(c.cfg.SteamTicket) > 0 {
		if err := c.main.WritePacket(&packet.SteamInfo{UserID: string(c.cfg.SteamTicket)}); err != nil {
			return err
		}
	}
	return nil
}

// onClientVerification implements transition 4.
func (c *Client) onClientVerification(p *packet.ClientVerificationRequest) error {
	c.setState(AwaitingVerification)

	if len(c.cfg.Secrets.ClientVerificationTemplate) > 0 {
		response := cipher.ClientVerificationResponse(
			c.cfg.Secrets.ClientVerificationTemplate,
			uint32(p.VerificationToken),
			c.cfg.Secrets.PacketKeySources,
		)
		if err := c.main.WritePacket(&packet.ClientVerificationResponse{CipheredData: response}); err != nil {
			return err
		}
	}

	if c.cfg.Username == "" {
		return nil
	}

	c.setState(LoggingIn)
	return c.main.WritePacket(&packet.Login{
		Username:          c.cfg.Username,
		PasswordHash:      c.cfg.PasswordHash,
		StartRoom:         c.cfg.StartRoom,
		CipheredAuthToken: c.authToken ^ int32(c.cfg.Secrets.AuthKey),
		UnkShort6:         18,
		LoaderURL:         c.cfg.Identity.LoaderURL,
	})
}

// onChangeSatelliteServer implements transition 6.
func (c *Client) onChangeSatelliteServer(ctx context.Context, p *packet.ChangeSatelliteServer) error {
	if p.ShouldIgnore() {
		return nil
	}
	c.setState(SatellitePairing)

	c.mu.Lock()
	oldSatellite := c.satellite
	main := c.main
	c.mu.Unlock()

	if oldSatellite != main {
		oldSatellite.Close()
	}

	netConn, err := c.dialSatellite(ctx, p)
	if err != nil {
		return err
	}

	satCtx := &packet.Ctx{Secrets: c.cfg.Secrets}
	satellite := conn.New(netConn, packet.Serverbound, satCtx)

	c.mu.Lock()
	c.satellite = satellite
	c.mu.Unlock()

	if err := satellite.WritePacket(&packet.SatelliteDelayedIdentification{
		Timestamp: p.Timestamp,
		GlobalID:  p.GlobalID,
		AuthID:    p.AuthID,
	}); err != nil {
		return err
	}

	c.setState(ActiveWithSatellite)
	go func() {
		if err := c.listen(ctx, satellite); err != nil {
			return
		}
	}()
	return nil
}

func (c *Client) dialSatellite(ctx context.Context, p *packet.ChangeSatelliteServer) (net.Conn, error) {
	ports := append([]int(nil), []int(p.Ports)...)
	rand.Shuffle(len(ports), func(i, j int) { ports[i], ports[j] = ports[j], ports[i] })

	var lastErr error
	for _, port := range ports {
		addr := fmt.Sprintf("%s:%d", p.Address, port)
		netConn, err := c.dialer(ctx, "tcp", addr)
		if err == nil {
			return netConn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("client: unable to connect to satellite %s on ports %v: %w", p.Address, p.Ports, lastErr)
}
