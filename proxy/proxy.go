// Package proxy implements the two-listener proxy core described in
// spec.md §4.H: a main listener and a satellite listener sit in front of a
// real upstream server pair, correcting fingerprints and addresses in
// flight and re-pairing satellite connections by auth_id.
package proxy

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"sync"

	"gotice/cipher"
	"gotice/conn"
	"gotice/dispatch"
	"gotice/packet"
)

// UpstreamInfo is what a sidecar (or static Config) supplies about the real
// server this proxy fronts.
type UpstreamInfo struct {
	Address          string
	Ports            []int
	PacketKeySources []byte
	AuthKey          uint32
}

// DefaultMainPorts are the standard ports a main server listens on.
var DefaultMainPorts = []int{11801, 12801, 13801, 14801}

// ErrUpstreamUnavailable is returned when a main connection's context is
// done while it is still waiting for SetUpstream to supply an upstream.
var ErrUpstreamUnavailable = fmt.Errorf("proxy: upstream not yet configured")

// SocketPolicyResponse is the fixed Flash socket-policy-file response
// ServeSocketPolicy sends to every connection.
const SocketPolicyResponse = `<?xml version="1.0"?><cross-domain-policy><allow-access-from domain="*" to-ports="*"/></cross-domain-policy>` + "\x00"

// Config configures a Proxy.
type Config struct {
	// ExpectedAddress is what the proxy tells clients the server's address
	// is, laundering the real upstream address out of ReaffirmServerAddress.
	ExpectedAddress string

	// SatelliteAddress/SatellitePorts are where the proxy's own satellite
	// listener can be reached; ChangeSatelliteServer is rewritten to point
	// here instead of the real upstream satellite address.
	SatelliteAddress string
	SatellitePorts   []int

	// Static, if non-nil, is used as the upstream immediately; otherwise the
	// proxy blocks new main connections until SetUpstream is called (e.g.
	// by a SidecarListener).
	Static *UpstreamInfo

	GameVersion int16

	Registry *dispatch.Registry
}

// Proxy fronts a real Transformice-protocol server pair.
type Proxy struct {
	cfg Config

	mu            sync.RWMutex
	upstream      *UpstreamInfo
	upstreamReady chan struct{}
	readyOnce     sync.Once

	pendingMu        sync.Mutex
	pendingSatellite map[uint32]pendingEntry
}

// New builds a Proxy from cfg.
func New(cfg Config) *Proxy {
	if cfg.Registry == nil {
		cfg.Registry = dispatch.NewRegistry()
	}
	p := &Proxy{
		cfg:              cfg,
		upstreamReady:    make(chan struct{}),
		pendingSatellite: make(map[uint32]pendingEntry),
	}
	if cfg.Static != nil {
		p.upstream = cfg.Static
		close(p.upstreamReady)
	}
	return p
}

// SetUpstream installs the upstream a sidecar has supplied and unblocks any
// main connections waiting on it. Safe to call more than once; later calls
// update the stored info for connections accepted afterward.
func (p *Proxy) SetUpstream(info UpstreamInfo) {
	p.mu.Lock()
	p.upstream = &info
	p.mu.Unlock()
	p.readyOnce.Do(func() { close(p.upstreamReady) })
}

func (p *Proxy) currentUpstream(ctx context.Context) (*UpstreamInfo, error) {
	p.mu.RLock()
	u := p.upstream
	p.mu.RUnlock()
	if u != nil {
		return u, nil
	}
	select {
	case <-p.upstreamReady:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.upstream, nil
}

// ServeMain accepts main-client connections on l until it errors.
func (p *Proxy) ServeMain(l net.Listener) error {
	for {
		netConn, err := l.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := p.handleMain(netConn); err != nil {
				log.Printf("proxy: main connection from %s: %v", netConn.RemoteAddr(), err)
			}
		}()
	}
}

// ServeSocketPolicy answers every accepted connection with the fixed
// Flash socket-policy response and closes, per spec.md §4.H's third
// optional listener.
func ServeSocketPolicy(l net.Listener) error {
	for {
		netConn, err := l.Accept()
		if err != nil {
			return err
		}
		go func() {
			defer netConn.Close()
			_, _ = netConn.Write([]byte(SocketPolicyResponse))
		}()
	}
}

func dialShuffled(ctx context.Context, address string, ports []int) (net.Conn, error) {
	shuffled := append([]int(nil), ports...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var lastErr error
	var d net.Dialer
	for _, port := range shuffled {
		c, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", address, port))
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("proxy: unable to connect to %s on ports %v: %w", address, ports, lastErr)
}

func (p *Proxy) handleMain(clientConn net.Conn) error {
	ctx := context.Background()
	upstream, err := p.currentUpstream(ctx)
	if err != nil {
		clientConn.Close()
		return err
	}

	secrets := &cipher.Secrets{
		PacketKeySources: upstream.PacketKeySources,
		AuthKey:          upstream.AuthKey,
		GameVersion:      int32(p.cfg.GameVersion),
	}

	upConn, err := dialShuffled(ctx, upstream.Address, upstream.Ports)
	if err != nil {
		clientConn.Close()
		return err
	}

	down := conn.New(clientConn, packet.Clientbound, &packet.Ctx{Secrets: secrets})
	up := conn.New(upConn, packet.Serverbound, &packet.Ctx{Secrets: secrets})
	defer down.Close()
	defer up.Close()

	errs := make(chan error, 2)
	go func() { errs <- p.spliceServerbound(ctx, down, up) }()
	go func() { errs <- p.spliceClientbound(ctx, down, up) }()
	return <-errs
}

// spliceServerbound relays client -> proxy -> upstream, correcting the
// fingerprint and game_version on the first Handshake per spec.md §4.H.
func (p *Proxy) spliceServerbound(ctx context.Context, down, up *conn.Connection) error {
	correctedHandshake := false
	for {
		pkt, err := down.ReadPacket()
		if err != nil {
			return err
		}

		if hs, ok := pkt.(*packet.Handshake); ok && !correctedHandshake {
			up.SetWriteFingerprint(down.LastReadFingerprint())
			hs.LoaderStageSize = packet.ExpectedLoaderStageSize

			updated := down.Secrets().Clone()
			updated.GameVersion = int32(hs.GameVersion)
			down.SetSecrets(updated)
			up.SetSecrets(updated)

			correctedHandshake = true
		}

		if _, ok := pkt.(*packet.ExtensionWrapper); ok {
			// Local-tooling-only; never forwarded upstream.
			continue
		}

		action, out, err := p.cfg.Registry.Dispatch(ctx, down, packet.Serverbound, pkt, dispatch.Sequential)
		if err != nil {
			return err
		}
		if action == dispatch.DoNothing {
			continue
		}
		if err := up.WritePacket(out); err != nil {
			return err
		}
	}
}

// spliceClientbound relays upstream -> proxy -> client, laundering the
// reaffirmed address and intercepting satellite redirection.
func (p *Proxy) spliceClientbound(ctx context.Context, down, up *conn.Connection) error {
	for {
		pkt, err := up.ReadPacket()
		if err != nil {
			return err
		}

		switch v := pkt.(type) {
		case *packet.ReaffirmServerAddress:
			if p.cfg.ExpectedAddress != "" {
				v.Address = p.cfg.ExpectedAddress
			}
		case *packet.ChangeSatelliteServer:
			if !v.ShouldIgnore() {
				p.registerPending(pendingEntry{
					AuthID:          v.AuthID,
					OriginalAddress: v.Address,
					OriginalPorts:   []int(v.Ports),
					Timestamp:       v.Timestamp,
					GlobalID:        v.GlobalID,
					ClientSecrets:   up.Secrets().Clone(),
				})
				v.Address = p.cfg.SatelliteAddress
				v.Ports = packet.Ports(p.cfg.SatellitePorts)
			}
		}

		if _, ok := pkt.(*packet.ExtensionWrapper); ok {
			continue
		}

		action, out, err := p.cfg.Registry.Dispatch(ctx, up, packet.Clientbound, pkt, dispatch.Parallel)
		if err != nil {
			return err
		}
		if action == dispatch.DoNothing {
			continue
		}
		if err := down.WritePacket(out); err != nil {
			return err
		}
	}
}
