package proxy

import (
	"context"
	"fmt"
	"log"
	"net"

	"gotice/cipher"
	"gotice/conn"
	"gotice/dispatch"
	"gotice/packet"
)

// pendingEntry records one intercepted ChangeSatelliteServer redirect,
// keyed by auth_id, until the matching satellite connection shows up.
type pendingEntry struct {
	AuthID          int32
	OriginalAddress string
	OriginalPorts   []int
	Timestamp       int32
	GlobalID        int32
	ClientSecrets   *cipher.Secrets
}

func (p *Proxy) registerPending(e pendingEntry) {
	p.pendingMu.Lock()
	p.pendingSatellite[uint32(e.AuthID)] = e
	p.pendingMu.Unlock()
}

func (p *Proxy) takePending(authID int32) (pendingEntry, bool) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	e, ok := p.pendingSatellite[uint32(authID)]
	if ok {
		delete(p.pendingSatellite, uint32(authID))
	}
	return e, ok
}

// ServeSatellite accepts satellite-client connections on l until it errors.
func (p *Proxy) ServeSatellite(l net.Listener) error {
	for {
		netConn, err := l.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := p.handleSatellite(netConn); err != nil {
				log.Printf("proxy: satellite connection from %s: %v", netConn.RemoteAddr(), err)
			}
		}()
	}
}

func (p *Proxy) handleSatellite(clientConn net.Conn) error {
	ctx := context.Background()

	down := conn.New(clientConn, packet.Clientbound, &packet.Ctx{Secrets: &cipher.Secrets{}})
	defer down.Close()

	first, err := down.ReadPacket()
	if err != nil {
		return err
	}
	ident, ok := first.(*packet.SatelliteDelayedIdentification)
	if !ok {
		return fmt.Errorf("proxy: first satellite packet must be SatelliteDelayedIdentification, got %T", first)
	}

	entry, ok := p.takePending(ident.AuthID)
	if !ok {
		return fmt.Errorf("proxy: satellite identification for unknown auth_id %d", ident.AuthID)
	}

	down.SetSecrets(entry.ClientSecrets)

	upConn, err := dialShuffled(ctx, entry.OriginalAddress, entry.OriginalPorts)
	if err != nil {
		return err
	}
	up := conn.New(upConn, packet.Serverbound, &packet.Ctx{Secrets: entry.ClientSecrets})
	defer up.Close()

	up.SetWriteFingerprint(down.LastReadFingerprint())
	if err := up.WritePacket(ident); err != nil {
		return err
	}

	errs := make(chan error, 2)
	go func() { errs <- p.spliceServerbound(ctx, down, up) }()
	go func() { errs <- p.spliceSatelliteClientbound(ctx, down, up) }()
	return <-errs
}

// spliceSatelliteClientbound relays upstream-satellite -> proxy -> client;
// satellite traffic carries no ReaffirmServerAddress/ChangeSatelliteServer
// of its own, so this is a plain forward with dispatch applied.
func (p *Proxy) spliceSatelliteClientbound(ctx context.Context, down, up *conn.Connection) error {
	for {
		pkt, err := up.ReadPacket()
		if err != nil {
			return err
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
