package proxy

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/hashicorp/yamux"

	"gotice/packet"
	"gotice/wire"
)

// SidecarListener accepts yamux control sessions from local tooling: each
// session may open any number of streams, each carrying exactly one
// extension packet (KeySources, MainServerInfo, or AuthKeyInfo, per
// packet/catalog_extension.go) framed the same way a clientbound top-level
// frame is (length-prefixed, no fingerprint). The proxy folds each received
// packet into its running UpstreamInfo and, once an address is known,
// unblocks any main connections waiting in Proxy.currentUpstream.
type SidecarListener struct {
	proxy *Proxy

	mu      sync.Mutex
	pending UpstreamInfo
}

// NewSidecarListener builds a sidecar that feeds p.
func NewSidecarListener(p *Proxy) *SidecarListener {
	return &SidecarListener{proxy: p}
}

// Serve accepts sessions on l until it errors.
func (sc *SidecarListener) Serve(l net.Listener) error {
	for {
		netConn, err := l.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := sc.handleSession(netConn); err != nil {
				log.Printf("proxy: sidecar session from %s: %v", netConn.RemoteAddr(), err)
			}
		}()
	}
}

func (sc *SidecarListener) handleSession(netConn net.Conn) error {
	session, err := yamux.Server(netConn, nil)
	if err != nil {
		return fmt.Errorf("proxy: sidecar yamux handshake: %w", err)
	}
	defer session.Close()

	for {
		stream, err := session.Accept()
		if err != nil {
			return err
		}
		go sc.handleStream(stream)
	}
}

func (sc *SidecarListener) handleStream(stream net.Conn) {
	defer stream.Close()

	r := bufio.NewReader(stream)
	payload, err := wire.ReadFrame(r, false)
	if err != nil {
		log.Printf("proxy: sidecar stream: reading frame: %v", err)
		return
	}

	wr := wire.NewReader(payload)
	header, err := packet.ReadExtensionHeader(wr)
	if err != nil {
		log.Printf("proxy: sidecar stream: reading header: %v", err)
		return
	}

	pkt, err := packet.UnpackExtension(packet.Serverbound, header.ID, wr.Remaining(), &packet.Ctx{})
	if err != nil {
		log.Printf("proxy: sidecar stream: unpacking %q: %v", header.ID, err)
		return
	}

	sc.apply(pkt)
}

func (sc *SidecarListener) apply(pkt packet.ExtensionPacket) {
	sc.mu.Lock()
	switch p := pkt.(type) {
	case *packet.MainServerInfo:
		sc.pending.Address = p.Address
		ports := make([]int, len(p.Ports))
		for i, port := range p.Ports {
			ports[i] = int(port)
		}
		sc.pending.Ports = ports
	case *packet.KeySources:
		sc.pending.PacketKeySources = p.Sources
	case *packet.AuthKeyInfo:
		sc.pending.AuthKey = p.AuthKey
	}
	info := sc.pending
	sc.mu.Unlock()

	if info.Address != "" {
		sc.proxy.SetUpstream(info)
	}
}
