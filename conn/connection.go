package conn

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"gotice/cipher"
	"gotice/packet"
	"gotice/wire"
)

type freezable interface {
	Freeze()
}

// Connection wraps a net.Conn with the length-prefixed, optionally ciphered,
// optionally fingerprinted top-level packet framing shared by every main and
// satellite socket, in both the client and server roles.
//
// WriteDirection names the family of packets this side sends: a client's
// Connection to a main server has WriteDirection Serverbound and reads
// Clientbound; a server's Connection to a connected client is the reverse.
type Connection struct {
	WriteDirection packet.Direction

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	ctx *packet.Ctx

	writeFingerprint uint8
	haveReadBefore   bool
	lastReadFingerprint uint8

	closed bool
}

// New wraps conn for packet framing. writeDirection is the direction of
// packets this side will send; the opposite direction is read.
func New(c net.Conn, writeDirection packet.Direction, ctx *packet.Ctx) *Connection {
	return &Connection{
		WriteDirection: writeDirection,
		conn:           c,
		reader:         bufio.NewReader(c),
		ctx:            ctx,
	}
}

// Secrets returns the connection's current session secrets.
func (c *Connection) Secrets() *cipher.Secrets {
	if c.ctx == nil {
		return nil
	}
	return c.ctx.Secrets
}

// SetSecrets wholesale-replaces the active secrets, e.g. once key sources or
// an auth token arrive.
func (c *Connection) SetSecrets(s *cipher.Secrets) {
	if c.ctx == nil {
		c.ctx = &packet.Ctx{}
	}
	c.ctx.Secrets = s
}

// SetWriteFingerprint initializes this connection's outgoing serverbound
// fingerprint counter, used by a proxy pairing an upstream connection to
// continue the fingerprint sequence a client already started rather than
// restarting it at 0.
func (c *Connection) SetWriteFingerprint(v uint8) {
	c.mu.Lock()
	c.writeFingerprint = v
	c.mu.Unlock()
}

// LastReadFingerprint returns the most recently validated serverbound
// fingerprint, used by a proxy to seed a paired connection's counter.
func (c *Connection) LastReadFingerprint() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReadFingerprint
}

func (c *Connection) readDirection() packet.Direction {
	if c.WriteDirection == packet.Serverbound {
		return packet.Clientbound
	}
	return packet.Serverbound
}

// Close closes the underlying connection. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// WritePacket freezes pkt, packs it, ciphers it if its schema declares a
// cipher, frames it with the fingerprint/length header appropriate to
// WriteDirection, and writes it to the wire.
func (c *Connection) WritePacket(pkt packet.TopLevelPacket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if f, ok := pkt.(freezable); ok {
		f.Freeze()
	}

	body, err := pkt.PackBody(c.ctx)
	if err != nil {
		return fmt.Errorf("conn: packing %T: %w", pkt, err)
	}

	id := pkt.TopLevelID()
	serverbound := c.WriteDirection == packet.Serverbound

	var fingerprint uint8
	if serverbound {
		fingerprint = c.writeFingerprint
	}

	if serverbound {
		if _, cipherName, _, ok := packet.LookupTopLevel(packet.Serverbound, id); ok && cipherName != "" {
			if !c.Secrets().HasKeySources() {
				return fmt.Errorf("conn: writing %T: no key material for cipher %q", pkt, cipherName)
			}
			body, err = encipherBody(cipherName, body, c.Secrets(), fingerprint)
			if err != nil {
				return fmt.Errorf("conn: ciphering %T: %w", pkt, err)
			}
		}
	}

	w := wire.NewWriter()
	if serverbound {
		packet.WriteServerboundHeader(w, packet.ServerboundHeader{Fingerprint: fingerprint, ID: id})
	} else {
		packet.WriteClientboundHeader(w, packet.ClientboundHeader{ID: id})
	}
	w.WriteBytes(body)

	if err := wire.WriteFrame(c.conn, w.Bytes(), serverbound); err != nil {
		return err
	}

	if serverbound {
		c.writeFingerprint = (c.writeFingerprint + 1) % 100
	}
	return nil
}

// ReadPacket reads and unpacks the next frame. For serverbound reads it also
// enforces the mod-100 fingerprint-ordering invariant and deciphers the body
// if the schema declares a cipher and key material is available.
func (c *Connection) ReadPacket() (packet.TopLevelPacket, error) {
	readDir := c.readDirection()
	serverbound := readDir == packet.Serverbound

	payload, err := wire.ReadFrame(c.reader, serverbound)
	if err != nil {
		return nil, err
	}

	r := wire.NewReader(payload)

	var id packet.TopLevelID
	var fingerprint uint8
	if serverbound {
		h, err := packet.ReadServerboundHeader(r)
		if err != nil {
			return nil, err
		}
		id = h.ID
		fingerprint = h.Fingerprint

		if c.haveReadBefore && fingerprint != (c.lastReadFingerprint+1)%100 {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrFingerprintOrder, fingerprint, (c.lastReadFingerprint+1)%100)
		}
		c.lastReadFingerprint = fingerprint
		c.haveReadBefore = true
	} else {
		h, err := packet.ReadClientboundHeader(r)
		if err != nil {
			return nil, err
		}
		id = h.ID
	}

	body := r.Remaining()

	keyAvailable := c.Secrets().HasKeySources()
	if serverbound {
		if _, cipherName, _, ok := packet.LookupTopLevel(packet.Serverbound, id); ok && cipherName != "" && keyAvailable {
			var err error
			body, err = decipherBody(cipherName, body, c.Secrets(), fingerprint)
			if err != nil {
				return nil, fmt.Errorf("conn: deciphering %v: %w", id, err)
			}
		}
	}

	pkt, err := packet.UnpackTopLevel(readDir, id, body, c.ctx, keyAvailable)
	if err != nil {
		return nil, err
	}
	if f, ok := pkt.(freezable); ok {
		f.Freeze()
	}
	return pkt, nil
}

func encipherBody(cipherName string, body []byte, secrets *cipher.Secrets, fingerprint uint8) ([]byte, error) {
	key := secrets.Key(cipherName)
	switch cipherName {
	case cipher.NameIdentification:
		return cipher.XXTEAPack(body, key), nil
	case cipher.NameXOR:
		return cipher.XOR(body, key, fingerprint), nil
	default:
		return nil, fmt.Errorf("conn: unknown cipher %q", cipherName)
	}
}

func decipherBody(cipherName string, body []byte, secrets *cipher.Secrets, fingerprint uint8) ([]byte, error) {
	key := secrets.Key(cipherName)
	switch cipherName {
	case cipher.NameIdentification:
		return cipher.XXTEAUnpack(body, key)
	case cipher.NameXOR:
		return cipher.XOR(body, key, fingerprint), nil
	default:
		return nil, fmt.Errorf("conn: unknown cipher %q", cipherName)
	}
}
