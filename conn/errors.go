// Package conn implements the framed, ciphered connection that reads and
// writes packet.TopLevelPacket values over a net.Conn, per spec.md §4.D.
package conn

import "fmt"

// ErrFingerprintOrder is returned by ReadPacket when an incoming serverbound
// frame's fingerprint does not continue the previous one mod 100, per
// spec.md §3 invariant 1.
var ErrFingerprintOrder = fmt.Errorf("conn: fingerprint out of order")

// ErrClosed is returned by WritePacket once Close has been called.
var ErrClosed = fmt.Errorf("conn: connection closed")
