package wire

import (
	"bufio"
	"fmt"
	"io"
)

// ErrFraming covers malformed frames: an oversized var-int length, or a short
// read inside a declared length.
var ErrFraming = fmt.Errorf("wire: framing error")

// ReadFrame reads one length-prefixed frame from r. For serverbound frames
// the length prefix excludes the one-byte fingerprint that immediately
// follows it on the wire, so the caller gets it back as part of payload:
// the returned slice is length+1 bytes long when serverbound is true.
func ReadFrame(r *bufio.Reader, serverbound bool) ([]byte, error) {
	length, err := ReadVarUint(r)
	if err != nil {
		if err == ErrVarNumTooLong {
			return nil, fmt.Errorf("%w: %v", ErrFraming, err)
		}
		return nil, err
	}

	n := int(length)
	if serverbound {
		n++
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: short frame: %v", ErrFraming, err)
	}
	return payload, nil
}

// WriteFrame frames payload with its unsigned LEB128 length prefix. For
// serverbound frames the prefix is payload's length minus one, since the
// leading fingerprint byte in payload is not counted.
func WriteFrame(w io.Writer, payload []byte, serverbound bool) error {
	length := len(payload)
	if serverbound {
		length--
	}
	if length < 0 {
		return fmt.Errorf("%w: negative serverbound frame length", ErrFraming)
	}

	lw := NewWriter()
	WriteVarUint(lw, uint32(length))

	if _, err := w.Write(lw.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
