package wire

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// ErrStringTooLong guards against a hostile length prefix driving an
// unbounded allocation, mirroring the teacher's protocol.go ReadString guard.
var ErrStringTooLong = errors.New("wire: string too long")

const maxStringLen = 1 << 20

// ReadString reads a u16-length-prefixed UTF-8 string.
func ReadString(r *Reader) (string, error) {
	n, err := ReadU16(r)
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteString packs a u16-length-prefixed UTF-8 string.
func WriteString(w *Writer, s string) {
	WriteU16(w, uint16(len(s)))
	w.WriteBytes([]byte(s))
}

// ReadSignedLengthString reads an i16-length-prefixed string. A negative
// length is the tribulle "null" convention; ok reports whether a value was
// actually present.
func ReadSignedLengthString(r *Reader) (value string, ok bool, err error) {
	n, err := ReadI16(r)
	if err != nil {
		return "", false, err
	}
	if n < 0 {
		return "", false, nil
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// WriteSignedLengthString packs an i16-length-prefixed string, or the -1
// null sentinel when ok is false.
func WriteSignedLengthString(w *Writer, s string, ok bool) {
	if !ok {
		WriteI16(w, -1)
		return
	}
	WriteI16(w, int16(len(s)))
	w.WriteBytes([]byte(s))
}

// ReadLargeString reads a u24-length-prefixed UTF-8 string.
func ReadLargeString(r *Reader) (string, error) {
	n, err := ReadU24(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", ErrStringTooLong
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteLargeString packs a u24-length-prefixed UTF-8 string.
func WriteLargeString(w *Writer, s string) {
	WriteU24(w, uint32(len(s)))
	w.WriteBytes([]byte(s))
}

// ReadCompressedString reads an i32-length-prefixed zlib-compressed UTF-8
// string. A zero-length prefix denotes the empty string without a zlib
// stream following it.
func ReadCompressedString(r *Reader) (string, error) {
	n, err := ReadI32(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if n < 0 || int(n) > maxStringLen {
		return "", ErrStringTooLong
	}
	compressed, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("wire: compressed string: %w", err)
	}
	defer zr.Close()
	decompressed, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("wire: compressed string: %w", err)
	}
	return string(decompressed), nil
}

// WriteCompressedString zlib-compresses s and packs it with an i32 length
// prefix, or writes a bare zero prefix for the empty string.
func WriteCompressedString(w *Writer, s string) error {
	if s == "" {
		WriteI32(w, 0)
		return nil
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		return fmt.Errorf("wire: compressed string: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("wire: compressed string: %w", err)
	}

	WriteI32(w, int32(buf.Len()))
	w.WriteBytes(buf.Bytes())
	return nil
}

// ShiftedStringShift computes how much ShiftedString should shift each byte
// for the given game version, honoring the bot-role degrade-to-plain rule.
func ShiftedStringShift(gameVersion int32, botRole bool) int {
	if botRole {
		return 0
	}
	return int(((gameVersion % 5) + 5) % 5)
}

// ReadShiftedString reads a String whose bytes have been shifted by
// ShiftedStringShift before framing; pass shift=0 (as returned for bot-role
// or unknown-version contexts) to behave exactly like ReadString.
func ReadShiftedString(r *Reader, shift int) (string, error) {
	n, err := ReadU16(r)
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if shift == 0 {
		return string(b), nil
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c - byte(shift)
	}
	return string(out), nil
}

// WriteShiftedString packs s with each byte shifted by shift before framing.
func WriteShiftedString(w *Writer, s string, shift int) {
	if shift == 0 {
		WriteString(w, s)
		return
	}
	raw := []byte(s)
	shifted := make([]byte, len(raw))
	for i, c := range raw {
		shifted[i] = c + byte(shift)
	}
	WriteU16(w, uint16(len(shifted)))
	w.WriteBytes(shifted)
}
