package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestNumericRoundTrip(t *testing.T) {
	w := NewWriter()
	WriteBool(w, true)
	WriteI8(w, -5)
	WriteU8(w, 250)
	WriteI16(w, -1000)
	WriteU16(w, 60000)
	WriteU24(w, 0xABCDEF)
	WriteI32(w, -70000)
	WriteU32(w, 0xDEADBEEF)
	WriteF32(w, 3.5)
	WriteF64(w, 2.71828)

	r := NewReader(w.Bytes())

	if b, err := ReadBool(r); err != nil || b != true {
		t.Fatalf("Bool: %v %v", b, err)
	}
	if v, err := ReadI8(r); err != nil || v != -5 {
		t.Fatalf("I8: %v %v", v, err)
	}
	if v, err := ReadU8(r); err != nil || v != 250 {
		t.Fatalf("U8: %v %v", v, err)
	}
	if v, err := ReadI16(r); err != nil || v != -1000 {
		t.Fatalf("I16: %v %v", v, err)
	}
	if v, err := ReadU16(r); err != nil || v != 60000 {
		t.Fatalf("U16: %v %v", v, err)
	}
	if v, err := ReadU24(r); err != nil || v != 0xABCDEF {
		t.Fatalf("U24: %v %v", v, err)
	}
	if v, err := ReadI32(r); err != nil || v != -70000 {
		t.Fatalf("I32: %v %v", v, err)
	}
	if v, err := ReadU32(r); err != nil || v != 0xDEADBEEF {
		t.Fatalf("U32: %v %v", v, err)
	}
	if v, err := ReadF32(r); err != nil || v != 3.5 {
		t.Fatalf("F32: %v %v", v, err)
	}
	if v, err := ReadF64(r); err != nil || v != 2.71828 {
		t.Fatalf("F64: %v %v", v, err)
	}
}

func TestVarUintEdgeCases(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint32
		err  bool
	}{
		{"max-31-bit", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x07}, 0x7FFFFFFF, false},
		{"all-ones", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, 0xFFFFFFFF, false},
		{"too-long", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, 0, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ReadVarUint(bufio.NewReader(bytes.NewReader(c.in)))
			if c.err {
				if err != ErrVarNumTooLong {
					t.Fatalf("expected ErrVarNumTooLong, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %#x, want %#x", got, c.want)
			}
		})
	}
}

func TestVarIntSignedInterpretation(t *testing.T) {
	// 0xFFFFFFFF interpreted as signed is -1.
	u, err := ReadVarUint(bufio.NewReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F})))
	if err != nil {
		t.Fatal(err)
	}
	if int32(u) != -1 {
		t.Fatalf("want -1, got %d", int32(u))
	}
}

func TestVarUintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 16384, 0x7FFFFFFF, 0xFFFFFFFF}
	for _, v := range values {
		w := NewWriter()
		WriteVarUint(w, v)
		got, err := ReadVarUint(bufio.NewReader(bytes.NewReader(w.Bytes())))
		if err != nil {
			t.Fatalf("v=%d: %v", v, err)
		}
		if got != v {
			t.Fatalf("v=%d: got %d", v, got)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	w := NewWriter()
	WriteString(w, "hello, world")
	r := NewReader(w.Bytes())
	got, err := ReadString(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello, world" {
		t.Fatalf("got %q", got)
	}
}

func TestSignedLengthStringNull(t *testing.T) {
	w := NewWriter()
	WriteSignedLengthString(w, "", false)
	r := NewReader(w.Bytes())
	_, ok, err := ReadSignedLengthString(r)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected null (ok=false)")
	}
}

func TestCompressedStringRoundTrip(t *testing.T) {
	w := NewWriter()
	if err := WriteCompressedString(w, "the quick brown fox jumps over the lazy dog"); err != nil {
		t.Fatal(err)
	}
	r := NewReader(w.Bytes())
	got, err := ReadCompressedString(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != "the quick brown fox jumps over the lazy dog" {
		t.Fatalf("got %q", got)
	}
}

func TestCompressedStringEmpty(t *testing.T) {
	w := NewWriter()
	if err := WriteCompressedString(w, ""); err != nil {
		t.Fatal(err)
	}
	if len(w.Bytes()) != 4 {
		t.Fatalf("expected bare zero i32 prefix, got %d bytes", len(w.Bytes()))
	}
}

func TestShiftedStringDegradesUnderBotRole(t *testing.T) {
	shift := ShiftedStringShift(666, true)
	if shift != 0 {
		t.Fatalf("bot role must degrade to shift 0, got %d", shift)
	}

	w := NewWriter()
	WriteShiftedString(w, "abc", shift)
	r := NewReader(w.Bytes())
	got, err := ReadShiftedString(r, shift)
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestShiftedStringRoundTrip(t *testing.T) {
	shift := ShiftedStringShift(814, false)
	w := NewWriter()
	WriteShiftedString(w, "abcXYZ", shift)
	r := NewReader(w.Bytes())
	got, err := ReadShiftedString(r, shift)
	if err != nil {
		t.Fatal(err)
	}
	if got != "abcXYZ" {
		t.Fatalf("got %q", got)
	}
}
