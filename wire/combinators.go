package wire

import (
	"fmt"
	"math"
)

// ErrEnumUnknown is wrapped into packet.ErrSchema by the schema engine when a
// strict Enum field receives a value with no matching member.
var ErrEnumUnknown = fmt.Errorf("wire: unknown enum value")

// ReadFunc/WriteFunc let the T[N], T[LenT], T[None], Optional(T) and Enum(T)
// combinators from spec.md §4.A compose over any already-defined primitive
// reader/writer pair.
type ReadFunc[T any] func(r *Reader) (T, error)
type WriteFunc[T any] func(w *Writer, v T)

// ReadFixedArray reads exactly n elements of T — the T[N] combinator.
func ReadFixedArray[T any](r *Reader, n int, read ReadFunc[T]) ([]T, error) {
	out := make([]T, n)
	for i := range out {
		v, err := read(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteFixedArray writes every element of vals in order.
func WriteFixedArray[T any](w *Writer, vals []T, write WriteFunc[T]) {
	for _, v := range vals {
		write(w, v)
	}
}

// LenCodec packs/unpacks a sequence length for the T[LenT] combinator.
type LenCodec struct {
	Read  func(r *Reader) (int, error)
	Write func(w *Writer, n int)
}

var (
	LenU8 = LenCodec{
		Read:  func(r *Reader) (int, error) { v, err := ReadU8(r); return int(v), err },
		Write: func(w *Writer, n int) { WriteU8(w, uint8(n)) },
	}
	LenU16 = LenCodec{
		Read:  func(r *Reader) (int, error) { v, err := ReadU16(r); return int(v), err },
		Write: func(w *Writer, n int) { WriteU16(w, uint16(n)) },
	}
	LenVarUint = LenCodec{
		Read:  func(r *Reader) (int, error) { v, err := ReadVarUint(r); return int(v), err },
		Write: func(w *Writer, n int) { WriteVarUint(w, uint32(n)) },
	}
)

// ReadLengthPrefixed reads a length (per lc) followed by that many T — the
// T[LenT] combinator.
func ReadLengthPrefixed[T any](r *Reader, lc LenCodec, read ReadFunc[T]) ([]T, error) {
	n, err := lc.Read(r)
	if err != nil {
		return nil, err
	}
	return ReadFixedArray(r, n, read)
}

// WriteLengthPrefixed writes len(vals) via lc, then every element.
func WriteLengthPrefixed[T any](w *Writer, vals []T, lc LenCodec, write WriteFunc[T]) {
	lc.Write(w, len(vals))
	WriteFixedArray(w, vals, write)
}

// ReadGreedy consumes T values until the buffer is exhausted — the T[None]
// combinator.
func ReadGreedy[T any](r *Reader, read ReadFunc[T]) ([]T, error) {
	var out []T
	for r.Len() > 0 {
		v, err := read(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadOptional reads an explicit boolean prefix, then T if it was true — the
// Optional(T) combinator without a custom discriminator.
func ReadOptional[T any](r *Reader, read ReadFunc[T]) (value T, present bool, err error) {
	present, err = ReadBool(r)
	if err != nil || !present {
		return value, present, err
	}
	value, err = read(r)
	return value, present, err
}

// WriteOptional writes the boolean discriminator, then v if present.
func WriteOptional[T any](w *Writer, value T, present bool, write WriteFunc[T]) {
	WriteBool(w, present)
	if present {
		write(w, value)
	}
}

// EnumOr is the non-lossy Enum(T, E) representation: Known reports whether
// Value matched a declared enum member, but Value itself is always the raw
// wire value either way, so packing an EnumOr round-trips even for values
// the enum doesn't declare.
type EnumOr[T comparable] struct {
	Value T
	Known bool
}

// ReadEnumOr reads a raw T and tags it Known according to isKnown.
func ReadEnumOr[T comparable](r *Reader, read ReadFunc[T], isKnown func(T) bool) (EnumOr[T], error) {
	v, err := read(r)
	if err != nil {
		return EnumOr[T]{}, err
	}
	return EnumOr[T]{Value: v, Known: isKnown(v)}, nil
}

// WriteEnumOr writes the raw value, known or not.
func WriteEnumOr[T comparable](w *Writer, e EnumOr[T], write WriteFunc[T]) {
	write(w, e.Value)
}

// ReadEnumStrict reads T and fails with ErrEnumUnknown if isKnown rejects it,
// per the plain (lossy) Enum(T, E) combinator.
func ReadEnumStrict[T comparable](r *Reader, read ReadFunc[T], isKnown func(T) bool) (T, error) {
	v, err := read(r)
	if err != nil {
		return v, err
	}
	if !isKnown(v) {
		return v, fmt.Errorf("%w: %v", ErrEnumUnknown, v)
	}
	return v, nil
}

// ReadScaledI32 reads a ScaledInteger(Int, scale): an on-wire i32 divided by
// scale to produce the in-memory float.
func ReadScaledI32(r *Reader, scale float64) (float64, error) {
	v, err := ReadI32(r)
	if err != nil {
		return 0, err
	}
	return float64(v) / scale, nil
}

// WriteScaledI32 packs value*scale rounded to the nearest i32.
func WriteScaledI32(w *Writer, value float64, scale float64) {
	WriteI32(w, int32(math.Round(value*scale)))
}

// ReadScaledShort reads a ScaledInteger(Short, scale).
func ReadScaledShort(r *Reader, scale float64) (float64, error) {
	v, err := ReadI16(r)
	if err != nil {
		return 0, err
	}
	return float64(v) / scale, nil
}

// WriteScaledShort packs value*scale rounded to the nearest i16.
func WriteScaledShort(w *Writer, value float64, scale float64) {
	WriteI16(w, int16(math.Round(value*scale)))
}
