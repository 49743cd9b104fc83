package cipher

import (
	"bytes"
	"testing"
)

func TestXXTEARoundTrip(t *testing.T) {
	blocks := []uint32{0x00000001, 0x00000002, 0x00000003, 0x00000004}
	key := []uint32{0, 0, 0, 0}

	encoded := append([]uint32(nil), blocks...)
	XXTEAEncodeInPlace(encoded, key)

	if bytes32Equal(encoded, blocks) {
		t.Fatal("encoding did not change the blocks")
	}

	decoded := append([]uint32(nil), encoded...)
	XXTEADecodeInPlace(decoded, key)

	if !bytes32Equal(decoded, blocks) {
		t.Fatalf("round trip mismatch: got %v want %v", decoded, blocks)
	}
}

func bytes32Equal(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestXXTEAPackUnpackRoundTrip(t *testing.T) {
	key := DeriveKey([]byte{0x11, 0x22, 0x33, 0x44}, NameIdentification)
	plaintext := []byte("hello tribulle")

	packed := XXTEAPack(plaintext, key)
	unpacked, err := XXTEAUnpack(packed, key)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(unpacked, plaintext) {
		t.Fatalf("got %q, want prefix %q", unpacked, plaintext)
	}
}

func TestXORSymmetric(t *testing.T) {
	key := []uint32{0x12, 0x34, 0x56, 0x78}
	data := []byte("the quick brown fox")

	for fingerprint := 0; fingerprint < 100; fingerprint++ {
		ciphered := XOR(data, key, uint8(fingerprint))
		deciphered := XOR(ciphered, key, uint8(fingerprint))
		if !bytes.Equal(deciphered, data) {
			t.Fatalf("fingerprint=%d: round trip mismatch", fingerprint)
		}
	}
}

func TestDeriveKeyDeterministicAndMemoized(t *testing.T) {
	sources := []byte{0x11, 0x22}

	key1 := DeriveKey(sources, NameXOR)
	key2 := DeriveKey(sources, NameXOR)

	if len(key1) != len(sources) {
		t.Fatalf("expected key length %d, got %d", len(sources), len(key1))
	}
	if !bytes32Equal(key1, key2) {
		t.Fatal("derivation is not deterministic")
	}

	// Confirm the returned slice is the literal cached slice (memoized),
	// not merely value-equal.
	key1[0] = ^key1[0]
	key3 := DeriveKey(sources, NameXOR)
	if key3[0] != key1[0] {
		t.Fatal("expected DeriveKey to return the memoized slice")
	}
}

func TestShakikooIsDeterministic(t *testing.T) {
	a := ShakikooString("hunter2")
	b := ShakikooString("hunter2")
	if a != b {
		t.Fatal("shakikoo is not deterministic")
	}
	if ShakikooString("hunter2") == ShakikooString("hunter3") {
		t.Fatal("different inputs produced the same hash")
	}
}

func TestClientVerificationResponseSubstitutesMarker(t *testing.T) {
	template := append([]byte("prefix-"), 0xAA, 0xBB, 0xCC, 0xDD)
	template = append(template, []byte("-suffix")...)

	resp := ClientVerificationResponse(template, 0x01020304, []byte{1, 2, 3, 4})
	if len(resp) == 0 {
		t.Fatal("expected non-empty response")
	}

	// 0x01020304 is 16909060 in decimal, the cipher name the key is derived with.
	plain, err := XXTEAUnpack(resp, DeriveKey([]byte{1, 2, 3, 4}, "16909060"))
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte("prefix-"), 0x01, 0x02, 0x03, 0x04)
	want = append(want, []byte("-suffix")...)
	if !bytes.HasPrefix(plain, want) {
		t.Fatalf("got %x, want prefix %x", plain, want)
	}
}
