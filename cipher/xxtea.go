// Package cipher implements the two block ciphers that protect individual
// packet bodies — XXTEA and a keystream XOR — plus the key-derivation and
// passphrase-hashing primitives that feed them. None of the example corpus's
// dependencies implement XXTEA, so it is hand-rolled per spec.md §4.B rather
// than sourced from a library; see DESIGN.md.
package cipher

const xxteaDelta = 0x9E3779B9

// mx mixes one block. key only ever needs indices 0..3: callers must supply
// at least 4 key words. DeriveKey returns one word per key source, so a key
// derived from fewer than 4 sources is too short for it.
func mx(e, p uint32, y, z, sum uint32, key []uint32) uint32 {
	return (((z >> 5) ^ (y << 2)) + ((y >> 3) ^ (z << 4))) ^ ((sum ^ y) + (key[(p&3)^e] ^ z))
}

// XXTEAEncodeInPlace enciphers blocks in place per the Transformice-flavored
// XXTEA variant (spec.md §4.B).
func XXTEAEncodeInPlace(blocks []uint32, key []uint32) {
	n := uint32(len(blocks))
	if n < 2 {
		return
	}
	z := blocks[n-1]
	var sum uint32

	rounds := 6 + 52/n
	for i := uint32(0); i < rounds; i++ {
		sum += xxteaDelta
		e := (sum >> 2) & 3

		for p := uint32(0); p < n; p++ {
			y := blocks[(p+1)%n]
			blocks[p] += mx(e, p, y, z, sum, key)
			z = blocks[p]
		}
	}
}

// XXTEADecodeInPlace reverses XXTEAEncodeInPlace.
func XXTEADecodeInPlace(blocks []uint32, key []uint32) {
	n := uint32(len(blocks))
	if n < 2 {
		return
	}
	y := blocks[0]

	rounds := 6 + 52/n
	sum := rounds * xxteaDelta

	for sum != 0 {
		e := (sum >> 2) & 3

		for p := int(n) - 1; p >= 0; p-- {
			var z uint32
			if p == 0 {
				z = blocks[n-1]
			} else {
				z = blocks[p-1]
			}
			blocks[p] -= mx(e, uint32(p), y, z, sum, key)
			y = blocks[p]
		}

		sum -= xxteaDelta
	}
}
