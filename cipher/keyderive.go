package cipher

import "sync"

// Cipher names used as the "name" input to DeriveKey. The client-verification
// challenge instead derives its key with the decimal string of the
// verification token — see ClientVerificationResponse.
const (
	NameIdentification = "identification"
	NameXOR            = "msg"
)

type deriveKey struct {
	sourcesKey string
	name       string
}

var deriveCache sync.Map // deriveKey -> []uint32

// DeriveKey implements the per-session key derivation from spec.md §4.B: a
// linear-congruential-ish mix of the key sources and the cipher name,
// followed by a xorshift expansion into one key word per source byte. All
// arithmetic wraps at 32 bits, matching the original's fixedint.Int32, and
// the right shift sign-extends as it does on a signed 32-bit value. The
// result is memoized per (sources, name), mirroring pak.util.cache on the
// original Secrets._key.
func DeriveKey(sources []byte, name string) []uint32 {
	cacheKey := deriveKey{sourcesKey: string(sources), name: name}
	if cached, ok := deriveCache.Load(cacheKey); ok {
		return cached.([]uint32)
	}

	num := uint32(0x1505)
	for i, source := range sources {
		num = (num<<5 + num) + uint32(source) + uint32(name[i%len(name)])
	}

	key := make([]uint32, len(sources))
	for i := range key {
		num ^= num << 13
		num ^= uint32(int32(num) >> 17)
		num ^= num << 5
		key[i] = num
	}

	deriveCache.Store(cacheKey, key)
	return key
}
