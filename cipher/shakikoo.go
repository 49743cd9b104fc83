package cipher

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// shakikooSalt is the fixed 32-byte salt Transformice mixes into password
// hashes, copied byte-for-byte from the original implementation.
var shakikooSalt = []byte{
	0xF7, 0x1A, 0xA6, 0xDE, 0x8F, 0x17, 0x76, 0xA8, 0x03, 0x9D, 0x32, 0xB8, 0xA1, 0x56, 0xB2, 0xA9,
	0x3E, 0xDD, 0x43, 0x9D, 0xC5, 0xDD, 0xCE, 0x56, 0xD3, 0xB7, 0xA4, 0x05, 0x4A, 0x0D, 0x08, 0xB0,
}

// Shakikoo hashes data the way Transformice hashes passwords: sha256, hex
// encode, append the fixed salt, sha256 again, base64 the digest.
func Shakikoo(data []byte) string {
	base := sha256.Sum256(data)

	hexDigest := make([]byte, hex.EncodedLen(len(base)))
	hex.Encode(hexDigest, base[:])

	salted := append(hexDigest, shakikooSalt...)
	final := sha256.Sum256(salted)

	return base64.StdEncoding.EncodeToString(final[:])
}

// ShakikooString is a convenience wrapper for string input, UTF-8 encoded.
func ShakikooString(s string) string {
	return Shakikoo([]byte(s))
}
