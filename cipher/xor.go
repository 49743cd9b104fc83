package cipher

// XOR applies the keystream cipher: byte i of the result is data[i] XOR
// key[(i+fingerprint+1) mod len(key)]. The cipher is symmetric, so the same
// call enciphers and deciphers.
func XOR(data []byte, key []uint32, fingerprint uint8) []byte {
	out := make([]byte, len(data))
	keyLen := uint32(len(key))
	for i, b := range data {
		idx := (uint32(i) + uint32(fingerprint) + 1) % keyLen
		out[i] = b ^ byte(key[idx])
	}
	return out
}
