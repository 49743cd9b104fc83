package server

// MemoryAccountStore is a fixed map of username to the Shakikoo-hashed
// password expected from that username (see cipher.ShakikooString), wiring
// that hash into a concrete, if minimal, account backend.
type MemoryAccountStore struct {
	// Usernames map to the value cipher.ShakikooString(password) produced
	// when the account was created.
	Usernames map[string]string
}

// Verify reports whether passwordHash matches the stored hash for username.
// passwordHash is expected to already be Shakikoo-hashed, matching what the
// client sends over the wire (the plaintext password never crosses it).
func (m *MemoryAccountStore) Verify(username, passwordHash string) bool {
	want, ok := m.Usernames[username]
	return ok && want == passwordHash
}

var _ AccountStore = (*MemoryAccountStore)(nil)
