package cipher

// BotRoleVersion is the sentinel game_version that marks a trusted,
// automated "bot role" client. It disables several handshake fields and the
// identification cipher.
const BotRoleVersion = 666

// Secrets is the immutable per-session record described in spec.md §3: once
// constructed it is never mutated, only replaced wholesale via Clone.
type Secrets struct {
	ServerAddress              string
	ServerPorts                []int
	GameVersion                int32
	ConnectionToken            string
	AuthKey                    uint32
	PacketKeySources           []byte // at most 16 bytes
	ClientVerificationTemplate []byte // opaque, nil if unset
}

// IsBotRole reports whether GameVersion is the bot-role sentinel.
func (s *Secrets) IsBotRole() bool {
	return s != nil && s.GameVersion == BotRoleVersion
}

// HasKeySources reports whether enough key material has arrived to cipher
// packets; until then, ciphered packets must be treated as opaque blobs.
func (s *Secrets) HasKeySources() bool {
	return s != nil && len(s.PacketKeySources) > 0
}

// Key derives the cipher key for name from this session's key sources.
func (s *Secrets) Key(name string) []uint32 {
	return DeriveKey(s.PacketKeySources, name)
}

// Clone returns a value copy of s so a connection can swap its active
// Secrets wholesale without ever mutating a shared instance in place.
func (s *Secrets) Clone() *Secrets {
	if s == nil {
		return nil
	}
	clone := *s
	clone.ServerPorts = append([]int(nil), s.ServerPorts...)
	clone.PacketKeySources = append([]byte(nil), s.PacketKeySources...)
	clone.ClientVerificationTemplate = append([]byte(nil), s.ClientVerificationTemplate...)
	return &clone
}

// Equal reports structural equality, matching the original's Secrets
// __eq__/__hash__ semantics (defined purely in terms of key_sources there;
// here we compare the whole record since Go has no implicit context reuse).
func (s *Secrets) Equal(other *Secrets) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.ServerAddress != other.ServerAddress ||
		s.GameVersion != other.GameVersion ||
		s.ConnectionToken != other.ConnectionToken ||
		s.AuthKey != other.AuthKey {
		return false
	}
	return bytesEqual(s.PacketKeySources, other.PacketKeySources) &&
		bytesEqual(s.ClientVerificationTemplate, other.ClientVerificationTemplate) &&
		intsEqual(s.ServerPorts, other.ServerPorts)
}

func bytesEqual(a, b []byte) bool {
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

func intsEqual(a, b []int) bool {
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
