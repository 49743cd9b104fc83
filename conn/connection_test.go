package conn

import (
	"net"
	"testing"

	"gotice/cipher"
	"gotice/packet"
)

func pipeConnections(t *testing.T) (*Connection, *Connection) {
	t.Helper()
	clientSide, serverSide := net.Pipe()

	secrets := &cipher.Secrets{PacketKeySources: []byte{1, 2, 3, 4}}
	clientCtx := &packet.Ctx{Secrets: secrets}
	serverCtx := &packet.Ctx{Secrets: secrets}

	client := New(clientSide, packet.Serverbound, clientCtx)
	server := New(serverSide, packet.Clientbound, serverCtx)
	return client, server
}

func TestUnencipheredRoundTrip(t *testing.T) {
	client, server := pipeConnections(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- client.WritePacket(&packet.KeepAlive{})
	}()

	pkt, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if _, ok := pkt.(*packet.KeepAlive); !ok {
		t.Fatalf("expected *packet.KeepAlive, got %T", pkt)
	}
}

func TestCipheredLoginRoundTrip(t *testing.T) {
	client, server := pipeConnections(t)
	defer client.Close()
	defer server.Close()

	login := &packet.Login{Username: "alice", PasswordHash: "hash"}

	done := make(chan error, 1)
	go func() {
		done <- client.WritePacket(login)
	}()

	pkt, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	got, ok := pkt.(*packet.Login)
	if !ok {
		t.Fatalf("expected *packet.Login, got %T", pkt)
	}
	if got.Username != "alice" || got.PasswordHash != "hash" {
		t.Fatalf("mismatch: %+v", got)
	}
}

// TestFingerprintRollover mirrors the starting-at-98 rollover scenario:
// fingerprints must advance 98, 99, 0.
func TestFingerprintRollover(t *testing.T) {
	client, server := pipeConnections(t)
	defer client.Close()
	defer server.Close()

	client.writeFingerprint = 98

	var seen []uint8
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			if err := client.WritePacket(&packet.KeepAlive{}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := 0; i < 3; i++ {
		if _, err := server.ReadPacket(); err != nil {
			t.Fatalf("ReadPacket %d: %v", i, err)
		}
		seen = append(seen, server.lastReadFingerprint)
	}
	if err := <-done; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	want := []uint8{98, 99, 0}
	for i, w := range want {
		if seen[i] != w {
			t.Fatalf("fingerprint %d: got %d, want %d", i, seen[i], w)
		}
	}
}

func TestFingerprintOutOfOrderRejected(t *testing.T) {
	client, server := pipeConnections(t)
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- client.WritePacket(&packet.KeepAlive{})
	}()
	if _, err := server.ReadPacket(); err != nil {
		t.Fatalf("first ReadPacket: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	// Skip a fingerprint value on the client side to desynchronize.
	client.writeFingerprint = (client.writeFingerprint + 1) % 100

	go func() {
		done <- client.WritePacket(&packet.KeepAlive{})
	}()
	_, err := server.ReadPacket()
	if writeErr := <-done; writeErr != nil {
		t.Fatalf("WritePacket: %v", writeErr)
	}
	if err == nil {
		t.Fatalf("expected fingerprint order error")
	}
}
