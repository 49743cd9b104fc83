package client

import (
	"context"
	"net"
	"testing"
	"time"

	"gotice/cipher"
	"gotice/conn"
	"gotice/packet"
)

// fakeDialer connects to a fresh loopback TCP listener, ignoring the
// requested address, and hands the accepted end to serverSide so tests can
// drive the client deterministically. TCP buffering lets openMain's
// handshake write finish before the test reads it.
func fakeDialer(serverSide chan net.Conn) func(ctx context.Context, network, address string) (net.Conn, error) {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		defer l.Close()
		clientConn, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			return nil, err
		}
		serverConn, err := l.Accept()
		if err != nil {
			clientConn.Close()
			return nil, err
		}
		serverSide <- serverConn
		return clientConn, nil
	}
}

func newTestClient(t *testing.T) (*Client, *conn.Connection) {
	t.Helper()
	serverSide := make(chan net.Conn, 1)

	secrets := &cipher.Secrets{
		ServerAddress:    "game.example",
		ServerPorts:      []int{11801},
		GameVersion:      762,
		ConnectionToken:  "tok",
		PacketKeySources: []byte{1, 2, 3, 4},
	}

	c := New(Config{
		Secrets:      secrets,
		Identity:     DefaultIdentity,
		Language:     "en",
		Username:     "alice",
		PasswordHash: "hash",
		StartRoom:    "1",
	})
	c.dialer = fakeDialer(serverSide)

	if err := c.openMain(context.Background()); err != nil {
		t.Fatalf("openMain: %v", err)
	}

	serverConn := <-serverSide
	serverCtx := &packet.Ctx{Secrets: secrets}
	server := conn.New(serverConn, packet.Clientbound, serverCtx)
	return c, server
}

func TestClientHandshakeOnOpen(t *testing.T) {
	c, server := newTestClient(t)
	defer c.main.Close()
	defer server.Close()

	if c.State() != HandshakeSent {
		t.Fatalf("expected HandshakeSent, got %v", c.State())
	}

	pkt, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	hs, ok := pkt.(*packet.Handshake)
	if !ok {
		t.Fatalf("expected *packet.Handshake, got %T", pkt)
	}
	if hs.ConnectionToken != "tok" {
		t.Fatalf("unexpected connection token: %q", hs.ConnectionToken)
	}
}

func TestClientLoginSequence(t *testing.T) {
	c, server := newTestClient(t)
	defer c.main.Close()
	defer server.Close()

	if _, err := server.ReadPacket(); err != nil {
		t.Fatalf("reading handshake: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.onHandshakeResponse(&packet.HandshakeResponse{AuthToken: 555}) }()

	sysInfo, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("reading system info: %v", err)
	}
	if _, ok := sysInfo.(*packet.SystemInformation); !ok {
		t.Fatalf("expected *packet.SystemInformation, got %T", sysInfo)
	}
	if err := <-done; err != nil {
		t.Fatalf("onHandshakeResponse: %v", err)
	}
	if c.authToken != 555 {
		t.Fatalf("expected authToken 555, got %d", c.authToken)
	}

	go func() { done <- c.onClientVerification(&packet.ClientVerificationRequest{VerificationToken: 42}) }()

	login, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("reading login: %v", err)
	}
	loginPkt, ok := login.(*packet.Login)
	if !ok {
		t.Fatalf("expected *packet.Login, got %T", login)
	}
	if loginPkt.Username != "alice" {
		t.Fatalf("unexpected username: %q", loginPkt.Username)
	}
	if loginPkt.LoaderURL != DefaultIdentity.LoaderURL {
		t.Fatalf("unexpected loader URL: %q", loginPkt.LoaderURL)
	}
	if err := <-done; err != nil {
		t.Fatalf("onClientVerification: %v", err)
	}
	if c.State() != LoggingIn {
		t.Fatalf("expected LoggingIn, got %v", c.State())
	}
}

func TestClientSkipsLoginWithoutUsername(t *testing.T) {
	serverSide := make(chan net.Conn, 1)
	secrets := &cipher.Secrets{ServerAddress: "x", ServerPorts: []int{11801}, PacketKeySources: []byte{1, 2, 3, 4}}
	c := New(Config{Secrets: secrets})
	c.dialer = fakeDialer(serverSide)

	if err := c.openMain(context.Background()); err != nil {
		t.Fatalf("openMain: %v", err)
	}
	serverConn := <-serverSide
	server := conn.New(serverConn, packet.Clientbound, &packet.Ctx{Secrets: secrets})
	defer c.main.Close()
	defer server.Close()

	if _, err := server.ReadPacket(); err != nil {
		t.Fatalf("reading handshake: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.onHandshakeResponse(&packet.HandshakeResponse{AuthToken: 1}) }()
	if _, err := server.ReadPacket(); err != nil {
		t.Fatalf("reading system info: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("onHandshakeResponse: %v", err)
	}

	if err := c.onClientVerification(&packet.ClientVerificationRequest{VerificationToken: 1}); err != nil {
		t.Fatalf("onClientVerification: %v", err)
	}
	if c.State() == LoggingIn {
		t.Fatalf("expected not to enter LoggingIn without a username")
	}
}

func TestAccountErrorSurfaces(t *testing.T) {
	c, _ := newTestClient(t)
	defer c.main.Close()

	err := c.handlePacket(context.Background(), c.main, &packet.AccountError{ErrorCode: 7})
	accErr, ok := err.(ErrAccount)
	if !ok {
		t.Fatalf("expected ErrAccount, got %v", err)
	}
	if accErr.Code != 7 {
		t.Fatalf("expected code 7, got %d", accErr.Code)
	}
}

func TestKeepAlivePacketReachesServer(t *testing.T) {
	c, server := newTestClient(t)
	defer c.main.Close()
	defer server.Close()

	if _, err := server.ReadPacket(); err != nil {
		t.Fatalf("reading handshake: %v", err)
	}

	// Write a KeepAlive on main the way keepAliveLoop does, without waiting
	// 15 real seconds for its ticker: the ticker and the satellite write
	// aren't under test, only that a KeepAlive reaches the server.
	go func() {
		_ = c.main.WritePacket(&packet.KeepAlive{})
	}()

	pkt, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if _, ok := pkt.(*packet.KeepAlive); !ok {
		t.Fatalf("expected *packet.KeepAlive, got %T", pkt)
	}
	_ = time.Second
}

func TestPingAnsweredOnMainConnection(t *testing.T) {
	c, server := newTestClient(t)
	defer c.main.Close()
	defer server.Close()

	if _, err := server.ReadPacket(); err != nil {
		t.Fatalf("reading handshake: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.handlePacket(context.Background(), c.main, &packet.Ping{MainServer: true, Payload: "abc"})
	}()

	pkt, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	pong, ok := pkt.(*packet.Pong)
	if !ok {
		t.Fatalf("expected *packet.Pong, got %T", pkt)
	}
	if pong.Payload != "abc" {
		t.Fatalf("expected payload %q, got %q", "abc", pong.Payload)
	}
	if err := <-done; err != nil {
		t.Fatalf("handlePacket: %v", err)
	}
}

func TestPingAnsweredOnSatelliteConnection(t *testing.T) {
	c, server := newTestClient(t)
	defer c.main.Close()
	defer server.Close()

	satServer, satClient := net.Pipe()
	satCtx := &packet.Ctx{Secrets: c.cfg.Secrets}
	satConn := conn.New(satClient, packet.Serverbound, satCtx)
	c.mu.Lock()
	c.satellite = satConn
	c.mu.Unlock()
	defer satConn.Close()
	defer satServer.Close()

	satServerConn := conn.New(satServer, packet.Clientbound, &packet.Ctx{Secrets: c.cfg.Secrets})

	done := make(chan error, 1)
	go func() {
		done <- c.handlePacket(context.Background(), satConn, &packet.Ping{MainServer: false, Payload: "xyz"})
	}()

	pkt, err := satServerConn.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	pong, ok := pkt.(*packet.Pong)
	if !ok {
		t.Fatalf("expected *packet.Pong, got %T", pkt)
	}
	if pong.Payload != "xyz" {
		t.Fatalf("expected payload %q, got %q", "xyz", pong.Payload)
	}
	if err := <-done; err != nil {
		t.Fatalf("handlePacket: %v", err)
	}
}
