// Package server implements the server-side connection state machine
// described in spec.md §4.G: accept main connections, enforce handshake and
// login ordering, generate per-connection auth/verification tokens, and
// idle-out connections that stop sending keep-alives.
package server

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"gotice/cipher"
	"gotice/conn"
	"gotice/dispatch"
	"gotice/packet"
)

// ExpectedLoaderStageSize re-exports packet.ExpectedLoaderStageSize for
// callers that configure a Server without importing packet directly.
const ExpectedLoaderStageSize = packet.ExpectedLoaderStageSize

// AccountStore looks up whether a username/password-hash pair is valid,
// hashed the way cipher.Shakikoo produces client-side password hashes.
type AccountStore interface {
	Verify(username, passwordHash string) bool
}

// Config configures a Server.
type Config struct {
	GameVersion int16

	// RequireVerification turns on the client-verification challenge. When
	// set, ClientVerificationTemplate must also be set.
	RequireVerification         bool
	ClientVerificationTemplate []byte

	PacketKeySources []byte
	AuthKey          uint32

	Accounts AccountStore

	KeepAliveTimeout time.Duration // default 60s

	Registry *dispatch.Registry
}

// Server accepts main-connection clients and drives their login sequence.
type Server struct {
	cfg Config
}

// New builds a Server from cfg, applying defaults.
func New(cfg Config) *Server {
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = 60 * time.Second
	}
	if cfg.Registry == nil {
		cfg.Registry = dispatch.NewRegistry()
	}
	return &Server{cfg: cfg}
}

// Serve accepts connections on l until it errors or is closed, handling each
// in its own goroutine.
func (s *Server) Serve(l net.Listener) error {
	for {
		netConn, err := l.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := s.handleConnection(netConn); err != nil {
				log.Printf("server: connection from %s: %v", netConn.RemoteAddr(), err)
			}
		}()
	}
}

// session tracks the per-connection state required to enforce the ordering
// invariants in spec.md §4.G.
type session struct {
	cn *conn.Connection

	mu                  sync.Mutex
	authToken           int32
	verificationToken   int32
	gotSystemInfo       bool
	gotVerification     bool
	canLogin            bool
	loggedIn            bool

	watchdog *time.Timer
}

func (s *Server) handleConnection(netConn net.Conn) error {
	secrets := &cipher.Secrets{
		PacketKeySources:           s.cfg.PacketKeySources,
		AuthKey:                    s.cfg.AuthKey,
		ClientVerificationTemplate: s.cfg.ClientVerificationTemplate,
		GameVersion:                int32(s.cfg.GameVersion),
	}
	cn := conn.New(netConn, packet.Clientbound, &packet.Ctx{Secrets: secrets})
	defer cn.Close()

	sess := &session{cn: cn}
	authToken, err := randomToken31()
	if err != nil {
		return err
	}
	sess.authToken = authToken

	if s.cfg.RequireVerification {
		verificationToken, err := randomToken31()
		if err != nil {
			return err
		}
		sess.verificationToken = verificationToken
	} else {
		sess.gotVerification = true
	}

	sess.watchdog = time.AfterFunc(s.cfg.KeepAliveTimeout, func() {
		log.Printf("server: closing %s: keep-alive timeout", netConn.RemoteAddr())
		cn.Close()
	})
	defer sess.watchdog.Stop()

	first := true
	for {
		pkt, err := cn.ReadPacket()
		if err != nil {
			return err
		}

		if first {
			if err := s.enforceFirstPacket(pkt); err != nil {
				return err
			}
			first = false
		}

		if err := s.handlePacket(sess, pkt); err != nil {
			return err
		}

		if _, _, err := s.cfg.Registry.Dispatch(context.Background(), cn, packet.Serverbound, pkt, dispatch.Sequential); err != nil {
			return err
		}
	}
}

// enforceFirstPacket implements spec.md §4.G's first-packet rule: a
// handshake or an extension wrapper, nothing else.
func (s *Server) enforceFirstPacket(pkt packet.TopLevelPacket) error {
	switch p := pkt.(type) {
	case *packet.Handshake:
		if p.LoaderStageSize != ExpectedLoaderStageSize {
			return fmt.Errorf("server: handshake loader_stage_size mismatch: got %d, want %d", p.LoaderStageSize, ExpectedLoaderStageSize)
		}
		if p.GameVersion != s.cfg.GameVersion {
			return fmt.Errorf("server: handshake game_version mismatch: got %d, want %d", p.GameVersion, s.cfg.GameVersion)
		}
		return nil
	case *packet.ExtensionWrapper:
		return nil
	default:
		return fmt.Errorf("server: first packet must be a handshake or extension wrapper, got %T", pkt)
	}
}

func (s *Server) handlePacket(sess *session, pkt packet.TopLevelPacket) error {
	switch p := pkt.(type) {
	case *packet.Handshake:
		return sess.cn.WritePacket(&packet.HandshakeResponse{AuthToken: sess.authToken})

	case *packet.SystemInformation:
		sess.mu.Lock()
		sess.gotSystemInfo = true
		sess.recomputeCanLogin()
		sess.mu.Unlock()

		if s.cfg.RequireVerification {
			return sess.cn.WritePacket(&packet.ClientVerificationRequest{VerificationToken: sess.verificationToken})
		}
		return nil

	case *packet.ClientVerificationResponse:
		if !s.cfg.RequireVerification {
			return nil
		}
		want := cipher.ClientVerificationResponse(
			s.cfg.ClientVerificationTemplate,
			uint32(sess.verificationToken),
			s.cfg.PacketKeySources,
		)
		if string(want) != string(p.CipheredData) {
			return fmt.Errorf("server: client verification failed")
		}
		sess.mu.Lock()
		sess.gotVerification = true
		sess.recomputeCanLogin()
		sess.mu.Unlock()
		return nil

	case *packet.Login:
		sess.mu.Lock()
		canLogin := sess.canLogin
		sess.mu.Unlock()
		if !canLogin {
			return fmt.Errorf("server: login received before system info/verification")
		}
		if p.CipheredAuthToken != sess.authToken^int32(s.cfg.AuthKey) {
			return fmt.Errorf("server: login auth token mismatch")
		}
		if s.cfg.Accounts != nil && !s.cfg.Accounts.Verify(p.Username, p.PasswordHash) {
			return sess.cn.WritePacket(&packet.AccountError{ErrorCode: 1})
		}
		sess.mu.Lock()
		sess.loggedIn = true
		sess.mu.Unlock()
		return sess.cn.WritePacket(&packet.LoginSuccess{Username: p.Username, SessionID: sess.authToken})

	case *packet.KeepAlive:
		sess.watchdog.Reset(s.cfg.KeepAliveTimeout)
		return nil

	case *packet.Pong:
		return nil
	}
	return nil
}

// recomputeCanLogin must be called with sess.mu held.
func (sess *session) recomputeCanLogin() {
	sess.canLogin = sess.gotSystemInfo && sess.gotVerification
}

func randomToken31() (int32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("server: generating token: %w", err)
	}
	return int32(binary.BigEndian.Uint32(buf[:]) &^ (1 << 31)), nil
}
