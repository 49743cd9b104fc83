package proxy

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"gotice/cipher"
	"gotice/conn"
	"gotice/packet"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return l
}

func portOf(t *testing.T, l net.Listener) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return port
}

func TestProxyFingerprintCorrectionAndAddressLaundering(t *testing.T) {
	upstreamListener := listen(t)
	defer upstreamListener.Close()

	secrets := &cipher.Secrets{PacketKeySources: []byte{1, 2, 3, 4}, AuthKey: 7}

	upstreamDone := make(chan error, 1)
	go func() {
		netConn, err := upstreamListener.Accept()
		if err != nil {
			upstreamDone <- err
			return
		}
		defer netConn.Close()
		server := conn.New(netConn, packet.Clientbound, &packet.Ctx{Secrets: secrets})

		pkt, err := server.ReadPacket()
		if err != nil {
			upstreamDone <- err
			return
		}
		hs, ok := pkt.(*packet.Handshake)
		if !ok {
			upstreamDone <- errors.New("expected Handshake from proxy")
			return
		}
		if hs.LoaderStageSize != packet.ExpectedLoaderStageSize {
			upstreamDone <- errors.New("loader_stage_size not corrected")
			return
		}
		if server.LastReadFingerprint() != 37 {
			upstreamDone <- errors.New("client fingerprint not carried over upstream")
			return
		}

		if err := server.WritePacket(&packet.ReaffirmServerAddress{Address: "real-upstream-host"}); err != nil {
			upstreamDone <- err
			return
		}
		upstreamDone <- nil
	}()

	mainListener := listen(t)
	defer mainListener.Close()

	p := New(Config{
		ExpectedAddress: "proxy.example",
		Static: &UpstreamInfo{
			Address:          "127.0.0.1",
			Ports:            []int{portOf(t, upstreamListener)},
			PacketKeySources: secrets.PacketKeySources,
			AuthKey:          secrets.AuthKey,
		},
	})
	go p.ServeMain(mainListener)

	clientNetConn, err := net.Dial("tcp", mainListener.Addr().String())
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer clientNetConn.Close()
	client := conn.New(clientNetConn, packet.Serverbound, &packet.Ctx{Secrets: secrets})
	// Start mid-sequence: the upstream only sees 37 if the proxy carries the
	// client's fingerprint over instead of starting its own at 0.
	client.SetWriteFingerprint(37)

	if err := client.WritePacket(&packet.Handshake{GameVersion: 5, LoaderStageSize: 1}); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	reply, err := client.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	reaffirm, ok := reply.(*packet.ReaffirmServerAddress)
	if !ok {
		t.Fatalf("expected *packet.ReaffirmServerAddress, got %T", reply)
	}
	if reaffirm.Address != "proxy.example" {
		t.Fatalf("expected laundered address, got %q", reaffirm.Address)
	}

	select {
	case err := <-upstreamDone:
		if err != nil {
			t.Fatalf("upstream side: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for upstream handler")
	}
}

func TestProxySatellitePairing(t *testing.T) {
	secrets := &cipher.Secrets{PacketKeySources: []byte{1, 2, 3, 4}, AuthKey: 7}

	realSatListener := listen(t)
	defer realSatListener.Close()

	satDone := make(chan error, 1)
	go func() {
		netConn, err := realSatListener.Accept()
		if err != nil {
			satDone <- err
			return
		}
		defer netConn.Close()
		server := conn.New(netConn, packet.Clientbound, &packet.Ctx{Secrets: secrets})
		pkt, err := server.ReadPacket()
		if err != nil {
			satDone <- err
			return
		}
		ident, ok := pkt.(*packet.SatelliteDelayedIdentification)
		if !ok {
			satDone <- errors.New("expected SatelliteDelayedIdentification")
			return
		}
		if ident.AuthID != 999 {
			satDone <- errors.New("auth_id mismatch")
			return
		}
		satDone <- nil
	}()

	upstreamListener := listen(t)
	defer upstreamListener.Close()

	mainDone := make(chan error, 1)
	go func() {
		netConn, err := upstreamListener.Accept()
		if err != nil {
			mainDone <- err
			return
		}
		defer netConn.Close()
		server := conn.New(netConn, packet.Clientbound, &packet.Ctx{Secrets: secrets})
		if _, err := server.ReadPacket(); err != nil {
			mainDone <- err
			return
		}
		if err := server.WritePacket(&packet.ChangeSatelliteServer{
			Address: "127.0.0.1",
			Ports:   packet.Ports{portOf(t, realSatListener)},
			AuthID:  999,
		}); err != nil {
			mainDone <- err
			return
		}
		mainDone <- nil
	}()

	mainListener := listen(t)
	defer mainListener.Close()
	proxySatListener := listen(t)
	defer proxySatListener.Close()

	p := New(Config{
		SatelliteAddress: "127.0.0.1",
		SatellitePorts:   []int{portOf(t, proxySatListener)},
		Static: &UpstreamInfo{
			Address:          "127.0.0.1",
			Ports:            []int{portOf(t, upstreamListener)},
			PacketKeySources: secrets.PacketKeySources,
			AuthKey:          secrets.AuthKey,
		},
	})
	go p.ServeMain(mainListener)
	go p.ServeSatellite(proxySatListener)

	clientNetConn, err := net.Dial("tcp", mainListener.Addr().String())
	if err != nil {
		t.Fatalf("dial proxy main: %v", err)
	}
	defer clientNetConn.Close()
	client := conn.New(clientNetConn, packet.Serverbound, &packet.Ctx{Secrets: secrets})

	if err := client.WritePacket(&packet.Handshake{GameVersion: 1, LoaderStageSize: packet.ExpectedLoaderStageSize}); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	redirect, err := client.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	css, ok := redirect.(*packet.ChangeSatelliteServer)
	if !ok {
		t.Fatalf("expected *packet.ChangeSatelliteServer, got %T", redirect)
	}
	if css.Address != "127.0.0.1" || len(css.Ports) != 1 || css.Ports[0] != portOf(t, proxySatListener) {
		t.Fatalf("satellite redirect not rewritten to proxy: %+v", css)
	}

	satClientConn, err := net.Dial("tcp", proxySatListener.Addr().String())
	if err != nil {
		t.Fatalf("dial proxy satellite: %v", err)
	}
	defer satClientConn.Close()
	satClient := conn.New(satClientConn, packet.Serverbound, &packet.Ctx{Secrets: secrets})

	if err := satClient.WritePacket(&packet.SatelliteDelayedIdentification{AuthID: 999}); err != nil {
		t.Fatalf("identification: %v", err)
	}

	for _, done := range []chan error{mainDone, satDone} {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("upstream side: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for upstream handler")
		}
	}
}
