// Command gotice runs a Transformice-protocol server or proxy, or hashes a
// password the way the client does before sending it in a Login packet.
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gotice/cipher"
	"gotice/dispatch"
	"gotice/proxy"
	"gotice/server"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "-v", "--version", "--about":
		fmt.Printf("gotice v%s\n", version)
	case "server":
		runServer(os.Args[2:])
	case "proxy":
		runProxy(os.Args[2:])
	case "shakikoo":
		runShakikoo(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gotice <server|proxy|shakikoo> [args...]")
}

// serverConfig is the server.yaml shape.
type serverConfig struct {
	ListenAddress string `yaml:"listen_address"`

	GameVersion int16 `yaml:"game_version"`

	RequireVerification        bool   `yaml:"require_verification"`
	ClientVerificationTemplate string `yaml:"client_verification_template_hex"`

	PacketKeySourcesHex string `yaml:"packet_key_sources_hex"`
	AuthKey             uint32 `yaml:"auth_key"`

	// Accounts maps username to the Shakikoo-hashed password expected from
	// it (see the shakikoo subcommand).
	Accounts map[string]string `yaml:"accounts"`

	KeepAliveTimeoutSeconds int `yaml:"keep_alive_timeout_seconds"`
}

func runServer(args []string) {
	path := "server.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	var cfg serverConfig
	loadYAML(path, &cfg)

	if cfg.ListenAddress == "" {
		log.Fatal("server: listen_address is required")
	}

	keySources, err := hex.DecodeString(cfg.PacketKeySourcesHex)
	if err != nil {
		log.Fatalf("server: decoding packet_key_sources_hex: %v", err)
	}
	verificationTemplate, err := hex.DecodeString(cfg.ClientVerificationTemplate)
	if err != nil {
		log.Fatalf("server: decoding client_verification_template_hex: %v", err)
	}

	keepAlive := time.Duration(cfg.KeepAliveTimeoutSeconds) * time.Second

	srv := server.New(server.Config{
		GameVersion:                cfg.GameVersion,
		RequireVerification:        cfg.RequireVerification,
		ClientVerificationTemplate: verificationTemplate,
		PacketKeySources:           keySources,
		AuthKey:                    cfg.AuthKey,
		Accounts:                   &server.MemoryAccountStore{Usernames: cfg.Accounts},
		KeepAliveTimeout:           keepAlive,
		Registry:                   dispatch.NewRegistry(),
	})

	l, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("gotice server listening on %s (game_version=%d)", cfg.ListenAddress, cfg.GameVersion)
	log.Fatal(srv.Serve(l))
}

// proxyConfig is the proxy.yaml shape.
type proxyConfig struct {
	MainListenAddress         string `yaml:"main_listen_address"`
	SatelliteListenAddress    string `yaml:"satellite_listen_address"`
	SocketPolicyListenAddress string `yaml:"socket_policy_listen_address"`
	SidecarListenAddress      string `yaml:"sidecar_listen_address"`

	ExpectedAddress  string `yaml:"expected_address"`
	SatelliteAddress string `yaml:"satellite_address"`
	SatellitePorts   []int  `yaml:"satellite_ports"`

	GameVersion int16 `yaml:"game_version"`

	Upstream *struct {
		Address             string `yaml:"address"`
		Ports               []int  `yaml:"ports"`
		PacketKeySourcesHex string `yaml:"packet_key_sources_hex"`
		AuthKey             uint32 `yaml:"auth_key"`
	} `yaml:"upstream"`
}

func runProxy(args []string) {
	path := "proxy.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	var cfg proxyConfig
	loadYAML(path, &cfg)

	if cfg.MainListenAddress == "" {
		log.Fatal("proxy: main_listen_address is required")
	}

	pcfg := proxy.Config{
		ExpectedAddress:  cfg.ExpectedAddress,
		SatelliteAddress: cfg.SatelliteAddress,
		SatellitePorts:   cfg.SatellitePorts,
		GameVersion:      cfg.GameVersion,
		Registry:         dispatch.NewRegistry(),
	}

	if cfg.Upstream != nil {
		keySources, err := hex.DecodeString(cfg.Upstream.PacketKeySourcesHex)
		if err != nil {
			log.Fatalf("proxy: decoding upstream packet_key_sources_hex: %v", err)
		}
		ports := cfg.Upstream.Ports
		if len(ports) == 0 {
			ports = proxy.DefaultMainPorts
		}
		pcfg.Static = &proxy.UpstreamInfo{
			Address:          cfg.Upstream.Address,
			Ports:            ports,
			PacketKeySources: keySources,
			AuthKey:          cfg.Upstream.AuthKey,
		}
	}

	p := proxy.New(pcfg)

	mainListener, err := net.Listen("tcp", cfg.MainListenAddress)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("gotice proxy main listener on %s", cfg.MainListenAddress)

	errs := make(chan error, 4)
	go func() { errs <- p.ServeMain(mainListener) }()

	if cfg.SatelliteListenAddress != "" {
		satListener, err := net.Listen("tcp", cfg.SatelliteListenAddress)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("gotice proxy satellite listener on %s", cfg.SatelliteListenAddress)
		go func() { errs <- p.ServeSatellite(satListener) }()
	}

	if cfg.SocketPolicyListenAddress != "" {
		spListener, err := net.Listen("tcp", cfg.SocketPolicyListenAddress)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("gotice proxy socket-policy listener on %s", cfg.SocketPolicyListenAddress)
		go func() { errs <- proxy.ServeSocketPolicy(spListener) }()
	}

	if cfg.SidecarListenAddress != "" {
		scListener, err := net.Listen("tcp", cfg.SidecarListenAddress)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("gotice proxy sidecar listener on %s", cfg.SidecarListenAddress)
		sc := proxy.NewSidecarListener(p)
		go func() { errs <- sc.Serve(scListener) }()
	}

	log.Fatal(<-errs)
}

func runShakikoo(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: gotice shakikoo <password>")
		os.Exit(1)
	}
	fmt.Println(cipher.ShakikooString(args[0]))
}

func loadYAML(path string, out interface{}) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("could not open %s: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(out); err != nil {
		log.Fatalf("invalid %s: %v", path, err)
	}
}
