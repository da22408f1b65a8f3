package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultAddr        = ":8080"
	DefaultServerURL   = "ws://localhost:8080/ws"
	DefaultSTUN        = "stun:stun.l.google.com:19302"
	DefaultRoomTTL     = 10 * time.Minute
	DefaultICERefresh  = time.Hour
	DefaultDisplayName = "anonymous"
)

// Server holds the relay configuration.
type Server struct {
	// Addr is the listen address.
	Addr string

	// ICEConfigURL is the credential service endpoint. Empty disables the
	// fetch and clients receive null iceServers.
	ICEConfigURL string

	// ICERefreshInterval re-fetches credentials periodically.
	ICERefreshInterval time.Duration

	// RoomTTL expires rooms stuck below capacity. Zero disables expiry.
	RoomTTL time.Duration

	// AllowedOrigins restricts websocket upgrades. Empty allows all.
	AllowedOrigins []string
}

// ServerOptions carries CLI flag overrides for LoadServer.
type ServerOptions struct {
	Addr         string
	ICEConfigURL string
	RoomTTL      time.Duration
}

// LoadServer reads relay configuration with the following priority:
// 1. CLI flags (passed via ServerOptions) - highest priority
// 2. Environment variables
// 3. Defaults - lowest priority
func LoadServer(opts ServerOptions) (*Server, error) {
	addr := opts.Addr
	if addr == "" {
		addr = os.Getenv("LISTEN_ADDR")
	}
	if addr == "" {
		addr = DefaultAddr
	}

	iceURL := opts.ICEConfigURL
	if iceURL == "" {
		iceURL = os.Getenv("ICE_CONFIG_URL")
	}

	ttl := opts.RoomTTL
	if ttl == 0 {
		if v := os.Getenv("ROOM_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid ROOM_TTL: %w", err)
			}
			ttl = d
		}
	}
	if ttl == 0 {
		ttl = DefaultRoomTTL
	}

	refresh := DefaultICERefresh
	if v := os.Getenv("ICE_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ICE_REFRESH_INTERVAL: %w", err)
		}
		refresh = d
	}

	var origins []string
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return &Server{
		Addr:               addr,
		ICEConfigURL:       iceURL,
		ICERefreshInterval: refresh,
		RoomTTL:            ttl,
		AllowedOrigins:     origins,
	}, nil
}

// Client holds the call client configuration.
type Client struct {
	// ServerURL is the relay websocket endpoint.
	ServerURL string

	// DisplayName is shown to the remote participant.
	DisplayName string

	// STUNServer is the local fallback used when the relay hands out no
	// connectivity servers.
	STUNServer string
}

// ClientOptions carries CLI flag overrides for LoadClient.
type ClientOptions struct {
	ServerURL   string
	DisplayName string
	STUNServer  string
}

// LoadClient reads client configuration with the same flag > env > default
// priority as LoadServer.
func LoadClient(opts ClientOptions) (*Client, error) {
	serverURL := opts.ServerURL
	if serverURL == "" {
		serverURL = os.Getenv("SIGNALING_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}

	name := opts.DisplayName
	if name == "" {
		name = os.Getenv("DISPLAY_NAME")
	}
	if name == "" {
		name = DefaultDisplayName
	}

	stun := opts.STUNServer
	if stun == "" {
		stun = os.Getenv("STUN_SERVER")
	}
	if stun == "" {
		stun = DefaultSTUN
	}

	return &Client{
		ServerURL:   serverURL,
		DisplayName: name,
		STUNServer:  stun,
	}, nil
}
