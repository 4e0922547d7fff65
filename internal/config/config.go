package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/transfer"
	"gopkg.in/yaml.v3"
)

// Default configuration values (production)
const (
	DefaultDomain            = "roomdrop.qzz.io"
	DefaultSTUN              = "stun:stun.l.google.com:19302"
	DefaultTURN              = "turn:roomdrop.qzz.io"
	DefaultTURNUser          = "roomdrop"
	DefaultTURNPass          = "roomdrop-secret"
	DefaultClipboardInterval = time.Second
)

// Config holds application configuration
type Config struct {
	// Domain is the relay server domain
	Domain string

	// WebSocketURL is constructed from domain unless RELAY_URL overrides it
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool

	DownloadDir       string
	ClipboardInterval time.Duration
	Transfer          transfer.Options
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigPath string
	Domain     string
	RelayURL   string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// File is the optional YAML config file.
type File struct {
	Domain            string        `yaml:"domain"`
	RelayURL          string        `yaml:"relay_url"`
	STUNServer        string        `yaml:"stun_server"`
	TURNServer        string        `yaml:"turn_server"`
	TURNUser          string        `yaml:"turn_username"`
	TURNPass          string        `yaml:"turn_password"`
	ForceRelay        bool          `yaml:"force_relay"`
	DownloadDir       string        `yaml:"download_dir"`
	ClipboardInterval time.Duration `yaml:"clipboard_interval"`
	Transfer          struct {
		ChunkSize     int    `yaml:"chunk_size"`
		HighWaterMark uint64 `yaml:"high_water_mark"`
		LowWaterMark  uint64 `yaml:"low_water_mark"`
	} `yaml:"transfer"`
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. The YAML file named by --config or ROOMDROP_CONFIG
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	path := first(opts.ConfigPath, os.Getenv("ROOMDROP_CONFIG"))
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	forceRelay, err := envBool("FORCE_RELAY")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Domain:            first(opts.Domain, os.Getenv("DOMAIN"), file.Domain, DefaultDomain),
		STUNServer:        first(opts.STUNServer, os.Getenv("STUN_SERVER"), file.STUNServer, DefaultSTUN),
		TURNServer:        first(opts.TURNServer, os.Getenv("TURN_SERVER"), file.TURNServer, DefaultTURN),
		TURNUser:          first(opts.TURNUser, os.Getenv("TURN_USERNAME"), file.TURNUser, DefaultTURNUser),
		TURNPass:          first(opts.TURNPass, os.Getenv("TURN_PASSWORD"), file.TURNPass, DefaultTURNPass),
		ForceRelay:        opts.ForceRelay || forceRelay || file.ForceRelay,
		DownloadDir:       first(file.DownloadDir, "."),
		ClipboardInterval: file.ClipboardInterval,
		Transfer: transfer.Options{
			ChunkSize:     file.Transfer.ChunkSize,
			HighWaterMark: file.Transfer.HighWaterMark,
			LowWaterMark:  file.Transfer.LowWaterMark,
		},
	}
	if cfg.ClipboardInterval <= 0 {
		cfg.ClipboardInterval = DefaultClipboardInterval
	}
	cfg.WebSocketURL = first(opts.RelayURL, os.Getenv("RELAY_URL"), file.RelayURL, fmt.Sprintf("wss://%s/ws", cfg.Domain))

	if err := cfg.Transfer.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (File, error) {
	var file File
	if path == "" {
		return file, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return file, nil
		}
		return file, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config %s: %w", path, err)
	}
	return file, nil
}

func envBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
