// Copyright 2024-2026 Aiku AI

package relay

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// IRCConfig is the IRC engine's configuration surface.
type IRCConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Nickname string `yaml:"nickname"`
	RealName string `yaml:"realname"`
	Channel  string `yaml:"channel"`
	// NickServPassword, if set, is sent to NickServ as an IDENTIFY
	// command after registration and before joining the channel.
	NickServPassword string `yaml:"nickserv_password"`
	// SilenceTimeoutSeconds is how long the wire may stay silent before
	// the connection is abandoned and reopened.
	SilenceTimeoutSeconds int `yaml:"silence_timeout_seconds"`
}

// Addr returns the host:port dial address.
func (c IRCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// MatrixConfig is the Matrix engine's configuration surface. Either
// AccessToken or Password must be set.
type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
	Password    string `yaml:"password"`
	RoomID      string `yaml:"room_id"`
}

// Config is the full process configuration.
type Config struct {
	IRC     IRCConfig         `yaml:"irc"`
	Matrix  MatrixConfig      `yaml:"matrix"`
	Logging zeroconfig.Config `yaml:"logging"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess applies defaults and validates required fields.
func (c *Config) PostProcess() error {
	if c.IRC.Server == "" {
		return fmt.Errorf("config: irc.server is required")
	}
	if c.IRC.Nickname == "" {
		return fmt.Errorf("config: irc.nickname is required")
	}
	if c.IRC.Channel == "" {
		return fmt.Errorf("config: irc.channel is required")
	}
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("config: matrix.homeserver is required")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("config: matrix.user_id is required")
	}
	if c.Matrix.RoomID == "" {
		return fmt.Errorf("config: matrix.room_id is required")
	}
	if c.Matrix.AccessToken == "" && c.Matrix.Password == "" {
		return fmt.Errorf("config: one of matrix.access_token or matrix.password is required")
	}
	if !strings.HasPrefix(c.IRC.Channel, "#") {
		c.IRC.Channel = "#" + c.IRC.Channel
	}
	if c.IRC.Port == 0 {
		if c.IRC.TLS {
			c.IRC.Port = 6697
		} else {
			c.IRC.Port = 6667
		}
	}
	if c.IRC.RealName == "" {
		c.IRC.RealName = c.IRC.Nickname
	}
	if c.IRC.SilenceTimeoutSeconds == 0 {
		c.IRC.SilenceTimeoutSeconds = 200
	}
	return nil
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
