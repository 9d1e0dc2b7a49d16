// Package config loads server properties.
//
// Sources are applied in order, later ones override earlier ones:
// built-in defaults, a YAML file, MINIKV_* environment variables and
// finally overrides given by the caller (command line flags).
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"

	"minikv/datastruct/dict"
)

// EnvPrefix is the prefix of environment variables read by Load
const EnvPrefix = "MINIKV_"

// ServerProperties defines global config properties
type ServerProperties struct {
	Bind           string        `koanf:"bind"`
	Port           int           `koanf:"port"`
	Store          string        `koanf:"store"`
	Shards         int           `koanf:"shards"`
	OwnerQueueSize int           `koanf:"owner_queue_size"`
	MaxClients     int           `koanf:"maxclients"`
	RateLimit      int           `koanf:"rate_limit"`
	MetricsAddr    string        `koanf:"metrics_addr"`
	Log            LogProperties `koanf:"log"`
}

// LogProperties configures lib/logger
type LogProperties struct {
	Level      string `koanf:"level"`
	Path       string `koanf:"path"`
	Name       string `koanf:"name"`
	Stdout     bool   `koanf:"stdout"`
	MaxSize    int    `koanf:"max_size"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`
	Compress   bool   `koanf:"compress"`
}

// Properties holds global config properties
var Properties *ServerProperties

func init() {
	// default config
	Properties = Default()
}

// Default returns the built-in configuration
func Default() *ServerProperties {
	return &ServerProperties{
		Bind:  "localhost",
		Port:  6379,
		Store: dict.KindSharded,
		Log: LogProperties{
			Level:      "info",
			Name:       "minikv",
			Stdout:     true,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Address returns host:port to listen on
func (p *ServerProperties) Address() string {
	return net.JoinHostPort(p.Bind, strconv.Itoa(p.Port))
}

// Validate reports the first invalid property
func (p *ServerProperties) Validate() error {
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port %d", p.Port)
	}
	switch strings.ToLower(p.Store) {
	case "", dict.KindLocked, dict.KindSharded, dict.KindOwner:
	default:
		return fmt.Errorf("unknown store %q, want %s, %s or %s",
			p.Store, dict.KindSharded, dict.KindLocked, dict.KindOwner)
	}
	limits := map[string]int{
		"shards":           p.Shards,
		"owner_queue_size": p.OwnerQueueSize,
		"maxclients":       p.MaxClients,
		"rate_limit":       p.RateLimit,
	}
	for name, v := range limits {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	if _, err := log.ParseLevel(p.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Load reads configuration from configFile (skipped when empty), the
// environment and overrides, validates it and stores it in Properties.
// Override keys use the koanf names, e.g. "port" or "log.level".
func Load(configFile string, overrides map[string]any) (*ServerProperties, error) {
	k := koanf.New(".")
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	props := Default()
	if err := k.Unmarshal("", props); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}
	Properties = props
	return props, nil
}

// envKey maps MINIKV_RATE_LIMIT to rate_limit and MINIKV_LOG_MAX_SIZE to log.max_size
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(s, "log_"); ok {
		return "log." + rest
	}
	return s
}
