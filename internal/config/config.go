// Package config loads bot settings from defaults, the environment (or a
// .env file) and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourusername/lhbot/pkg/protocol"
)

// Transports and policies understood by the bot.
var (
	Transports = []string{"mqtt", "redis", "ws", "memory"}
	Policies   = []string{"random", "first", "net", "deep", "lua"}
)

// Config holds every bot setting.
type Config struct {
	Transport   string
	BrokerURL   string
	RedisAddr   string
	RelayURL    string
	TopicPrefix string
	ClientID    string
	Secret      string
	Policy      string
	PolicyFile  string
	ReplyDelay  time.Duration
	APIAddr     string
	Archive     string
	LogLevel    string
	LogFormat   string
}

// Default returns the built-in settings. ClientID is freshly generated.
func Default() Config {
	return Config{
		Transport:   "mqtt",
		BrokerURL:   "wss://mqtt.eclipseprojects.io:443/mqtt",
		RedisAddr:   "localhost:6379",
		RelayURL:    "ws://localhost:8090/ws",
		TopicPrefix: protocol.DefaultPrefix,
		ClientID:    protocol.NewClientID(),
		Policy:      "random",
		ReplyDelay:  time.Second,
		LogLevel:    "info",
		LogFormat:   "console",
	}
}

// Load returns the defaults overlaid by envFile (if it exists) and then
// by the process environment.
func Load(envFile string) (Config, error) {
	cfg := Default()

	fileVals := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}
	if err := cfg.Apply(lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Apply overlays the values found by lookup.
func (c *Config) Apply(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LH_TRANSPORT":    &c.Transport,
		"LH_BROKER_URL":   &c.BrokerURL,
		"LH_REDIS_ADDR":   &c.RedisAddr,
		"LH_RELAY_URL":    &c.RelayURL,
		"LH_TOPIC_PREFIX": &c.TopicPrefix,
		"LH_CLIENT_ID":    &c.ClientID,
		"LH_SECRET":       &c.Secret,
		"LH_POLICY":       &c.Policy,
		"LH_POLICY_FILE":  &c.PolicyFile,
		"LH_API_ADDR":     &c.APIAddr,
		"LH_ARCHIVE":      &c.Archive,
		"LOG_LEVEL":       &c.LogLevel,
		"LOG_FORMAT":      &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("LH_REPLY_DELAY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LH_REPLY_DELAY: %w", err)
		}
		c.ReplyDelay = d
	}
	return nil
}

// RegisterFlags binds flags for every setting, using the current values
// as defaults.
func (c *Config) RegisterFlags(flags *flag.FlagSet) {
	flags.StringVar(&c.Transport, "transport", c.Transport, "Bus transport ("+strings.Join(Transports, "|")+")")
	flags.StringVar(&c.BrokerURL, "broker", c.BrokerURL, "MQTT broker URL")
	flags.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address")
	flags.StringVar(&c.RelayURL, "relay", c.RelayURL, "WebSocket relay URL")
	flags.StringVar(&c.TopicPrefix, "prefix", c.TopicPrefix, "Topic prefix")
	flags.StringVar(&c.ClientID, "id", c.ClientID, "Client id")
	flags.StringVar(&c.Secret, "secret", c.Secret, "Shared secret for message signatures")
	flags.StringVar(&c.Policy, "policy", c.Policy, "Decision policy ("+strings.Join(Policies, "|")+")")
	flags.StringVar(&c.PolicyFile, "policy-file", c.PolicyFile, "Weights or script for the policy")
	flags.DurationVar(&c.ReplyDelay, "delay", c.ReplyDelay, "Delay before answering a move")
	flags.StringVar(&c.APIAddr, "api", c.APIAddr, "Status API address (empty disables)")
	flags.StringVar(&c.Archive, "archive", c.Archive, "Game archive (file:<path> or postgres://...)")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (console|json)")
}

// Validate checks enumerated settings and required values.
func (c Config) Validate() error {
	if !contains(Transports, c.Transport) {
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if !contains(Policies, c.Policy) {
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if c.ClientID == "" {
		return errors.New("client id must not be empty")
	}
	if c.ReplyDelay < time.Second {
		return fmt.Errorf("reply delay %v is below the 1s minimum", c.ReplyDelay)
	}
	switch c.Policy {
	case "net", "deep", "lua":
		if c.PolicyFile == "" {
			return fmt.Errorf("policy %q needs a policy file", c.Policy)
		}
	}
	return nil
}

// JSONLogs reports whether logs should be JSON encoded.
func (c Config) JSONLogs() bool {
	return c.LogFormat == "json"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
