// Package config reads process settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Log struct {
	Level       string `env:"LOBBY_LOG_LEVEL" envDefault:"info"`
	Format      string `env:"LOBBY_LOG_FORMAT" envDefault:"console"`
	Development bool   `env:"LOBBY_LOG_DEVELOPMENT" envDefault:"false"`
}

func (l Log) Validate() error {
	switch l.Format {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("LOBBY_LOG_FORMAT must be json or console, got %q", l.Format)
}

// Server configures the directory and relay daemon.
type Server struct {
	Addr            string        `env:"LOBBY_ADDR" envDefault:":8080"`
	LobbyTTL        time.Duration `env:"LOBBY_TTL" envDefault:"30s"`
	RelayTTL        time.Duration `env:"LOBBY_RELAY_TTL" envDefault:"1m"`
	RatePerSecond   float64       `env:"LOBBY_RATE_PER_SECOND" envDefault:"5"`
	RateBurst       int           `env:"LOBBY_RATE_BURST" envDefault:"10"`
	PostgresDSN     string        `env:"LOBBY_POSTGRES_DSN"`
	ShutdownTimeout time.Duration `env:"LOBBY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Log             Log
}

func (s Server) Validate() error {
	var errs error
	if s.Addr == "" {
		errs = multierr.Append(errs, errors.New("LOBBY_ADDR is required"))
	}
	if s.LobbyTTL <= 0 {
		errs = multierr.Append(errs, errors.New("LOBBY_TTL must be positive"))
	}
	if s.RelayTTL <= 0 {
		errs = multierr.Append(errs, errors.New("LOBBY_RELAY_TTL must be positive"))
	}
	if s.RatePerSecond <= 0 || s.RateBurst <= 0 {
		errs = multierr.Append(errs, errors.New("LOBBY_RATE_PER_SECOND and LOBBY_RATE_BURST must be positive"))
	}
	return multierr.Append(errs, s.Log.Validate())
}

// Client configures the interactive participant.
type Client struct {
	DirectoryURL      string        `env:"LOBBY_DIRECTORY_URL" envDefault:"http://localhost:8080"`
	RelayURL          string        `env:"LOBBY_RELAY_URL"`
	PlayerID          string        `env:"LOBBY_PLAYER_ID"`
	HeartbeatInterval time.Duration `env:"LOBBY_HEARTBEAT_INTERVAL" envDefault:"15s"`
	PollInterval      time.Duration `env:"LOBBY_POLL_INTERVAL" envDefault:"1100ms"`
	TickRate          time.Duration `env:"LOBBY_TICK_RATE" envDefault:"100ms"`
	RequestTimeout    time.Duration `env:"LOBBY_REQUEST_TIMEOUT" envDefault:"10s"`
	NameFile          string        `env:"LOBBY_NAME_FILE" envDefault:"lobby-name.yaml"`
	Presenter         string        `env:"LOBBY_PRESENTER" envDefault:"text"`
	Log               Log
}

// RelayBase is the relay service URL, which defaults to the directory's.
func (c Client) RelayBase() string {
	if c.RelayURL != "" {
		return c.RelayURL
	}
	return c.DirectoryURL
}

func (c Client) Validate() error {
	var errs error
	for name, raw := range map[string]string{"LOBBY_DIRECTORY_URL": c.DirectoryURL, "LOBBY_RELAY_URL": c.RelayBase()} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.HeartbeatInterval <= 0 || c.PollInterval <= 0 || c.TickRate <= 0 {
		errs = multierr.Append(errs, errors.New("heartbeat, poll and tick intervals must be positive"))
	}
	if c.TickRate > c.PollInterval {
		errs = multierr.Append(errs, errors.New("LOBBY_TICK_RATE must not exceed LOBBY_POLL_INTERVAL"))
	}
	if c.NameFile == "" {
		errs = multierr.Append(errs, errors.New("LOBBY_NAME_FILE is required"))
	}
	if c.Presenter != "text" && c.Presenter != "log" {
		errs = multierr.Append(errs, fmt.Errorf("LOBBY_PRESENTER must be text or log, got %q", c.Presenter))
	}
	return multierr.Append(errs, c.Log.Validate())
}

// LoadServer reads files (default .env) then the environment.
func LoadServer(files ...string) (Server, error) {
	var cfg Server
	if err := load(&cfg, files); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

func LoadClient(files ...string) (Client, error) {
	var cfg Client
	if err := load(&cfg, files); err != nil {
		return Client{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Client{}, fmt.Errorf("invalid client config: %w", err)
	}
	return cfg, nil
}

func load(target any, files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// Variables already in the environment win over the file.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
