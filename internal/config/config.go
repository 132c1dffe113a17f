package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"retodo/internal/todo"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "todos.db"
	DefaultServerURL      = "http://localhost:5000"
	DefaultListen         = ":5000"
	// EnvConfigPath overrides the config location.
	EnvConfigPath = "RETODO_CONFIG"
)

type Keymap struct {
	Quit           string `toml:"quit"`
	Add            string `toml:"add"`
	Up             string `toml:"up"`
	Down           string `toml:"down"`
	Toggle         string `toml:"toggle"`
	Delete         string `toml:"delete"`
	Edit           string `toml:"edit"`
	Confirm        string `toml:"confirm"`
	Cancel         string `toml:"cancel"`
	NextField      string `toml:"next_field"`
	PrevField      string `toml:"prev_field"`
	StatusFilter   string `toml:"status_filter"`
	PriorityFilter string `toml:"priority_filter"`
	View           string `toml:"view"`
	Refresh        string `toml:"refresh"`
}

type Server struct {
	Listen string `toml:"listen"`
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver"`
	DBPath string `toml:"db_path"`
	DSN    string `toml:"dsn"`
}

type Config struct {
	ServerURL             string   `toml:"server_url"`
	RequestTimeout        Duration `toml:"request_timeout"`
	DefaultFilter         string   `toml:"default_filter"`
	DefaultPriorityFilter string   `toml:"default_priority_filter"`
	DefaultView           string   `toml:"default_view"`
	LogFile               string   `toml:"log_file"`
	LogLevel              string   `toml:"log_level"`
	Server                Server   `toml:"server"`
	Keys                  Keymap   `toml:"keys"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// ResolveConfigPath returns $RETODO_CONFIG, else config.toml under the user
// config dir, else config.toml in the working directory.
func ResolveConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, "retodo", DefaultConfigFileName)
}

// LoadOrCreate reads path, writing the defaults there first if it does not
// exist yet. Missing keys keep their default values.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig(filepath.Dir(path))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = filepath.Join(filepath.Dir(path), DefaultDBName)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects filter, view and driver names the app does not know.
func (c Config) Validate() error {
	if _, err := todo.ParseStatusFilter(c.DefaultFilter); err != nil {
		return err
	}
	if _, err := todo.ParsePriorityFilter(c.DefaultPriorityFilter); err != nil {
		return err
	}
	if _, err := todo.ParseViewMode(c.DefaultView); err != nil {
		return err
	}
	switch c.Server.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Server.DSN == "" {
			return errors.New("server.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown server.driver %q", c.Server.Driver)
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout must not be negative")
	}
	return nil
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig(dir string) Config {
	return Config{
		ServerURL:             DefaultServerURL,
		RequestTimeout:        Duration(10 * time.Second),
		DefaultFilter:         string(todo.StatusAll),
		DefaultPriorityFilter: string(todo.PriorityAll),
		DefaultView:           string(todo.ViewList),
		LogFile:               filepath.Join(dir, "retodo.log"),
		LogLevel:              "info",
		Server: Server{
			Listen: DefaultListen,
			Driver: "sqlite",
			DBPath: filepath.Join(dir, DefaultDBName),
		},
		Keys: Keymap{
			Quit:           "q",
			Add:            "a",
			Up:             "k",
			Down:           "j",
			Toggle:         " ",
			Delete:         "d",
			Edit:           "e",
			Confirm:        "enter",
			Cancel:         "esc",
			NextField:      "tab",
			PrevField:      "shift+tab",
			StatusFilter:   "f",
			PriorityFilter: "p",
			View:           "v",
			Refresh:        "r",
		},
	}
}
