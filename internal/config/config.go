package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/microscope/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "microscope.json"

	// DefaultHost is the default bind host for the inspector and relay.
	DefaultHost = "localhost"

	// DefaultInspectorPort is the default inspector port.
	DefaultInspectorPort = 7411

	// DefaultRelayPort is the default relay port.
	DefaultRelayPort = 7412

	// DefaultHistoryLimit is the default history kept per store.
	DefaultHistoryLimit = 100

	// DefaultStorePath is the default SQLite database path.
	DefaultStorePath = ".microscope/store.db"
)

// ConfigFileNames lists the recognised file names in lookup order.
var ConfigFileNames = []string{
	ConfigFileName,
	"microscope.toml",
	"microscope.yaml",
	"microscope.yml",
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config represents the complete microscope configuration.
type Config struct {
	// Inspector contains devtools inspector server configuration.
	Inspector InspectorConfig `json:"inspector" toml:"inspector" yaml:"inspector"`

	// Relay contains sync relay server configuration.
	Relay RelayConfig `json:"relay" toml:"relay" yaml:"relay"`

	// Storage selects the backend used by the kv commands.
	Storage StorageConfig `json:"storage" toml:"storage" yaml:"storage"`

	// Log contains logging configuration.
	Log LogConfig `json:"log" toml:"log" yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// InspectorConfig contains inspector server settings.
type InspectorConfig struct {
	Host string `json:"host,omitempty" toml:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" toml:"port,omitempty" yaml:"port,omitempty"`

	// HistoryLimit bounds the writes kept per store.
	HistoryLimit int `json:"historyLimit,omitempty" toml:"historyLimit,omitempty" yaml:"historyLimit,omitempty"`
}

// RelayConfig contains relay server settings.
type RelayConfig struct {
	Host string `json:"host,omitempty" toml:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" toml:"port,omitempty" yaml:"port,omitempty"`
}

// StorageConfig selects and configures a storage backend.
type StorageConfig struct {
	// Backend is one of memory, sqlite or s3.
	Backend string `json:"backend,omitempty" toml:"backend,omitempty" yaml:"backend,omitempty"`

	// Path is the SQLite database file.
	Path string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"`

	// Bucket, Prefix, Region and Endpoint configure the S3 backend.
	// Endpoint is optional and enables path-style addressing.
	Bucket   string `json:"bucket,omitempty" toml:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" toml:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" toml:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `json:"level,omitempty" toml:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" toml:"format,omitempty" yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Inspector: InspectorConfig{
			Host:         DefaultHost,
			Port:         DefaultInspectorPort,
			HistoryLimit: DefaultHistoryLimit,
		},
		Relay: RelayConfig{
			Host: DefaultHost,
			Port: DefaultRelayPort,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    DefaultStorePath,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory, using the first
// file of ConfigFileNames that exists.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New(errors.CodeConfigInvalid).
		WithDetail("No microscope configuration found in " + dir).
		WithSuggestion("Create microscope.json or pass flags instead")
}

// LoadFile reads configuration from the specified file path. The format
// follows the extension: .toml, .yaml/.yml, anything else is JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	cfg := New()
	if err := unmarshal(path, data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func marshal(path string, cfg *Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Marshal(cfg)
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path in the format
// implied by its extension.
func (c *Config) SaveTo(path string) error {
	data, err := marshal(path, c)
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Inspector.Host == "" {
		c.Inspector.Host = DefaultHost
	}
	if c.Inspector.Port == 0 {
		c.Inspector.Port = DefaultInspectorPort
	}
	if c.Inspector.HistoryLimit == 0 {
		c.Inspector.HistoryLimit = DefaultHistoryLimit
	}
	if c.Relay.Host == "" {
		c.Relay.Host = DefaultHost
	}
	if c.Relay.Port == 0 {
		c.Relay.Port = DefaultRelayPort
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.Path == "" {
		c.Storage.Path = DefaultStorePath
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	for name, port := range map[string]int{"inspector": c.Inspector.Port, "relay": c.Relay.Port} {
		if port < 0 || port > 65535 {
			return errors.New(errors.CodeConfigInvalid).
				WithDetailf("%s port must be between 0 and 65535", name)
		}
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.Path == "" {
			return errors.New(errors.CodeConfigInvalid).WithDetail("storage.path is required for sqlite")
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.New(errors.CodeConfigInvalid).WithDetail("storage.bucket is required for s3")
		}
	default:
		return errors.New(errors.CodeConfigBackend).WithDetailf("backend %q", c.Storage.Backend)
	}
	return nil
}

// InspectorAddress returns the listen address of the inspector.
func (c *Config) InspectorAddress() string {
	return c.Inspector.Host + ":" + strconv.Itoa(c.Inspector.Port)
}

// InspectorURL returns the websocket URL processes connect to.
func (c *Config) InspectorURL() string {
	return "ws://" + c.InspectorAddress() + "/ws"
}

// RelayAddress returns the listen address of the relay.
func (c *Config) RelayAddress() string {
	return c.Relay.Host + ":" + strconv.Itoa(c.Relay.Port)
}

// RelayURL returns the websocket URL relay clients dial.
func (c *Config) RelayURL() string {
	return "ws://" + c.RelayAddress()
}

// StorePath returns the absolute path to the SQLite database.
func (c *Config) StorePath() string {
	path := c.Storage.Path
	if path == "" {
		path = DefaultStorePath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory holding a
// configuration file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigInvalid).
				WithDetail("No microscope configuration found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent that has one. Without any file it returns defaults
// rooted at the working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		cfg := New()
		cfg.configPath = filepath.Join(wd, ConfigFileName)
		return cfg, nil
	}

	return Load(root)
}
