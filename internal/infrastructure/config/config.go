package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the contents of the bridge's config.yaml.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	PipeWire  PipeWireConfig  `yaml:"pipewire"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// PipeWireConfig contains settings for the PipeWire bridge.
type PipeWireConfig struct {
	// Remote is the server socket: a name in the runtime directory, an
	// absolute path, or a unix:// URL. Empty uses PIPEWIRE_REMOTE, then
	// "pipewire-0".
	Remote string `yaml:"remote"`

	// ClientName is announced to the server as application.name.
	// Default: "graylogic-audio"
	ClientName string `yaml:"client_name"`

	// ConnectTimeout bounds dial plus handshake.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// SyncTimeout bounds one sync barrier wait. Zero waits indefinitely.
	// Default: 0
	SyncTimeout time.Duration `yaml:"sync_timeout"`

	// Properties are extra client properties announced on connect.
	Properties map[string]string `yaml:"properties,omitempty"`
}

// DeviceConfig declares one audio device facade.
type DeviceConfig struct {
	// ID is the stable identifier used in topics and API paths.
	ID string `yaml:"id"`

	// NodeID is the PipeWire global id of the target node.
	// Omit for the system default device.
	NodeID *uint32 `yaml:"node_id,omitempty"`

	// Type is "input", "output" or "duplex".
	// Default: "duplex"
	Type string `yaml:"type"`

	// ObjectSerial optionally pins the node by its object.serial.
	ObjectSerial *string `yaml:"object_serial,omitempty"`

	// StreamName is the default name for streams created on the device.
	StreamName string `yaml:"stream_name,omitempty"`

	// StreamProperties are default properties for streams created on the device.
	StreamProperties map[string]string `yaml:"stream_properties,omitempty"`
}

// MonitorConfig contains device monitor settings.
type MonitorConfig struct {
	// Enabled turns periodic probing on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Interval is the time between probe rounds.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`

	// HistoryRetention is how long node snapshots are kept.
	// Default: 720h (30 days)
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// AccessTokenTTL is the token lifetime in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`

	// Clients maps API client ids to their shared secrets. A client exchanges
	// its secret for an access token at POST /api/v1/auth/token.
	Clients map[string]string `yaml:"clients,omitempty"`
}

// validDeviceTypes mirrors the device package's accepted types.
var validDeviceTypes = map[string]bool{
	"":       true,
	"input":  true,
	"output": true,
	"duplex": true,
}

// Load reads path over the defaults, applies GRAYLOGIC_* environment
// overrides and validates the result.
//
// Returns:
//   - *Config: Validated configuration
//   - error: A read, parse, override or validation failure
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
// Environment overrides are not applied.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		PipeWire: PipeWireConfig{
			ClientName:     "graylogic-audio",
			ConnectTimeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			Enabled:          true,
			Interval:         30 * time.Second,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-audio.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-audio",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// stringOverrides lists the GRAYLOGIC_* variables that replace a string field.
var stringOverrides = []struct {
	env   string
	field func(*Config) *string
}{
	{"GRAYLOGIC_PIPEWIRE_REMOTE", func(c *Config) *string { return &c.PipeWire.Remote }},
	{"GRAYLOGIC_PIPEWIRE_CLIENT_NAME", func(c *Config) *string { return &c.PipeWire.ClientName }},
	{"GRAYLOGIC_DATABASE_PATH", func(c *Config) *string { return &c.Database.Path }},
	{"GRAYLOGIC_MQTT_HOST", func(c *Config) *string { return &c.MQTT.Broker.Host }},
	{"GRAYLOGIC_MQTT_USERNAME", func(c *Config) *string { return &c.MQTT.Auth.Username }},
	{"GRAYLOGIC_MQTT_PASSWORD", func(c *Config) *string { return &c.MQTT.Auth.Password }},
	{"GRAYLOGIC_API_HOST", func(c *Config) *string { return &c.API.Host }},
	{"GRAYLOGIC_INFLUXDB_URL", func(c *Config) *string { return &c.InfluxDB.URL }},
	{"GRAYLOGIC_INFLUXDB_TOKEN", func(c *Config) *string { return &c.InfluxDB.Token }},
	// Always set in production.
	{"GRAYLOGIC_JWT_SECRET", func(c *Config) *string { return &c.Security.JWT.Secret }},
}

// durationOverrides lists the variables parsed with time.ParseDuration.
var durationOverrides = []struct {
	env   string
	field func(*Config) *time.Duration
}{
	{"GRAYLOGIC_PIPEWIRE_SYNC_TIMEOUT", func(c *Config) *time.Duration { return &c.PipeWire.SyncTimeout }},
	{"GRAYLOGIC_MONITOR_INTERVAL", func(c *Config) *time.Duration { return &c.Monitor.Interval }},
}

// applyEnvOverrides copies non-empty GRAYLOGIC_* variables into cfg.
func applyEnvOverrides(cfg *Config) error {
	for _, o := range stringOverrides {
		if v := os.Getenv(o.env); v != "" {
			*o.field(cfg) = v
		}
	}
	for _, o := range durationOverrides {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
		*o.field(cfg) = d
	}
	return nil
}

// Validate reports every problem found in c as one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// PipeWire validation
	if c.PipeWire.ConnectTimeout < 0 {
		errs = append(errs, "pipewire.connect_timeout must not be negative")
	}
	if c.PipeWire.SyncTimeout < 0 {
		errs = append(errs, "pipewire.sync_timeout must not be negative")
	}

	// Device validation
	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case strings.TrimSpace(d.ID) == "":
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
		case seen[d.ID]:
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, d.ID))
		default:
			seen[d.ID] = true
		}
		if !validDeviceTypes[strings.ToLower(d.Type)] {
			errs = append(errs, fmt.Sprintf("devices[%d].type %q must be input, output, or duplex", i, d.Type))
		}
	}

	// Monitor validation
	if c.Monitor.Enabled && c.Monitor.Interval < time.Second {
		errs = append(errs, "monitor.interval must be at least 1s")
	}
	if c.Monitor.HistoryRetention < 0 {
		errs = append(errs, "monitor.history_retention must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The JWT secret signs API tokens, so it is only required when the API is served.
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the keep-alive timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

// StreamPropertyBytes returns the device's stream properties as raw values.
func (d DeviceConfig) StreamPropertyBytes() map[string][]byte {
	if len(d.StreamProperties) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(d.StreamProperties))
	for k, v := range d.StreamProperties {
		out[k] = []byte(v)
	}
	return out
}
