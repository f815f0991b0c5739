package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. TABLEBOT_WEB_ADDR.
const EnvPrefix = "TABLEBOT"

// Backend names accepted by the backend key.
const (
	BackendSim  = "sim"
	BackendEV3  = "ev3"
	BackendHTTP = "http"
)

// Config is the complete runtime configuration of the gadget.
type Config struct {
	Gadget  GadgetConfig `mapstructure:"gadget"`
	Backend string       `mapstructure:"backend"`
	HTTP    HTTPConfig   `mapstructure:"http"`
	EV3     EV3Config    `mapstructure:"ev3"`
	Web     WebConfig    `mapstructure:"web"`
	MQTT    MQTTConfig   `mapstructure:"mqtt"`
	Log     LogConfig    `mapstructure:"log"`
}

// GadgetConfig names the gadget and tunes the deliver sequence.
type GadgetConfig struct {
	Name  string        `mapstructure:"name"`
	Pause time.Duration `mapstructure:"pause"`
}

// Slug is the gadget name lower-cased with spaces replaced by dashes. It is
// used as the MQTT topic segment and default client ID.
func (g GadgetConfig) Slug() string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(g.Name), " ", "-"))
}

// HTTPConfig points the http backend at a gadget daemon.
type HTTPConfig struct {
	DaemonURL string `mapstructure:"daemon_url"`
}

// EV3Config selects the motors the ev3 backend binds to.
type EV3Config struct {
	// MotorDriver is the ev3dev driver name expected on both ports.
	MotorDriver string `mapstructure:"motor_driver"`
}

// WebConfig configures the HTTP/WebSocket server.
type WebConfig struct {
	Addr string `mapstructure:"addr"`
}

// MQTTConfig configures the optional MQTT directive link.
// An empty Broker disables the link.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Gadget: GadgetConfig{
			Name:  "TableBot",
			Pause: 4 * time.Second,
		},
		Backend: BackendSim,
		HTTP:    HTTPConfig{DaemonURL: DaemonURL(GadgetIP(DefaultGadgetIP))},
		EV3:     EV3Config{MotorDriver: DefaultMotorDriver},
		Web:     WebConfig{Addr: ":8080"},
		MQTT: MQTTConfig{
			TopicPrefix: "tablebot",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// AddFlags registers one flag per configuration key on fs. Flag names match
// viper keys so that BindPFlags maps them directly.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("gadget.name", d.Gadget.Name, "Friendly name announced to companions.")
	fs.Duration("gadget.pause", d.Gadget.Pause, "Pause after each motor step of a delivery.")
	fs.String("backend", d.Backend, "Actuator backend: sim, ev3 or http.")
	fs.String("http.daemon_url", d.HTTP.DaemonURL, "Gadget daemon URL for the http backend.")
	fs.String("ev3.motor_driver", d.EV3.MotorDriver, "ev3dev driver name of the motors for the ev3 backend.")
	fs.String("web.addr", d.Web.Addr, "Listen address of the HTTP/WebSocket server.")
	fs.String("mqtt.broker", d.MQTT.Broker, "MQTT broker URL (empty disables MQTT).")
	fs.String("mqtt.username", d.MQTT.Username, "MQTT username.")
	fs.String("mqtt.password", d.MQTT.Password, "MQTT password.")
	fs.String("mqtt.topic_prefix", d.MQTT.TopicPrefix, "MQTT topic prefix.")
	fs.String("mqtt.client_id", d.MQTT.ClientID, "MQTT client ID (defaults to the gadget name).")
	fs.String("log.level", d.Log.Level, "Log level: debug, info, warn, error.")
	fs.String("log.file", d.Log.File, "Optional rotated log file.")
	fs.Int("log.max_size_mb", d.Log.MaxSizeMB, "Rotate the log file after this many megabytes.")
	fs.Int("log.max_backups", d.Log.MaxBackups, "Rotated log files to keep.")
	fs.Int("log.max_age_days", d.Log.MaxAgeDays, "Days to keep rotated log files.")
}

// Load resolves the configuration: defaults, then the optional file at path,
// then TABLEBOT_* environment variables, then any flags set on fs.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.Gadget.Slug()
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("gadget.name", d.Gadget.Name)
	v.SetDefault("gadget.pause", d.Gadget.Pause)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("http.daemon_url", d.HTTP.DaemonURL)
	v.SetDefault("ev3.motor_driver", d.EV3.MotorDriver)
	v.SetDefault("web.addr", d.Web.Addr)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendSim, BackendEV3, BackendHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want sim, ev3 or http)", c.Backend))
	}

	if strings.TrimSpace(c.Gadget.Name) == "" {
		errs = append(errs, errors.New("gadget.name must not be empty"))
	}
	if c.Gadget.Pause < 0 {
		errs = append(errs, fmt.Errorf("gadget.pause must not be negative, got %s", c.Gadget.Pause))
	}

	if c.Backend == BackendHTTP {
		if _, err := url.ParseRequestURI(c.HTTP.DaemonURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid http.daemon_url: %w", err))
		}
	}
	if c.Backend == BackendEV3 && strings.TrimSpace(c.EV3.MotorDriver) == "" {
		errs = append(errs, errors.New("ev3.motor_driver must not be empty"))
	}

	if _, _, err := net.SplitHostPort(c.Web.Addr); err != nil {
		errs = append(errs, fmt.Errorf("invalid web.addr: %w", err))
	}

	if c.MQTT.Broker != "" {
		u, err := url.Parse(c.MQTT.Broker)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid mqtt.broker %q", c.MQTT.Broker))
		}
	}

	return errors.Join(errs...)
}
