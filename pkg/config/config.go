// Package config loads the server's INI-style configuration file,
// matching the /etc/dmrd.conf format of the reference implementation
// this relay is wire-compatible with: a handful of sections with
// simple key=value pairs, all optional, all defaulted.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// SecurityConfig holds the shared challenge-response password.
type SecurityConfig struct {
	Password string `mapstructure:"password"`
}

// GeneralConfig holds the core relay's runtime knobs.
type GeneralConfig struct {
	UDPPort             int `mapstructure:"udp_port"`
	HousekeepingMinutes int `mapstructure:"housekeeping_minutes"`
}

// DebugConfig holds the packet-tracing verbosity knob.
type DebugConfig struct {
	Level int `mapstructure:"level"`
}

// MetricsConfig controls the Prometheus exporter (A3).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// MQTTConfig controls the event publisher (A4).
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// WebConfig controls the status dashboard (A5).
type WebConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// RadioIDConfig controls the callsign directory sync (D1).
type RadioIDConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	DBPath    string `mapstructure:"db_path"`
	SyncHours int    `mapstructure:"sync_hours"`
}

// Config is the fully loaded, defaulted and validated configuration.
type Config struct {
	Security SecurityConfig `mapstructure:"security"`
	General  GeneralConfig  `mapstructure:"general"`
	Debug    DebugConfig    `mapstructure:"debug"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Web      WebConfig      `mapstructure:"web"`
	RadioID  RadioIDConfig  `mapstructure:"radioid"`
}

// Load reads configFile (INI format) if given, otherwise searches the
// working directory and /etc for "dmr-relay". A missing file is not
// an error: every key has a working default. Recognised environment
// variables are prefixed DMR_ (e.g. DMR_SECURITY_PASSWORD).
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("ini")
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dmr-relay")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc")
	}

	v.SetEnvPrefix("DMR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("security.password", "")
	v.SetDefault("general.udp_port", 62031)
	v.SetDefault("general.housekeeping_minutes", 1)
	v.SetDefault("debug.level", 0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.topic_prefix", "dmr/relay")
	v.SetDefault("mqtt.client_id", "dmr-relay")

	v.SetDefault("web.enabled", true)
	v.SetDefault("web.port", 8080)

	v.SetDefault("radioid.enabled", false)
	v.SetDefault("radioid.db_path", "radioid.db")
	v.SetDefault("radioid.sync_hours", 24)
}
