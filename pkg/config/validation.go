package config

import "fmt"

// validate checks the loaded configuration for internally-consistent,
// usable values. It does not re-check keys that already have safe
// defaults applied by viper unless an explicit zero value would be
// dangerous (e.g. a UDP port of 0).
func validate(cfg *Config) error {
	if cfg.General.UDPPort <= 0 || cfg.General.UDPPort > 65535 {
		return fmt.Errorf("general.udp_port must be between 1 and 65535")
	}
	if cfg.General.HousekeepingMinutes <= 0 {
		return fmt.Errorf("general.housekeeping_minutes must be positive")
	}
	if len(cfg.Security.Password) > 120 {
		return fmt.Errorf("security.password must be at most 120 bytes")
	}

	if cfg.Web.Enabled && (cfg.Web.Port <= 0 || cfg.Web.Port > 65535) {
		return fmt.Errorf("web.port must be between 1 and 65535")
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enabled is true")
	}
	if cfg.RadioID.Enabled && cfg.RadioID.SyncHours <= 0 {
		return fmt.Errorf("radioid.sync_hours must be positive when radioid.enabled is true")
	}

	return nil
}
