package journal

import "time"

// Config controls journal retention.
type Config struct {
	Enabled             bool          `mapstructure:"enabled"`
	Retention           time.Duration `mapstructure:"retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DefaultConfig keeps ninety days of activity, swept hourly.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Retention:           90 * 24 * time.Hour,
		MaintenanceInterval: time.Hour,
	}
}
