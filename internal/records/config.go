package records

// Config holds records plugin configuration.
type Config struct {
	Enabled        bool `mapstructure:"enabled"`
	DefaultPerPage int  `mapstructure:"default_per_page"`
	MaxPerPage     int  `mapstructure:"max_per_page"`
}

// DefaultConfig returns the default records configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DefaultPerPage: 50,
		MaxPerPage:     500,
	}
}
