package rom

import "time"

const defaultPrefix = "rom"

// Config holds the settings codecs and queries consult. It is passed in
// explicitly; DefaultConfig only exists for callers that do not care.
type Config struct {
	// Prefix is the reserved key prefix. Every key rom writes starts with
	// Prefix + "|", and nothing else may use keys under it.
	Prefix string

	// StrictUTF8 makes string fields reject input that is not valid UTF-8.
	StrictUTF8 bool

	// Location is the time zone DateTime values are decoded into. Nil means UTC.
	Location *time.Location
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Prefix:   defaultPrefix,
		Location: time.UTC,
	}
}

func (cfg *Config) withDefaults() *Config {
	c := *cfg
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return &c
}

func (cfg *Config) location() *time.Location {
	if cfg == nil || cfg.Location == nil {
		return time.UTC
	}
	return cfg.Location
}
