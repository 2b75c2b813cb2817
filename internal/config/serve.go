package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Config
	Listen          string
	ShutdownTimeout time.Duration
	// Persist stores verified authorizations before relaying them.
	Persist bool
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	v.SetDefault("listen", ":8080")
	v.SetDefault("shutdown-timeout", 10*time.Second)
	v.SetDefault("persist", true)

	cfg := ServeConfig{
		Config:          fromViper(v),
		Listen:          v.GetString("listen"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		Persist:         v.GetBool("persist"),
	}
	if err := cfg.Validate(); err != nil {
		return ServeConfig{}, err
	}
	return cfg, nil
}
