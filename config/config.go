// Package config loads the optional operator configuration file.
// Policy constants (soft-limit buffer, window size, pulse ceiling)
// are fixed in code and deliberately absent here.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"rigctl/rig"
	"rigctl/script"
	"rigctl/sim"
)

// Config is the rigctl.toml schema.
type Config struct {
	// Device pins the serial device; empty means discover.
	Device string `toml:"device"`

	Baud int `toml:"baud"`

	// VendorHints rank matching port names first during discovery.
	VendorHints []string `toml:"vendor_hints"`

	// InitialZ is the session-start z position in mm.
	InitialZ float64 `toml:"initial_z"`

	// APIAddr is the bind address for the collaborator API.
	APIAddr string `toml:"api_addr"`

	// Dialect selects the script grammar ("standard" or "trap").
	Dialect string `toml:"dialect"`
}

// Default is the configuration used when no file exists.
func Default() Config {
	return Config{
		Baud:     rig.DefaultBaud,
		InitialZ: sim.DefaultZ,
		APIAddr:  ":9091",
		Dialect:  script.Standard.Name,
	}
}

// Load reads path over the defaults. A missing file yields pure
// defaults; a present but invalid file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that would make the session unusable.
func (c Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.InitialZ > sim.ZBuffer {
		return fmt.Errorf("initial_z %.1f is past the soft limit %.1f", c.InitialZ, sim.ZBuffer)
	}
	if _, err := script.DialectByName(c.Dialect); err != nil {
		return err
	}
	if c.APIAddr == "" {
		return fmt.Errorf("api_addr must not be empty")
	}
	return nil
}
