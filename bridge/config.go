package bridge

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/iperfkw/iperf3"
)

// Defaults for the bridge listener. 8270 is the conventional remote
// keyword server port.
const (
	DefaultAddress = "0.0.0.0"
	DefaultPort    = 8270
)

// Config matches the optional iperfkw YAML config file. Command line
// flags take precedence over file values.
type Config struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Iperf3  string `yaml:"iperf3"`
}

// LoadConfig reads the config file, filling in defaults for anything it
// does not set. A missing file yields pure defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Iperf3 == "" {
		cfg.Iperf3 = iperf3.DefaultExecutable
	}
	return cfg, nil
}
