package fleet

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultPollInterval applies when neither the fleet file nor the caller
// sets one.
const defaultPollInterval = 15 * time.Second

// Config describes the printer fleet, normally loaded from fleet.yaml.
type Config struct {
	PollInterval time.Duration   `yaml:"poll_interval"`
	Printers     []PrinterConfig `yaml:"printers"`
}

// PrinterConfig is one printer entry in the fleet file.
type PrinterConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Model   string `yaml:"model,omitempty"`
	Address string `yaml:"address"` // host:port of the printer's status API
}

// LoadConfig reads and validates a fleet file. A missing file is not an
// error: the server then runs with an empty fleet and capacity pricing
// stays neutral. A zero PollInterval means "caller decides"; NewPoller
// falls back to a default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read fleet config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse fleet config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Printers))
	for i, p := range cfg.Printers {
		if p.ID == "" {
			return nil, fmt.Errorf("fleet config: printer %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("fleet config: duplicate printer id %q", p.ID)
		}
		seen[p.ID] = true
	}

	return &cfg, nil
}
