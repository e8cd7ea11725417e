package internal

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TrustSource is one trust material source entry from the YAML config.
type TrustSource struct {
	Path string `yaml:"path"`
}

// IdentitySource names the certificate and key files for one identity. Key
// may be omitted for combined files holding both in one PEM.
type IdentitySource struct {
	Certificate string `yaml:"certificate"`
	Key         string `yaml:"key,omitempty"`
}

// SourcesConfig is the YAML configuration for recurring load jobs: a list of
// trust sources, whether to merge the embedded Mozilla bundle, and an
// optional identity.
type SourcesConfig struct {
	Trust               []TrustSource   `yaml:"trust"`
	IncludeMozillaRoots bool            `yaml:"includeMozillaRoots,omitempty"`
	Identity            *IdentitySource `yaml:"identity,omitempty"`
}

// LoadSourcesConfig loads a sources configuration from the specified YAML file.
func LoadSourcesConfig(path string) (*SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SourcesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing sources config %s: %w", path, err)
	}

	for i, src := range cfg.Trust {
		if src.Path == "" {
			return nil, fmt.Errorf("trust source %d has no path", i)
		}
	}
	if cfg.Identity != nil && cfg.Identity.Certificate == "" {
		return nil, errors.New("identity entry has no certificate path")
	}
	return &cfg, nil
}
