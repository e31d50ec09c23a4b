package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sparrowvision/internal/connector"
)

// PlatformConfig is the YAML shape of one platform's credentials.
type PlatformConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	OrgID     string `yaml:"org_id"`
	Domain    string `yaml:"domain"`
	BaseURL   string `yaml:"base_url"`
}

// FileConfig is the svctl YAML config file.
type FileConfig struct {
	Platforms map[string]PlatformConfig `yaml:"platforms"`
	Defaults  struct {
		PageSize       int `yaml:"page_size"`
		TimeoutSeconds int `yaml:"timeout_seconds"`
		RiskThreshold  int `yaml:"risk_threshold"`
		InactiveDays   int `yaml:"inactive_days"`
	} `yaml:"defaults"`
}

// riskThreshold returns the configured high-risk cutoff.
func (fc *FileConfig) riskThreshold() int {
	if fc.Defaults.RiskThreshold > 0 {
		return fc.Defaults.RiskThreshold
	}
	return 70
}

func (fc *FileConfig) inactiveDays() int {
	if fc.Defaults.InactiveDays > 0 {
		return fc.Defaults.InactiveDays
	}
	return 90
}

// connectorConfig builds the connector config for one platform from the
// file, returning an error when the platform has no entry.
func (fc *FileConfig) connectorConfig(platform string) (connector.Config, error) {
	pc, ok := fc.Platforms[platform]
	if !ok {
		return connector.Config{}, fmt.Errorf("no credentials for %q in config file", platform)
	}
	return connector.Config{
		APIKey:    pc.APIKey,
		APISecret: pc.APISecret,
		OrgID:     pc.OrgID,
		Domain:    pc.Domain,
		BaseURL:   pc.BaseURL,
		PageSize:  fc.Defaults.PageSize,
		Timeout:   time.Duration(fc.Defaults.TimeoutSeconds) * time.Second,
	}, nil
}

// loadConfig reads the YAML config from --config or the default location.
func loadConfig() (*FileConfig, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot locate home directory: %w", err)
		}
		path = filepath.Join(home, ".sparrowvision.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return &fc, nil
}
