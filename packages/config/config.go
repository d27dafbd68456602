// Package config loads webtask CLI profiles from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes a named session configuration.
type Profile struct {
	BaseURL        string            `yaml:"base_url"`
	TimeoutMs      int               `yaml:"timeout_ms"`
	Headers        map[string]string `yaml:"headers"`
	ValidateSSL    *bool             `yaml:"validate_ssl"`
	Proxy          string            `yaml:"proxy"`
	MaxAuthRetries int               `yaml:"max_auth_retries"`
	RateLimit      float64           `yaml:"rate_limit"`
	DownloadDir    string            `yaml:"download_dir"`
	HistoryDB      string            `yaml:"history_db"`
	Username       string            `yaml:"username"`
	Password       string            `yaml:"password"`
}

// File is the on-disk configuration: a default profile name plus a
// profile table.
type File struct {
	Default  string             `yaml:"default"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load reads and parses a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// Profile resolves a profile by name, falling back to the default when
// name is empty.
func (f *File) Profile(name string) (Profile, error) {
	if name == "" {
		name = f.Default
	}
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}

// Timeout returns the profile timeout, or 0 when unset.
func (p Profile) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// GetValidateSSL returns the SSL validation setting, defaulting to true.
func (p Profile) GetValidateSSL() bool {
	if p.ValidateSSL == nil {
		return true
	}
	return *p.ValidateSSL
}
