// Package config provides loading of execution profiles.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/flowprobe/pkg/models"
	"gopkg.in/yaml.v3"
)

var ErrInvalidProfile = errors.New("invalid execution profile")

// ProfileFile is the structure of an execution profile YAML file.
type ProfileFile struct {
	Execution models.ExecutionConfig `yaml:"execution"`
}

// LoadProfile loads an execution config from a YAML file and fills the defaults.
func LoadProfile(path string) (*models.ExecutionConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	return ParseProfile(data)
}

// ParseProfile decodes profile YAML. Unknown keys are rejected.
func ParseProfile(data []byte) (*models.ExecutionConfig, error) {
	var file ProfileFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML profile: %w", err)
	}

	cfg := file.Execution
	cfg.ApplyDefaults()

	if err := ValidateProfile(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadProfileOrDefault loads path when it is set and falls back to the
// default config otherwise. baseURL, when set, overrides the profile's.
func LoadProfileOrDefault(path, baseURL string) (*models.ExecutionConfig, error) {
	cfg := models.DefaultExecutionConfig()

	if path != "" {
		loaded, err := LoadProfile(path)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return cfg, nil
}

// ValidateProfile checks the auth settings and limits of cfg.
func ValidateProfile(cfg *models.ExecutionConfig) error {
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requestsPerSecond must not be negative", ErrInvalidProfile)
	}

	if cfg.Auth == nil {
		return nil
	}

	switch cfg.Auth.Type {
	case models.AuthNone, "":
	case models.AuthBearer:
		if cfg.Auth.Value == "" {
			return fmt.Errorf("%w: bearer auth needs a value", ErrInvalidProfile)
		}
	case models.AuthBasic:
		if cfg.Auth.Username == "" {
			return fmt.Errorf("%w: basic auth needs a username", ErrInvalidProfile)
		}
	case models.AuthAPIKey:
		if cfg.Auth.Value == "" || cfg.Auth.HeaderName == "" {
			return fmt.Errorf("%w: api key auth needs a header name and a value", ErrInvalidProfile)
		}
	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrInvalidProfile, cfg.Auth.Type)
	}

	return nil
}
