// Package config loads configuration files written in JSON or YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration file cannot be decoded.
var ErrInvalidConfig = errors.New("invalid configuration file")

// Format of a configuration file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from the file extension. Anything but .yaml and .yml is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads the file at path and decodes it into target.
func Load(path string, target any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Decode(data, FormatOf(path), target)
}

// Decode decodes data in the given format into target.
func Decode(data []byte, format Format, target any) error {
	var err error

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, target)
	case FormatJSON:
		err = json.Unmarshal(data, target)
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}
