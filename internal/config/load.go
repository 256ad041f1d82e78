package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a source configuration file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath infers the configuration format from a file extension.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

// LoadSourceFile reads, merges, validates and compiles one source configuration file.
// The file name (without extension) names the source when message_type is not set.
func LoadSourceFile(path string) (*Source, error) {
	format, ok := FormatForPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported config file extension: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source config: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	src, err := ParseSource(data, format, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return src, nil
}

// ParseSource decodes a configuration over the preset for its message type, then compiles it.
// Fields absent from data keep their preset values; maps are merged key by key.
func ParseSource(data []byte, format Format, fallbackName string) (*Source, error) {
	var probe struct {
		MessageType string `json:"message_type" yaml:"message_type"`
	}
	if err := decode(data, format, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	messageType := probe.MessageType
	if messageType == "" {
		messageType = fallbackName
	}

	cfg := PresetFor(messageType)
	if err := decode(data, format, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.MessageType = messageType
	return cfg.Compile()
}

func decode(data []byte, format Format, out any) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, out)
	case FormatYAML:
		return yaml.Unmarshal(data, out)
	}
	return fmt.Errorf("unknown config format %q", format)
}
