package providers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"klok/internal/compliance/models"
)

// ApplyOverrides decodes YAML over cfg in place. Keys absent from the
// document keep cfg's value; lists are replaced wholesale. cfg must be a
// fresh value owned by the caller.
func ApplyOverrides(data []byte, cfg *models.JurisdictionConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return NewProviderError(ErrorConfig, cfg.Code, "decode overrides", err)
	}
	if err := cfg.Validate(); err != nil {
		return NewProviderError(ErrorConfig, cfg.Code, "invalid overrides", err)
	}
	return nil
}

// LoadOverrideFile applies <dir>/<code>.yaml to cfg when the file exists.
// It reports whether a file was applied.
func LoadOverrideFile(dir string, cfg *models.JurisdictionConfig) (bool, error) {
	if dir == "" {
		return false, nil
	}
	path := filepath.Join(dir, strings.ToLower(cfg.Code)+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := ApplyOverrides(data, cfg); err != nil {
		return false, err
	}
	return true, nil
}
