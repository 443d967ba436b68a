package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Universe is the symbol list a scheduled scan covers when the caller
// supplies none.
type Universe struct {
	Symbols []string `yaml:"symbols"`
}

// LoadUniverse reads a YAML universe file. Symbols are upper-cased and
// de-duplicated, preserving first-seen order.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse universe file: %w", err)
	}

	seen := make(map[string]bool)
	deduped := make([]string, 0, len(u.Symbols))
	for _, s := range u.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		deduped = append(deduped, s)
	}
	u.Symbols = deduped

	if len(u.Symbols) == 0 {
		return nil, fmt.Errorf("universe file %s contains no symbols", path)
	}

	return &u, nil
}

// ResolveSymbols returns the symbol list a scan should cover: explicit
// env symbols win, then the universe file, then an error.
func (c *Config) ResolveSymbols() ([]string, error) {
	if len(c.Scan.Symbols) > 0 {
		return c.Scan.Symbols, nil
	}
	if c.Scan.UniverseFile != "" {
		u, err := LoadUniverse(c.Scan.UniverseFile)
		if err != nil {
			return nil, err
		}
		return u.Symbols, nil
	}
	return nil, fmt.Errorf("no symbols configured: set SCAN_SYMBOLS or UNIVERSE_FILE")
}
