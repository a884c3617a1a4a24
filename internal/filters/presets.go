/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package filters

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Presets maps short preset names to full filter strings, loaded from an
// operator supplied YAML file.
type Presets struct {
	mu      sync.RWMutex
	entries map[string]string
}

type presetFile struct {
	Presets map[string]string `yaml:"presets"`
}

// LoadPresets reads a preset file. A missing path returns an empty preset set.
func LoadPresets(path string) (*Presets, error) {
	p := &Presets{entries: make(map[string]string)}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse preset file: %w", err)
	}

	for name, value := range file.Presets {
		p.entries[strings.ToLower(strings.TrimSpace(name))] = value
	}
	return p, nil
}

// Resolve expands preset names inside a filter string. Tokens that are not
// presets pass through unchanged for regular parsing.
func (p *Presets) Resolve(raw string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.entries) == 0 {
		return raw
	}

	var out []string
	for _, token := range strings.Split(raw, ",") {
		key := strings.ToLower(strings.TrimSpace(token))
		if expansion, ok := p.entries[key]; ok {
			out = append(out, expansion)
			continue
		}
		out = append(out, token)
	}
	return strings.Join(out, ",")
}
