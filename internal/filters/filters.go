/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package filters parses requested audio effect strings and compiles them into
// ffmpeg filter expressions with a canonical signature for cache keying.
package filters

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Effect is one resolved, validated effect with an optional numeric parameter.
type Effect struct {
	Name     string
	Value    float64
	HasValue bool
}

// definition describes a known effect and its parameter bounds.
type definition struct {
	def      float64
	min      float64
	max      float64
	takesArg bool
	compile  func(v float64) string
}

// known maps effect tokens to their ffmpeg filter expressions.
var known = map[string]definition{
	"bass": {def: 5, min: -20, max: 20, takesArg: true, compile: func(v float64) string {
		return fmt.Sprintf("bass=g=%g", v)
	}},
	"treble": {def: 5, min: -20, max: 20, takesArg: true, compile: func(v float64) string {
		return fmt.Sprintf("treble=g=%g", v)
	}},
	"speed": {def: 1.25, min: 0.5, max: 2, takesArg: true, compile: func(v float64) string {
		return fmt.Sprintf("atempo=%g", v)
	}},
	"pitch": {def: 1.25, min: 0.5, max: 2, takesArg: true, compile: func(v float64) string {
		return fmt.Sprintf("asetrate=44100*%g,aresample=44100", v)
	}},
	"nightcore": {compile: func(float64) string {
		return "asetrate=44100*1.25,aresample=44100,atempo=1.06"
	}},
	"vaporwave": {compile: func(float64) string {
		return "asetrate=44100*0.8,aresample=44100,atempo=1.1"
	}},
	"tremolo": {def: 5, min: 0.1, max: 20, takesArg: true, compile: func(v float64) string {
		return fmt.Sprintf("tremolo=f=%g:d=0.8", v)
	}},
	"vibrato": {def: 5, min: 0.1, max: 20, takesArg: true, compile: func(v float64) string {
		return fmt.Sprintf("vibrato=f=%g:d=0.5", v)
	}},
	"echo": {compile: func(float64) string {
		return "aecho=0.8:0.9:500:0.3"
	}},
	"reverse": {compile: func(float64) string {
		return "areverse"
	}},
	"mono": {compile: func(float64) string {
		return "pan=mono|c0=0.5*c0+0.5*c1"
	}},
	"soft": {compile: func(float64) string {
		return "lowpass=f=3000"
	}},
}

// Parse turns a comma separated filter string into validated effects.
// Unknown tokens and out-of-range parameter values are dropped, never an error.
func Parse(raw string) []Effect {
	var effects []Effect
	seen := make(map[string]bool)

	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(strings.ToLower(token))
		if token == "" {
			continue
		}

		name := token
		valueStr := ""
		if idx := strings.IndexByte(token, '='); idx >= 0 {
			name = strings.TrimSpace(token[:idx])
			valueStr = strings.TrimSpace(token[idx+1:])
		}

		def, ok := known[name]
		if !ok || seen[name] {
			continue
		}

		effect := Effect{Name: name}
		if def.takesArg {
			effect.Value = def.def
			effect.HasValue = true
			if valueStr != "" {
				parsed, err := strconv.ParseFloat(valueStr, 64)
				if err != nil || parsed < def.min || parsed > def.max {
					// Out-of-range or malformed values drop the token.
					continue
				}
				effect.Value = parsed
			}
		}

		seen[name] = true
		effects = append(effects, effect)
	}

	// Canonical order: the same effect set always compiles to the same chain
	// and cache signature.
	sort.Slice(effects, func(i, j int) bool { return effects[i].Name < effects[j].Name })
	return effects
}

// Signature returns the canonical representation of an effect list, used as
// part of the render cache key. Equal effect lists always yield equal
// signatures regardless of input spacing or casing.
func Signature(effects []Effect) string {
	if len(effects) == 0 {
		return ""
	}
	parts := make([]string, 0, len(effects))
	for _, e := range effects {
		if e.HasValue {
			parts = append(parts, fmt.Sprintf("%s=%g", e.Name, e.Value))
		} else {
			parts = append(parts, e.Name)
		}
	}
	return strings.Join(parts, ",")
}

// Compile builds the ffmpeg -af argument for the effect list. Returns an empty
// string when no effects apply.
func Compile(effects []Effect) string {
	if len(effects) == 0 {
		return ""
	}
	parts := make([]string, 0, len(effects))
	for _, e := range effects {
		def, ok := known[e.Name]
		if !ok {
			continue
		}
		parts = append(parts, def.compile(e.Value))
	}
	return strings.Join(parts, ",")
}

// Known reports whether the token names a supported effect.
func Known(name string) bool {
	_, ok := known[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
