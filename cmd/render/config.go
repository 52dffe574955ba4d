package main

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"corebrowser/pkg/style"
)

// fixtureConfig is the embedder-facing config file cmd/render accepts via
// --config: viewport size, font paths, and a flat UA stylesheet (one tag
// per rule — this demo has no CSS selector parser to feed anything richer
// into, per SPEC_FULL.md §6's "stylesheets arrive pre-parsed"). Grounded on
// rupor-github-fb2cng's config.CoverConfig/ImagesConfig structs (yaml-tagged
// plain structs, gopkg.in/yaml.v3.Unmarshal), scaled down to this demo's
// much smaller surface.
type fixtureConfig struct {
	Viewport struct {
		WidthPx  float64 `yaml:"width_px"`
		HeightPx float64 `yaml:"height_px"`
	} `yaml:"viewport"`
	Fonts struct {
		Regular string `yaml:"regular"`
		Bold    string `yaml:"bold"`
	} `yaml:"fonts"`
	UserAgentStylesheet []struct {
		Tag          string            `yaml:"tag"`
		Declarations map[string]string `yaml:"declarations"`
	} `yaml:"user_agent_stylesheet"`
}

func loadFixtureConfig(path string) (fixtureConfig, error) {
	var cfg fixtureConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// stylesheet converts the config's flat tag->declarations list into a
// style.Stylesheet, or false if the config named none (callers fall back
// to defaultUserAgentStylesheet in that case).
func (c fixtureConfig) stylesheet() (style.Stylesheet, bool) {
	if len(c.UserAgentStylesheet) == 0 {
		return style.Stylesheet{}, false
	}
	rules := make([]style.Rule, 0, len(c.UserAgentStylesheet))
	for _, r := range c.UserAgentStylesheet {
		decls := make([]style.Declaration, 0, len(r.Declarations))
		for prop, val := range r.Declarations {
			decls = append(decls, style.Declaration{Property: prop, Value: val})
		}
		rules = append(rules, style.Rule{
			Selector:     style.Selector{Parts: []style.SelectorPart{{Element: r.Tag}}},
			Declarations: decls,
		})
	}
	return style.Stylesheet{Rules: rules}, true
}
