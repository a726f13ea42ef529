package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Environment         string   `yaml:"environment"`
	TrustDomains        []string `yaml:"trust_domains"`
	RedirectPatterns    []string `yaml:"redirect_patterns"`
	KnownBadHosts       []string `yaml:"known_bad_hosts"`
	PrivilegedNamespace string   `yaml:"privileged_namespace"`
	ReplaceDefaults     bool     `yaml:"replace_defaults"`
}

// Load reads a YAML policy file. Lists extend the built-in tables unless
// replace_defaults is set; the environment field selects the mode and is
// overridden by an explicit mode argument at the call site if needed.
func Load(path string) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	p := Default(ModeFromEnvironment(cfg.Environment))
	if cfg.ReplaceDefaults {
		p.TrustDomains = nil
		p.RedirectPatterns = nil
		p.KnownBadHosts = nil
	}
	p.TrustDomains = appendClean(p.TrustDomains, cfg.TrustDomains)
	p.RedirectPatterns = appendClean(p.RedirectPatterns, cfg.RedirectPatterns)
	p.KnownBadHosts = appendClean(p.KnownBadHosts, cfg.KnownBadHosts)
	if ns := strings.TrimSpace(cfg.PrivilegedNamespace); ns != "" {
		p.PrivilegedNamespace = ns
	}
	return p, nil
}

func appendClean(dst, src []string) []string {
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dst = append(dst, s)
	}
	return dst
}
