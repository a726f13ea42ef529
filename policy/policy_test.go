package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRelativeURLsAlwaysTrusted(t *testing.T) {
	p := Default(ModeStrict)
	for _, u := range []string{"/api/health", "/ml/game-detection", "#settings", "/"} {
		if !p.IsTrustedDomain(u) {
			t.Fatalf("expected relative URL %q to be trusted", u)
		}
	}
}

func TestTrustedDomainMatching(t *testing.T) {
	p := Default(ModeStrict)

	if !p.IsTrustedDomain("http://localhost:8000/api/health") {
		t.Fatalf("expected localhost to be trusted")
	}
	if !p.IsTrustedDomain("https://fonts.googleapis.com/css") {
		t.Fatalf("expected fonts.googleapis.com to be trusted")
	}
	if p.IsTrustedDomain("https://random-unknown-host.test/page") {
		t.Fatalf("expected unknown host to be untrusted")
	}
	// Malformed URLs fail closed.
	if p.IsTrustedDomain("http://%zz/broken") {
		t.Fatalf("expected unparsable URL to be untrusted")
	}
}

func TestKnownBadHost(t *testing.T) {
	p := Default(ModeStrict)

	if !p.IsKnownBadHost("https://gamepathai.com/login") {
		t.Fatalf("expected gamepathai.com to be a known-bad host")
	}
	if !p.IsKnownBadHost("https://www.gamepathai.com/") {
		t.Fatalf("expected www.gamepathai.com to be a known-bad host")
	}
	if p.IsKnownBadHost("/api/health") {
		t.Fatalf("relative URL cannot be a bad host")
	}
	if p.IsKnownBadHost("https://example.org/") {
		t.Fatalf("expected example.org to not be a bad host")
	}
}

func TestRedirectAttemptBlockedEverywhere(t *testing.T) {
	// Known-bad host plus redirect pattern is flagged in both modes.
	u := "https://gamepathai.com/redirect=abc"
	for _, mode := range []Mode{ModeStrict, ModeRelaxed} {
		p := Default(mode)
		if !p.LooksLikeRedirectAttempt(u, false) {
			t.Fatalf("mode %s: expected %q to look like a redirect attempt", mode, u)
		}
	}
}

func TestRedirectAttemptModeSensitivity(t *testing.T) {
	u := "https://random-unknown-host.test/page?redirect=/evil"

	strict := Default(ModeStrict)
	if !strict.LooksLikeRedirectAttempt(u, false) {
		t.Fatalf("strict mode: expected pattern match on untrusted host to be flagged")
	}

	relaxed := Default(ModeRelaxed)
	if relaxed.LooksLikeRedirectAttempt(u, false) {
		t.Fatalf("relaxed mode: pattern on a host that is not known-bad should pass")
	}

	// Absent a pattern match, neither predicate flags an unknown host.
	plain := "https://random-unknown-host.test/page"
	if strict.LooksLikeRedirectAttempt(plain, false) {
		t.Fatalf("strict mode: plain URL without pattern should not be a redirect attempt")
	}
}

func TestMalformedPrivilegedPath(t *testing.T) {
	p := Default(ModeStrict)

	// Canonical shapes pass.
	for _, u := range []string{"/api/ml/game-detection", "/ml/predict", "http://localhost/api/ml/predict"} {
		if p.LooksLikeRedirectAttempt(u, true) {
			t.Fatalf("expected canonical privileged path %q to pass", u)
		}
	}
	// Namespace token outside the canonical prefix is rejected.
	for _, u := range []string{"/v2/ml/predict", "/api/v1/ml/detect", "http://localhost/other/ml/x"} {
		if !p.LooksLikeRedirectAttempt(u, true) {
			t.Fatalf("expected malformed privileged path %q to be rejected", u)
		}
	}
	// Paths without the token are not caught by the shape check.
	if p.LooksLikeRedirectAttempt("/api/settings", true) {
		t.Fatalf("path without namespace token should not trip the shape check")
	}
	// "html" must not be mistaken for the "ml" token.
	if p.LooksLikeRedirectAttempt("/docs/html/index", true) {
		t.Fatalf("substring of another segment should not trip the shape check")
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	p := Default(ModeStrict)
	inputs := []string{
		"  /api/health  ",
		"javascript:alert(1)",
		"javajavascript:script:alert(1)",
		"data:text/html,<b>x</b>",
		"https://example.com/api/games?sort=name",
		"https://example.com/static/app.js",
		"/ml/predict?x=1",
		"\x00/api/he\x00alth",
	}
	for _, u := range inputs {
		once := p.Sanitize(u)
		twice := p.Sanitize(once)
		if once != twice {
			t.Fatalf("sanitize not idempotent for %q: %q != %q", u, once, twice)
		}
	}
}

func TestSanitizeStripsDangerousSchemes(t *testing.T) {
	p := Default(ModeStrict)
	if got := p.Sanitize("JavaScript:alert(1)"); got != "alert(1)" {
		t.Fatalf("expected scheme stripped, got %q", got)
	}
	if got := p.Sanitize("\x00/api/he\x00alth"); got != "/api/health" {
		t.Fatalf("expected NUL bytes stripped, got %q", got)
	}
}

func TestSanitizeCollapsesAbsoluteAPIURLs(t *testing.T) {
	p := Default(ModeStrict)
	if got := p.Sanitize("https://example.com/api/games?sort=name"); got != "/api/games?sort=name" {
		t.Fatalf("expected relative rewrite, got %q", got)
	}
	if got := p.Sanitize("http://evil.test/ml/predict"); got != "/ml/predict" {
		t.Fatalf("expected privileged rewrite, got %q", got)
	}
	// Non-API absolute URLs pass through.
	keep := "https://fonts.googleapis.com/css?family=Inter"
	if got := p.Sanitize(keep); got != keep {
		t.Fatalf("expected non-API URL untouched, got %q", got)
	}
}

func TestModeFromEnvironment(t *testing.T) {
	if ModeFromEnvironment("development") != ModeRelaxed {
		t.Fatalf("development should map to relaxed")
	}
	for _, env := range []string{"production", "test", "", "staging"} {
		if ModeFromEnvironment(env) != ModeStrict {
			t.Fatalf("%q should map to strict", env)
		}
	}
}

func TestLoadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := []byte(`
environment: development
trust_domains:
  - internal.gamepath.lan
known_bad_hosts:
  - phishy.example
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Mode != ModeRelaxed {
		t.Fatalf("expected relaxed mode, got %s", p.Mode)
	}
	if !p.IsTrustedDomain("http://internal.gamepath.lan/api/x") {
		t.Fatalf("expected file-provided trust domain to be honored")
	}
	// Defaults are extended, not replaced.
	if !p.IsTrustedDomain("http://localhost/api/x") {
		t.Fatalf("expected built-in trust domains to survive")
	}
	if !p.IsKnownBadHost("https://phishy.example/x") {
		t.Fatalf("expected file-provided bad host to be honored")
	}
}

func TestLoadPolicyFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("trust_domains: {not: [a list"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}
