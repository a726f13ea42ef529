// Package policy decides which outbound URLs the client may talk to.
//
// It bundles the trust allow-list, the redirect-pattern deny heuristics and
// the runtime mode (strict for production, relaxed for local development)
// into a single value that the dispatcher, sanitizer and diagnostics all
// share, so the strict/relaxed branching lives in exactly one place.
package policy

import (
	"net/url"
	"regexp"
	"strings"
)

// Mode selects how aggressively suspicious URLs are blocked.
type Mode string

const (
	// ModeStrict blocks any redirect-pattern match on a non-trusted host and
	// requires privileged operations to target a trusted host outright.
	ModeStrict Mode = "strict"
	// ModeRelaxed only blocks URLs that match both a known-bad host and a
	// redirect pattern. Used for local development.
	ModeRelaxed Mode = "relaxed"
)

// ModeFromEnvironment maps the externally supplied environment name to a
// Mode. Anything that is not explicitly "development" runs strict.
func ModeFromEnvironment(env string) Mode {
	if strings.EqualFold(strings.TrimSpace(env), "development") {
		return ModeRelaxed
	}
	return ModeStrict
}

// Policy is the read-only trust configuration for one process. Build it once
// at startup with Default or Load and pass it by pointer; it is never mutated
// after construction.
type Policy struct {
	Mode Mode

	// TrustDomains are hostname fragments considered safe regardless of URL
	// shape. Matching is a case-sensitive substring test against the parsed
	// hostname.
	TrustDomains []string

	// RedirectPatterns are substrings whose presence marks a URL as a
	// potential redirect vehicle.
	RedirectPatterns []string

	// KnownBadHosts are hostname fragments that are never acceptable as a
	// request target or redirect destination.
	KnownBadHosts []string

	// PrivilegedNamespace is the path token of the model backend ("ml").
	// Privileged requests must use the canonical /api/<ns>/ or /<ns>/ shape.
	PrivilegedNamespace string
}

// dangerousSchemes matches javascript: and data: scheme prefixes anywhere in
// a URL string. Removal is substring deletion, not escaping.
var dangerousSchemes = regexp.MustCompile(`(?i)(javascript:|data:)`)

// Default returns the built-in production trust tables. The backend is only
// ever reached through its load balancer; gamepathai.com itself is a known
// hijack target and must never be followed.
func Default(mode Mode) *Policy {
	return &Policy{
		Mode: mode,
		TrustDomains: []string{
			"localhost",
			"127.0.0.1",
			"gamepathai-dev-lb-1728469102.us-east-1.elb.amazonaws.com",
			"js.stripe.com",
			"fonts.googleapis.com",
			"fonts.gstatic.com",
		},
		RedirectPatterns: []string{
			"redirect=",
			"/redirect/",
			"php?url=",
			"url=http",
			"goto=",
			"return_to=",
		},
		KnownBadHosts: []string{
			"gamepathai.com",
		},
		PrivilegedNamespace: "ml",
	}
}

// IsTrustedDomain reports whether url may be contacted without further
// checks. Relative and fragment-only URLs are always trusted; absolute URLs
// are trusted only when their hostname matches the allow-list. URLs that
// fail to parse are not trusted.
func (p *Policy) IsTrustedDomain(raw string) bool {
	if isRelative(raw) {
		return true
	}
	host := hostOf(raw)
	if host == "" {
		return false
	}
	for _, d := range p.TrustDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// IsKnownBadHost reports whether the URL targets a deny-listed host. When the
// URL cannot be parsed the raw string is scanned instead, so a mangled URL
// naming a bad host still reads as bad.
func (p *Policy) IsKnownBadHost(raw string) bool {
	if isRelative(raw) {
		return false
	}
	host := hostOf(raw)
	if host == "" {
		host = raw
	}
	for _, b := range p.KnownBadHosts {
		if strings.Contains(host, b) {
			return true
		}
	}
	return false
}

// LooksLikeRedirectAttempt reports whether the URL should be treated as a
// redirect vehicle. Privileged requests are additionally rejected when their
// path carries the model namespace outside the canonical prefix shape.
//
// In relaxed mode only the combination of a known-bad host and a redirect
// pattern is flagged; strict mode flags any pattern match on a non-trusted
// host.
func (p *Policy) LooksLikeRedirectAttempt(raw string, privileged bool) bool {
	if privileged && p.malformedPrivilegedPath(raw) {
		return true
	}

	pattern := p.matchesRedirectPattern(raw)
	if !pattern {
		return false
	}
	if p.IsKnownBadHost(raw) {
		// Obviously malicious is blocked in every mode.
		return true
	}
	if p.Mode == ModeRelaxed {
		return false
	}
	return !p.IsTrustedDomain(raw)
}

func (p *Policy) matchesRedirectPattern(raw string) bool {
	for _, pat := range p.RedirectPatterns {
		if strings.Contains(raw, pat) {
			return true
		}
	}
	return false
}

// malformedPrivilegedPath reports whether a privileged URL carries the
// namespace token somewhere in its path without using the canonical
// /api/<ns>/ or /<ns>/ prefix.
func (p *Policy) malformedPrivilegedPath(raw string) bool {
	ns := p.PrivilegedNamespace
	if ns == "" {
		return false
	}
	path := pathOf(raw)
	if path == "" {
		return false
	}
	if strings.HasPrefix(path, "/api/"+ns+"/") || path == "/api/"+ns ||
		strings.HasPrefix(path, "/"+ns+"/") || path == "/"+ns {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ns {
			return true
		}
	}
	return false
}

// Sanitize normalizes a URL before dispatch: whitespace and NUL bytes are
// stripped, javascript:/data: scheme prefixes are deleted, and absolute URLs
// whose path contains an API prefix are collapsed to a same-origin relative
// form (a relative URL cannot be redirected to a foreign host without the
// server's cooperation).
//
// Sanitize is idempotent. The result is a best-effort defense, not a full
// encoder; it must not be assumed safe for direct DOM injection.
func (p *Policy) Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "\x00", "")
	for dangerousSchemes.MatchString(s) {
		s = dangerousSchemes.ReplaceAllString(s, "")
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return s
	}
	ns := p.PrivilegedNamespace
	if strings.Contains(u.Path, "/api/") || u.Path == "/api" ||
		(ns != "" && (strings.Contains(u.Path, "/"+ns+"/") || u.Path == "/"+ns)) {
		return u.RequestURI()
	}
	return s
}

func isRelative(raw string) bool {
	return strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "#")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func pathOf(raw string) string {
	if isRelative(raw) {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
