// Package diag probes endpoints for redirect behavior. It deliberately uses
// a non-following HTTP client so that every hop in a redirect chain is
// observed and reported, and it inspects HTML bodies for the client-side
// redirect tricks (meta refresh, location scripts) that never show up at the
// HTTP layer.
package diag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/evdnx/golog"
	"golang.org/x/net/html"

	"github.com/GamePathAi/gamepathai-sub000/policy"
)

// Result describes one probed hop.
type Result struct {
	URL                string `json:"url"`
	WasRedirected      bool   `json:"was_redirected"`
	FinalURL           string `json:"final_url"`
	IsKnownBadHost     bool   `json:"is_known_bad_host"`
	HTTPStatus         int    `json:"http_status"`
	ClientSideRedirect bool   `json:"client_side_redirect,omitempty"`
}

const (
	defaultMaxHops      = 10
	maxScannedBody      = 256 * 1024
	defaultProbeTimeout = 15 * time.Second
)

// Prober walks redirect chains hop by hop.
type Prober struct {
	client  *http.Client
	policy  *policy.Policy
	logger  *golog.Logger
	maxHops int
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient replaces the probe transport. The supplied client must not
// follow redirects on its own or the chain collapses into one hop.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Prober) { p.client = hc }
}

// WithGologLogger attaches a structured logger.
func WithGologLogger(l *golog.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// WithMaxHops caps the chain length.
func WithMaxHops(n int) Option {
	return func(p *Prober) { p.maxHops = n }
}

// NewProber builds a Prober against the given policy.
func NewProber(pol *policy.Policy, opts ...Option) *Prober {
	p := &Prober{
		policy:  pol,
		maxHops: defaultMaxHops,
		client: &http.Client{
			Timeout: defaultProbeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// prevent automatic redirects
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe issues manual requests starting at rawURL, following Location headers
// and meta-refresh targets itself, and returns one Result per hop. It stops
// when no further redirect occurs, a cycle is detected, or the hop cap is
// reached. Probing never blocks a request; it only reports.
func (p *Prober) Probe(ctx context.Context, rawURL string) ([]Result, error) {
	var chain []Result
	seen := make(map[string]bool)
	current := rawURL

	for hop := 0; hop < p.maxHops; hop++ {
		if seen[current] {
			p.logWarn("redirect cycle detected", golog.String("url", current))
			break
		}
		seen[current] = true

		res, next, err := p.probeOnce(ctx, current)
		if err != nil {
			if len(chain) == 0 {
				return nil, err
			}
			// A broken tail still leaves a useful partial chain.
			p.logWarn("probe aborted mid-chain",
				golog.String("url", current),
				golog.String("error", err.Error()))
			break
		}
		chain = append(chain, res)
		if next == "" {
			break
		}
		current = next
	}
	return chain, nil
}

// probeOnce fetches one URL without following redirects and reports the hop
// plus the next URL to visit, if any.
func (p *Prober) probeOnce(ctx context.Context, rawURL string) (Result, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, "", fmt.Errorf("building probe request for %s: %w", rawURL, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, "", fmt.Errorf("probing %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	res := Result{
		URL:            rawURL,
		FinalURL:       rawURL,
		IsKnownBadHost: p.policy.IsKnownBadHost(rawURL),
		HTTPStatus:     resp.StatusCode,
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc := resp.Header.Get("Location"); loc != "" {
			next := resolveLocation(resp.Request, loc)
			res.WasRedirected = true
			res.FinalURL = next
			return res, next, nil
		}
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxScannedBody))
		if found, target := ScanForClientRedirect(bytes.NewReader(body)); found {
			res.ClientSideRedirect = true
			res.WasRedirected = true
			if target != "" {
				next := resolveLocation(resp.Request, target)
				res.FinalURL = next
				return res, next, nil
			}
		}
	}
	return res, "", nil
}

func resolveLocation(req *http.Request, loc string) string {
	if req == nil || req.URL == nil {
		return loc
	}
	u, err := req.URL.Parse(loc)
	if err != nil {
		return loc
	}
	return u.String()
}

func (p *Prober) logWarn(msg string, fields ...golog.Field) {
	if p.logger != nil {
		p.logger.Warn(msg, fields...)
	}
}

// ScanForClientRedirect parses an HTML document and reports whether it
// carries a client-side redirect: a meta http-equiv=refresh tag (whose target
// URL is returned when present) or an inline script touching the navigation
// APIs.
func ScanForClientRedirect(r io.Reader) (bool, string) {
	doc, err := html.Parse(r)
	if err != nil {
		return false, ""
	}
	found := false
	target := ""
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if equiv, content := attrs(n, "http-equiv", "content"); strings.EqualFold(equiv, "refresh") {
					found = true
					if t := refreshTarget(content); t != "" {
						target = t
					}
				}
			case "script":
				if n.FirstChild != nil && scriptNavigates(n.FirstChild.Data) {
					found = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found, target
}

var navigationPatterns = []string{
	"window.location",
	"document.location",
	"location.href",
	"location.replace",
	"location.assign",
}

func scriptNavigates(src string) bool {
	for _, pat := range navigationPatterns {
		if strings.Contains(src, pat) {
			return true
		}
	}
	return false
}

// refreshTarget extracts the url= part of a meta-refresh content attribute
// like "5; url=https://example.com/next".
func refreshTarget(content string) string {
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 4 && strings.EqualFold(part[:4], "url=") {
			return strings.Trim(part[4:], `'" `)
		}
	}
	return ""
}

func attrs(n *html.Node, keys ...string) (string, string) {
	var out [2]string
	for _, a := range n.Attr {
		for i, k := range keys {
			if strings.EqualFold(a.Key, k) && i < 2 {
				out[i] = a.Val
			}
		}
	}
	return out[0], out[1]
}

// interferenceMarkers are element ids and classes commonly injected into
// pages by ad-blocking and security browser extensions.
var interferenceMarkers = []string{
	"adblock",
	"abp",
	"ublock",
	"ghostery",
	"noscript-warning",
	"privacy-badger",
}

// proxyEnvVars are the environment variables that route traffic through an
// intermediary capable of rewriting it.
var proxyEnvVars = []string{
	"HTTP_PROXY", "http_proxy",
	"HTTPS_PROXY", "https_proxy",
	"ALL_PROXY", "all_proxy",
}

// CheckForInterference reports potential sources of request interference in
// the execution environment. Informational only; nothing is ever blocked on
// this basis.
func CheckForInterference() []string {
	var findings []string
	for _, v := range proxyEnvVars {
		if val := os.Getenv(v); val != "" {
			findings = append(findings, fmt.Sprintf("proxy environment variable %s is set (%s)", v, val))
		}
	}
	return findings
}

// ScanDocument reports extension-injected markers found in an HTML document,
// as potential interference sources.
func ScanDocument(r io.Reader) []string {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}
	var findings []string
	seen := make(map[string]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key != "id" && a.Key != "class" {
					continue
				}
				val := strings.ToLower(a.Val)
				for _, marker := range interferenceMarkers {
					if strings.Contains(val, marker) && !seen[marker] {
						seen[marker] = true
						findings = append(findings, fmt.Sprintf("extension marker %q found in document", marker))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return findings
}
