// Package proxy serves remote artifact bytes same-origin so downloads can be
// saved as blobs, and provides the client the unlock gate fetches through.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrPrivateIP     = errors.New("proxy: url resolves to a private address")
	ErrUntrustedHost = errors.New("proxy: url host is not trusted")
	ErrInvalidScheme = errors.New("proxy: only https urls are allowed")
	ErrInvalidURL    = errors.New("proxy: invalid url")
)

// GuardOptions configures which sources the proxy may read from.
type GuardOptions struct {
	// Hosts restricts sources to these hosts and their subdomains. Empty
	// means any public host.
	Hosts []string
	// AllowPrivate disables the private address check. Local development only.
	AllowPrivate bool
	// LookupIP overrides DNS resolution.
	LookupIP func(host string) ([]net.IP, error)
}

// Guard validates proxy source URLs.
type Guard struct {
	hosts        []string
	allowPrivate bool
	lookupIP     func(host string) ([]net.IP, error)
}

// NewGuard builds a Guard from opts.
func NewGuard(opts GuardOptions) *Guard {
	hosts := make([]string, 0, len(opts.Hosts))
	for _, h := range opts.Hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	lookup := opts.LookupIP
	if lookup == nil {
		lookup = net.LookupIP
	}
	return &Guard{hosts: hosts, allowPrivate: opts.AllowPrivate, lookupIP: lookup}
}

// Validate returns the parsed URL when it may be fetched. Plain http is only
// accepted for explicitly allowlisted hosts.
func (g *Guard) Validate(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return nil, ErrInvalidURL
	}
	host := strings.ToLower(parsed.Hostname())
	allowlisted := g.isAllowedHost(host)
	switch parsed.Scheme {
	case "https":
	case "http":
		if len(g.hosts) == 0 || !allowlisted {
			return nil, ErrInvalidScheme
		}
	default:
		return nil, ErrInvalidScheme
	}
	if len(g.hosts) > 0 && !allowlisted {
		return nil, ErrUntrustedHost
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("%w: credentials are not allowed", ErrInvalidURL)
	}
	if !g.allowPrivate {
		if err := g.validateHostIP(host); err != nil {
			return nil, err
		}
	}
	return parsed, nil
}

func (g *Guard) isAllowedHost(host string) bool {
	for _, allowed := range g.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (g *Guard) validateHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}
	ips, err := g.lookupIP(host)
	if err != nil {
		return fmt.Errorf("proxy: resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
	}
	return nil
}

var reservedV4 = []*net.IPNet{
	mustCIDR("0.0.0.0/8"),
	mustCIDR("100.64.0.0/10"),
	mustCIDR("192.0.0.0/24"),
	mustCIDR("192.0.2.0/24"),
	mustCIDR("198.18.0.0/15"),
	mustCIDR("198.51.100.0/24"),
	mustCIDR("203.0.113.0/24"),
	mustCIDR("224.0.0.0/4"),
	mustCIDR("240.0.0.0/4"),
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		for _, block := range reservedV4 {
			if block.Contains(ip4) {
				return true
			}
		}
	}
	return false
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}
