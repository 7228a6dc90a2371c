package security

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Resolver looks up the addresses behind a hostname.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// IPValidator blocks outbound fetches to loopback, private, link-local and
// other special-purpose networks. Hostnames are resolved and every returned
// address is checked, not just the literal host.
type IPValidator struct {
	blockedNetworks []*net.IPNet
	allowedNetworks []*net.IPNet
	allowedSchemes  map[string]bool
	resolver        Resolver
}

var blockedCIDRs = []string{
	// IPv4
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.88.99.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",

	// IPv6
	"::/128",
	"::1/128",
	"64:ff9b::/96",
	"100::/64",
	"2001:db8::/32",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

// NewIPValidator returns a validator that only admits https URLs.
func NewIPValidator() *IPValidator {
	v := &IPValidator{
		allowedSchemes: map[string]bool{"https": true},
		resolver:       net.DefaultResolver,
	}
	for _, cidr := range blockedCIDRs {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			v.blockedNetworks = append(v.blockedNetworks, network)
		}
	}
	return v
}

// WithResolver replaces the DNS resolver.
func (v *IPValidator) WithResolver(r Resolver) *IPValidator {
	v.resolver = r
	return v
}

// AllowNetwork exempts a CIDR range from the blocklist.
func (v *IPValidator) AllowNetwork(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR: %w", err)
	}
	v.allowedNetworks = append(v.allowedNetworks, network)
	return nil
}

// IsBlockedIP reports whether ip falls in a blocked range.
func (v *IPValidator) IsBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	for _, network := range v.allowedNetworks {
		if network.Contains(ip) {
			return false
		}
	}
	for _, network := range v.blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateURL checks the scheme and every address the host resolves to.
func (v *IPValidator) ValidateURL(ctx context.Context, rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if !v.allowedSchemes[scheme] {
		return nil, fmt.Errorf("unsupported URL scheme %q: only https is allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing hostname")
	}
	if err := v.ValidateHost(ctx, host); err != nil {
		return nil, err
	}
	return u, nil
}

// ValidateHost resolves host and rejects it if any address is blocked.
func (v *IPValidator) ValidateHost(ctx context.Context, host string) error {
	_, err := v.resolveAllowed(ctx, host)
	return err
}

func (v *IPValidator) resolveAllowed(ctx context.Context, host string) ([]net.IP, error) {
	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return nil, fmt.Errorf("localhost is not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if v.IsBlockedIP(ip) {
			return nil, fmt.Errorf("blocked IP address: %s", ip)
		}
		return []net.IP{ip}, nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("hostname resolved to no IP addresses")
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if v.IsBlockedIP(addr.IP) {
			return nil, fmt.Errorf("hostname resolves to blocked IP: %s", addr.IP)
		}
		ips = append(ips, addr.IP)
	}
	return ips, nil
}

// DialContext checks the concrete address being dialed, so a hostname that
// re-resolves to a private address between validation and connect is refused.
func (v *IPValidator) DialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := v.resolveAllowed(ctx, host)
		if err != nil {
			return nil, err
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
	}
}
