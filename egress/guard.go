// Package egress validates hook endpoint URLs against the outbound-traffic
// policy before any network call is made.
package egress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
)

// ErrNotAllowed is returned when a URL resolves to a blocked address.
// Deliveries rejected by the guard fail permanently and are never retried.
var ErrNotAllowed = errors.New("egress: endpoint is not allowed")

// Policy configures the guard. The zero value blocks loopback, private,
// and link-local ranges and allows everything else.
type Policy struct {
	// Allow lists prefixes that are always permitted, taking precedence
	// over every block rule.
	Allow []netip.Prefix

	// Deny lists prefixes that are always blocked.
	Deny []netip.Prefix

	// PermitLocal disables the built-in loopback/private/link-local block.
	// Intended for tests and single-host deployments.
	PermitLocal bool
}

// Resolver is the subset of net.Resolver the guard needs.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Guard validates destination URLs against a Policy.
type Guard struct {
	policy   Policy
	resolver Resolver
}

// NewGuard creates a guard using the default DNS resolver.
func NewGuard(policy Policy) *Guard {
	return &Guard{policy: policy, resolver: net.DefaultResolver}
}

// NewGuardWithResolver creates a guard with a custom resolver.
func NewGuardWithResolver(policy Policy, resolver Resolver) *Guard {
	return &Guard{policy: policy, resolver: resolver}
}

// Validate resolves the URL's host and checks every address against the
// policy. A single blocked address blocks the whole destination, since the
// HTTP client may connect to any of them.
func (g *Guard) Validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAllowed, err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrNotAllowed)
	}

	var addrs []netip.Addr
	if addr, parseErr := netip.ParseAddr(host); parseErr == nil {
		addrs = []netip.Addr{addr}
	} else {
		addrs, err = g.resolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return fmt.Errorf("%w: resolve %q: %v", ErrNotAllowed, host, err)
		}
	}

	for _, addr := range addrs {
		if err := g.checkAddr(addr.Unmap()); err != nil {
			return err
		}
	}
	return nil
}

func (g *Guard) checkAddr(addr netip.Addr) error {
	for _, p := range g.policy.Allow {
		if p.Contains(addr) {
			return nil
		}
	}
	for _, p := range g.policy.Deny {
		if p.Contains(addr) {
			return fmt.Errorf("%w: %s is in a denied range", ErrNotAllowed, addr)
		}
	}
	if g.policy.PermitLocal {
		return nil
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified() {
		return fmt.Errorf("%w: %s is not a public address", ErrNotAllowed, addr)
	}
	return nil
}
