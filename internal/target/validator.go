// Package target decides whether a caller-supplied URL is safe to
// fetch. Classification is purely syntactic: hostnames are never
// resolved, so a public name pointing at a private address is not
// caught here.
package target

import (
	"errors"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrInvalidFormat   = errors.New("invalid target URL")
	ErrInvalidProtocol = errors.New("protocol not allowed")
	ErrPrivateNetwork  = errors.New("private network blocked")
)

// Class is the closed set of host classifications.
type Class int

const (
	Public Class = iota
	Loopback
	LinkLocal
	PrivateRange
	Unspecified
	Unresolvable
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case Loopback:
		return "loopback"
	case LinkLocal:
		return "link-local"
	case PrivateRange:
		return "private"
	case Unspecified:
		return "unspecified"
	}
	return "unresolvable"
}

// Validate parses raw and enforces the fetch policy: http/https only,
// no private-network hosts. Returns the parsed URL on success.
func Validate(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return nil, ErrInvalidFormat
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrInvalidProtocol
	}
	if Classify(u.Hostname()) != Public {
		return nil, ErrPrivateNetwork
	}
	return u, nil
}

// Classify maps a literal hostname to a Class. IP literals are
// classified structurally; names fall back to the textual rules
// (localhost, .local, dotted private prefixes). Hostnames are
// lower-cased and IDNA-normalized first so Unicode spellings cannot
// dodge the checks.
func Classify(host string) Class {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return Unresolvable
	}
	if a, err := idna.Lookup.ToASCII(host); err == nil && a != "" {
		host = a
	}
	if ip, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return classifyIP(ip)
	}
	if strings.Contains(host, "::1") { // mangled v6 loopback literals
		return Loopback
	}
	switch {
	case host == "localhost":
		return Loopback
	case strings.HasSuffix(host, ".local"):
		return PrivateRange
	case strings.HasPrefix(host, "127."):
		return Loopback
	case strings.HasPrefix(host, "10."), strings.HasPrefix(host, "192.168."):
		return PrivateRange
	case strings.HasPrefix(host, "0."):
		return Unspecified
	case in172PrivateBlock(host):
		return PrivateRange
	}
	return Public
}

func classifyIP(ip netip.Addr) Class {
	switch {
	case ip.IsLoopback():
		return Loopback
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return LinkLocal
	case ip.IsPrivate():
		return PrivateRange
	case ip.IsUnspecified():
		return Unspecified
	}
	if ip.Is4() && ip.As4()[0] == 0 { // 0.0.0.0/8 beyond the unspecified address
		return Unspecified
	}
	return Public
}

// in172PrivateBlock reports whether a non-IP hostname textually falls
// in 172.16.0.0/12, i.e. second label 16 through 31.
func in172PrivateBlock(host string) bool {
	rest, ok := strings.CutPrefix(host, "172.")
	if !ok {
		return false
	}
	i := strings.IndexByte(rest, '.')
	if i <= 0 {
		return false
	}
	n, err := strconv.Atoi(rest[:i])
	if err != nil {
		return false
	}
	return n >= 16 && n <= 31
}
