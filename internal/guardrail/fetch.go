package guardrail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

// FetchOptions configures one guarded GET.
type FetchOptions struct {
	// MaxRedirects bounds how many hops GuardedGet will follow.
	MaxRedirects int
	// AllowList exempts exact hostnames from vetting (e.g. an internal
	// proxy a deployment explicitly trusts).
	AllowList map[string]bool
	// AllowPrivateNetwork disables private-IP rejection entirely.
	AllowPrivateNetwork bool
	// Client is the underlying HTTP client; a zero value gets a fresh
	// http.Client with redirects disabled (GuardedGet re-vets each hop
	// itself instead of letting the stdlib client follow blindly).
	Client *http.Client
	// Headers are set on every hop's request (e.g. Accept, User-Agent).
	Headers map[string]string
}

// Error codes GuardedGet returns, wrapped in *FetchError.
const (
	ErrInvalidURL     = "invalid_url"
	ErrSSRFBlocked    = "ssrf_blocked"
	ErrRedirectError  = "redirect_error"
	ErrNetworkError   = "network_error"
)

// FetchError carries one of the Err* codes above plus a human-readable
// message, so callers can branch on Code without string-matching.
type FetchError struct {
	Code    string
	Message string
}

func (e *FetchError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func fetchErr(code, format string, args ...any) *FetchError {
	return &FetchError{Code: code, Message: fmt.Sprintf(format, args...)}
}

var hostBlocklist = map[string]bool{
	"localhost":                true,
	"169.254.169.254":          true, // AWS/GCP/Azure metadata
	"metadata.google.internal": true,
	"metadata":                 true,
}

var hostSuffixBlocklist = []string{".localhost", ".local", ".internal"}

// GuardedGet performs an SSRF-vetted HTTP GET: the URL, every hostname it
// resolves to, and every redirect hop are checked against the private-
// network predicate before any request reaches the network. Returns the
// final response (caller closes Body) and the final URL string actually
// fetched.
func GuardedGet(ctx context.Context, rawURL string, opts FetchOptions) (*http.Response, string, error) {
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = 5
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	visited := map[string]bool{}
	current := rawURL

	for hop := 0; hop <= opts.MaxRedirects; hop++ {
		if visited[current] {
			return nil, "", fetchErr(ErrRedirectError, "redirect cycle detected at %s", current)
		}
		visited[current] = true

		u, err := vetURL(ctx, current, opts)
		if err != nil {
			return nil, "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, "", fetchErr(ErrInvalidURL, "%v", err)
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, "", fetchErr(ErrNetworkError, "%v", err)
		}

		if loc := resp.Header.Get("Location"); isRedirectStatus(resp.StatusCode) && loc != "" {
			resp.Body.Close()
			next, err := u.Parse(loc)
			if err != nil {
				return nil, "", fetchErr(ErrRedirectError, "invalid redirect target: %v", err)
			}
			current = next.String()
			continue
		}

		return resp, u.String(), nil
	}

	return nil, "", fetchErr(ErrRedirectError, "exceeded %d redirects", opts.MaxRedirects)
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// vetURL validates scheme/host shape, normalizes the hostname, checks it
// against the blocklists and allow-list, and (unless bypassed) resolves
// and rejects private addresses.
func vetURL(ctx context.Context, rawURL string, opts FetchOptions) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fetchErr(ErrInvalidURL, "%v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fetchErr(ErrInvalidURL, "scheme must be http or https, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fetchErr(ErrInvalidURL, "missing host")
	}

	host := normalizeHost(u.Hostname())
	if opts.AllowList[host] {
		return u, nil
	}
	if opts.AllowPrivateNetwork {
		return u, nil
	}

	if hostBlocklist[host] {
		return nil, fetchErr(ErrSSRFBlocked, "host %q is blocklisted", host)
	}
	for _, suffix := range hostSuffixBlocklist {
		if strings.HasSuffix(host, suffix) {
			return nil, fetchErr(ErrSSRFBlocked, "host %q matches blocked suffix %q", host, suffix)
		}
	}

	if addr, ok := decodeIPLiteral(host); ok {
		if isPrivateAddr(addr) {
			return nil, fetchErr(ErrSSRFBlocked, "literal address %s is private", addr)
		}
		return u, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fetchErr(ErrNetworkError, "dns lookup failed for %q: %v", host, err)
	}
	if len(addrs) == 0 {
		return nil, fetchErr(ErrNetworkError, "no addresses resolved for %q", host)
	}
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		if isPrivateAddr(addr.Unmap()) {
			return nil, fetchErr(ErrSSRFBlocked, "host %q resolves to private address %s", host, addr)
		}
	}
	return u, nil
}

// normalizeHost trims whitespace, lowercases, and strips a trailing dot
// or enclosing IPv6 brackets.
func normalizeHost(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.TrimSuffix(h, ".")
	h = strings.TrimPrefix(h, "[")
	h = strings.TrimSuffix(h, "]")
	return h
}

// decodeIPLiteral parses host as an IP literal, including non-standard
// IPv4 forms (decimal, octal, hex, and 1/2/3-part dotted notation) that
// net.ParseIP rejects but browsers and libcurl accept - exactly the
// ambiguity an SSRF bypass would exploit.
func decodeIPLiteral(host string) (netip.Addr, bool) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap(), true
	}
	if v, ok := parseNonStandardIPv4(host); ok {
		return v, true
	}
	return netip.Addr{}, false
}

// parseNonStandardIPv4 decodes dotted forms with 1-4 parts where any part
// may be decimal, octal (0-prefixed), or hex (0x-prefixed), per the
// historical inet_aton grammar.
func parseNonStandardIPv4(host string) (netip.Addr, bool) {
	parts := strings.Split(host, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return netip.Addr{}, false
	}
	nums := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return netip.Addr{}, false
		}
		n, err := parseIntAnyBase(p)
		if err != nil {
			return netip.Addr{}, false
		}
		nums = append(nums, n)
	}

	var b [4]byte
	switch len(nums) {
	case 1:
		v := nums[0]
		if v > 0xFFFFFFFF {
			return netip.Addr{}, false
		}
		b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
	case 2:
		if nums[0] > 0xFF || nums[1] > 0xFFFFFF {
			return netip.Addr{}, false
		}
		b[0] = byte(nums[0])
		b[1], b[2], b[3] = byte(nums[1]>>16), byte(nums[1]>>8), byte(nums[1])
	case 3:
		if nums[0] > 0xFF || nums[1] > 0xFF || nums[2] > 0xFFFF {
			return netip.Addr{}, false
		}
		b[0], b[1] = byte(nums[0]), byte(nums[1])
		b[2], b[3] = byte(nums[2]>>8), byte(nums[2])
	case 4:
		for _, n := range nums {
			if n > 0xFF {
				return netip.Addr{}, false
			}
		}
		b[0], b[1], b[2], b[3] = byte(nums[0]), byte(nums[1]), byte(nums[2]), byte(nums[3])
	default:
		return netip.Addr{}, false
	}
	return netip.AddrFrom4(b), true
}

func parseIntAnyBase(s string) (uint64, error) {
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		return strconv.ParseUint(s[2:], 16, 64)
	case len(s) > 1 && s[0] == '0':
		return strconv.ParseUint(s[1:], 8, 64)
	default:
		return strconv.ParseUint(s, 10, 64)
	}
}

// isPrivateAddr implements the private/internal address predicate: the
// standard IPv4 private/link-local/loopback/CGNAT ranges, and IPv6
// loopback/unspecified/link-local/site-local/unique-local, recursing into
// IPv4-mapped IPv6 addresses.
func isPrivateAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	if addr.Is4In6() {
		return isPrivateAddr(addr.Unmap())
	}
	if addr.Is4() {
		return isPrivateIPv4(addr)
	}
	return isPrivateIPv6(addr)
}

func isPrivateIPv4(addr netip.Addr) bool {
	for _, cidr := range []string{
		"0.0.0.0/8",
		"10.0.0.0/8",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",
	} {
		if prefixContains(cidr, addr) {
			return true
		}
	}
	return false
}

func isPrivateIPv6(addr netip.Addr) bool {
	if addr.IsLoopback() || addr.IsUnspecified() {
		return true
	}
	for _, cidr := range []string{
		"fe80::/10", // link-local
		"fec0::/10", // site-local (deprecated but still vetted)
		"fc00::/7",  // unique-local
	} {
		if prefixContains(cidr, addr) {
			return true
		}
	}
	return false
}

func prefixContains(cidr string, addr netip.Addr) bool {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return false
	}
	return prefix.Contains(addr)
}

// IsSSRFBlocked reports whether err is a *FetchError with Code ssrf_blocked.
func IsSSRFBlocked(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code == ErrSSRFBlocked
	}
	return false
}
