package guardrail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVetURL_RejectsLoopbackLiteral(t *testing.T) {
	_, err := vetURL(context.Background(), "http://127.0.0.1/admin", FetchOptions{})
	if err == nil || !IsSSRFBlocked(err) {
		t.Fatalf("expected ssrf_blocked for loopback literal, got %v", err)
	}
}

func TestVetURL_RejectsCloudMetadataHost(t *testing.T) {
	_, err := vetURL(context.Background(), "http://169.254.169.254/latest/meta-data/", FetchOptions{})
	if err == nil || !IsSSRFBlocked(err) {
		t.Fatalf("expected ssrf_blocked for metadata address, got %v", err)
	}
}

func TestVetURL_RejectsNonStandardIPv4Literal(t *testing.T) {
	// 2130706433 decimal == 127.0.0.1, and 0177.0.0.1 / 0x7f.0.0.1 are octal
	// and hex forms of the same address - all real-world SSRF bypass encodings.
	for _, host := range []string{"http://2130706433/", "http://0177.0.0.1/", "http://0x7f.0.0.1/"} {
		if _, err := vetURL(context.Background(), host, FetchOptions{}); err == nil || !IsSSRFBlocked(err) {
			t.Fatalf("expected ssrf_blocked for %s, got %v", host, err)
		}
	}
}

func TestVetURL_AllowsPublicLiteral(t *testing.T) {
	u, err := vetURL(context.Background(), "http://93.184.216.34/", FetchOptions{})
	if err != nil {
		t.Fatalf("expected public literal to pass vetting, got %v", err)
	}
	if u.Hostname() != "93.184.216.34" {
		t.Fatalf("unexpected host %s", u.Hostname())
	}
}

func TestVetURL_AllowListBypassesBlocklist(t *testing.T) {
	_, err := vetURL(context.Background(), "http://localhost/internal", FetchOptions{
		AllowList: map[string]bool{"localhost": true},
	})
	if err != nil {
		t.Fatalf("expected allow-listed host to bypass vetting, got %v", err)
	}
}

func TestVetURL_AllowPrivateNetworkBypassesResolution(t *testing.T) {
	_, err := vetURL(context.Background(), "http://10.0.0.5/", FetchOptions{AllowPrivateNetwork: true})
	if err != nil {
		t.Fatalf("expected AllowPrivateNetwork to bypass the private check, got %v", err)
	}
}

func TestVetURL_RejectsNonHTTPScheme(t *testing.T) {
	_, err := vetURL(context.Background(), "file:///etc/passwd", FetchOptions{})
	var fe *FetchError
	if err == nil {
		t.Fatal("expected an error for file:// scheme")
	}
	if !asFetchError(err, &fe) || fe.Code != ErrInvalidURL {
		t.Fatalf("expected invalid_url, got %v", err)
	}
}

func asFetchError(err error, target **FetchError) bool {
	fe, ok := err.(*FetchError)
	if !ok {
		return false
	}
	*target = fe
	return true
}

func TestGuardedGet_VetsBeforeFirstHop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// httptest servers bind to 127.0.0.1, which vetURL must reject before
	// any request reaches the network.
	_, _, err := GuardedGet(context.Background(), srv.URL, FetchOptions{})
	if err == nil || !IsSSRFBlocked(err) {
		t.Fatalf("expected the loopback target to be blocked, got %v", err)
	}
}

func TestGuardedGet_RevetsRedirectTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
	}))
	defer srv.Close()

	// The first hop (httptest's own 127.0.0.1 listener) is allow-listed by
	// exact host, but the redirect target is a different, metadata-
	// blocklisted host - proving each hop is vetted independently rather
	// than only the original URL.
	_, _, err := GuardedGet(context.Background(), srv.URL, FetchOptions{
		AllowList: map[string]bool{"127.0.0.1": true},
	})
	if err == nil || !IsSSRFBlocked(err) {
		t.Fatalf("expected the redirect target to be blocked, got %v", err)
	}
}

func TestGuardedGet_DetectsRedirectCycle(t *testing.T) {
	opts := FetchOptions{AllowPrivateNetwork: true}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer srv.Close()

	_, _, err := GuardedGet(context.Background(), srv.URL, opts)
	if err == nil || !strings.Contains(err.Error(), "redirect") {
		t.Fatalf("expected a redirect_error for a self-redirect loop, got %v", err)
	}
}

func TestNormalizeHost_StripsBracketsAndTrailingDot(t *testing.T) {
	if got := normalizeHost("[::1]"); got != "::1" {
		t.Fatalf("expected ::1, got %s", got)
	}
	if got := normalizeHost("Example.com."); got != "example.com" {
		t.Fatalf("expected example.com, got %s", got)
	}
}
