package session

import (
	"strings"
	"testing"

	"github.com/agentcore-dev/runtime/pkg/types"
)

func TestComputeDiff_ProducesHeaderAndHunks(t *testing.T) {
	diff := computeDiff("foo.go", "line one\nline two\n", "line one\nline three\n")
	if !strings.Contains(diff, "--- foo.go") || !strings.Contains(diff, "+++ foo.go") {
		t.Fatalf("expected unified diff header, got %q", diff)
	}
	if !strings.Contains(diff, "+") || !strings.Contains(diff, "-") {
		t.Fatalf("expected added/removed lines, got %q", diff)
	}
}

func TestCountLines(t *testing.T) {
	cases := map[string]int{
		"":          0,
		"one":       1,
		"one\ntwo":  2,
		"one\ntwo\n": 3,
	}
	for input, want := range cases {
		if got := countLines(input); got != want {
			t.Errorf("countLines(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestToolResultTrust_WebFetchIsUntrusted(t *testing.T) {
	if toolResultTrust("webfetch") != types.TrustUntrusted {
		t.Fatal("expected webfetch results to be untrusted")
	}
	if toolResultTrust("read") != types.TrustTrusted {
		t.Fatal("expected read results to be trusted")
	}
}
