package extension

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscover_SkipsMissingDirectory(t *testing.T) {
	result, err := Discover([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	if err != nil {
		t.Fatalf("Discover returned error for missing dir: %v", err)
	}
	if len(result.Modules) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result for missing dir, got %+v", result)
	}
}

func TestDiscover_IgnoresNonSharedObjectFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Discover([]string{dir})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(result.Modules) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected no modules or errors, got %+v", result)
	}
}

func TestDiscover_RecordsOpenFailureAsLoadError(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.so")
	if err := os.WriteFile(bad, []byte("not an elf plugin"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := Discover([]string{dir})
	if err != nil {
		t.Fatalf("Discover returned a hard error for a single bad plugin: %v", err)
	}
	if len(result.Modules) != 0 {
		t.Fatalf("expected no valid modules, got %d", len(result.Modules))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 load error, got %d", len(result.Errors))
	}
	if result.Errors[0].Error != "open_failed" {
		t.Errorf("expected open_failed, got %q", result.Errors[0].Error)
	}
}

func TestValidatePluginPath_RejectsTraversal(t *testing.T) {
	_, err := validatePluginPath("../../etc/passwd.so")
	if err == nil {
		t.Fatal("expected traversal path to be rejected")
	}
}

func TestValidatePluginPath_AcceptsCleanPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "good.so")
	abs, err := validatePluginPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("expected absolute path, got %q", abs)
	}
}

func TestContainsTraversalSegment(t *testing.T) {
	cases := map[string]bool{
		"/a/b/c.so":       false,
		"/a/../b/c.so":    true,
		"a/b/../../c.so":  true,
		"/a/b.c./d.so":    false,
	}
	for path, want := range cases {
		if got := containsTraversalSegment(path); got != want {
			t.Errorf("containsTraversalSegment(%q) = %v, want %v", path, got, want)
		}
	}
}
