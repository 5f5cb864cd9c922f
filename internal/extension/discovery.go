package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
)

// LoadError is a structured record of one module that failed to discover
// or validate, captured rather than raised so one bad module never aborts
// the rest of a directory scan.
type LoadError struct {
	Path    string
	Error   string
	Message string
}

// LoadedModule pairs a validated Module with the path it was loaded from.
type LoadedModule struct {
	Path   string
	Module Module
}

// DiscoveryResult is everything one Discover pass produced.
type DiscoveryResult struct {
	Modules []*LoadedModule
	Errors  []LoadError
}

// Discover scans dirs for compiled Go plugins (*.so), opens each, looks up
// the required Symbol, and validates it implements Module plus at least
// one optional hook. Discovery never returns an error for a single bad
// module — only for something that prevents scanning a directory at all —
// and modules are returned sorted by name so registry composition has a
// deterministic tie-break.
func Discover(dirs []string) (*DiscoveryResult, error) {
	result := &DiscoveryResult{}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("extension: read dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".so") {
				continue
			}
			path, err := validatePluginPath(filepath.Join(dir, entry.Name()))
			if err != nil {
				result.Errors = append(result.Errors, LoadError{
					Path: filepath.Join(dir, entry.Name()), Error: "invalid_path", Message: err.Error(),
				})
				continue
			}

			mod, loadErr := loadOne(path)
			if loadErr != nil {
				result.Errors = append(result.Errors, *loadErr)
				continue
			}
			result.Modules = append(result.Modules, &LoadedModule{Path: path, Module: mod})
		}
	}

	sort.Slice(result.Modules, func(i, j int) bool {
		return result.Modules[i].Module.Name() < result.Modules[j].Module.Name()
	})
	return result, nil
}

func loadOne(path string) (Module, *LoadError) {
	plug, err := plugin.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Error: "open_failed", Message: err.Error()}
	}
	sym, err := plug.Lookup(Symbol)
	if err != nil {
		return nil, &LoadError{Path: path, Error: "symbol_missing", Message: err.Error()}
	}

	mod, ok := sym.(Module)
	if !ok {
		if ref, ok := sym.(*Module); ok {
			mod = *ref
		} else {
			return nil, &LoadError{
				Path: path, Error: "invalid_shape",
				Message: fmt.Sprintf("symbol %s does not implement Module{Name,Version}", Symbol),
			}
		}
	}
	if strings.TrimSpace(mod.Name()) == "" || strings.TrimSpace(mod.Version()) == "" {
		return nil, &LoadError{Path: path, Error: "invalid_shape", Message: "module name and version are required"}
	}
	if !hasOptionalHook(mod) {
		return nil, &LoadError{
			Path: path, Error: "invalid_shape",
			Message: "module must implement at least one of tools, hooks, providers, config_schema, wasm_tools",
		}
	}
	return mod, nil
}

// validatePluginPath cleans path, rejects traversal segments, and resolves
// it to an absolute path before plugin.Open ever sees it.
func validatePluginPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("plugin path is empty")
	}
	cleaned := filepath.Clean(path)
	if containsTraversalSegment(cleaned) {
		return "", fmt.Errorf("path contains '..' after cleaning: %s", path)
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	if containsTraversalSegment(abs) {
		return "", fmt.Errorf("absolute path contains '..': %s", abs)
	}
	return abs, nil
}

func containsTraversalSegment(path string) bool {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}
