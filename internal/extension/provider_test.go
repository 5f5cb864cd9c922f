package extension

import "testing"

type fakeProviderModule struct {
	name string
	decl []ProviderDeclaration
}

func (m *fakeProviderModule) Name() string                    { return m.name }
func (m *fakeProviderModule) Version() string                 { return "0.0.1" }
func (m *fakeProviderModule) Providers() []ProviderDeclaration { return m.decl }

func TestRegisterProviders_BuiltinAlwaysWins(t *testing.T) {
	builtins := []ProviderDeclaration{{Type: "model", Name: "anthropic"}}
	ext := &fakeProviderModule{name: "alpha", decl: []ProviderDeclaration{{Type: "model", Name: "anthropic"}}}

	report := RegisterProviders(builtins, []*LoadedModule{loaded2(ext)})
	if report.Totals != 1 {
		t.Fatalf("expected 1 registered provider, got %d", report.Totals)
	}
	if report.Conflicts != 1 {
		t.Fatalf("expected 1 conflict, got %d", report.Conflicts)
	}
}

func TestRegisterProviders_FirstExtensionWinsAmongExtensions(t *testing.T) {
	alpha := &fakeProviderModule{name: "alpha", decl: []ProviderDeclaration{{Type: "model", Name: "custom"}}}
	beta := &fakeProviderModule{name: "beta", decl: []ProviderDeclaration{{Type: "model", Name: "custom"}}}

	report := RegisterProviders(nil, []*LoadedModule{loaded2(alpha), loaded2(beta)})
	if report.Totals != 1 {
		t.Fatalf("expected 1 registered provider, got %d", report.Totals)
	}
	if report.Registered[0].Factory != nil {
		t.Errorf("expected no factory set on bare declaration")
	}
	if report.Conflicts != 1 {
		t.Fatalf("expected 1 conflict from beta's duplicate, got %d", report.Conflicts)
	}
}

func TestRegisterProviders_DistinctTypesDoNotConflict(t *testing.T) {
	builtins := []ProviderDeclaration{{Type: "model", Name: "anthropic"}}
	ext := &fakeProviderModule{name: "alpha", decl: []ProviderDeclaration{{Type: "embedding", Name: "anthropic"}}}

	report := RegisterProviders(builtins, []*LoadedModule{loaded2(ext)})
	if report.Totals != 2 {
		t.Fatalf("expected both declarations registered, got %d", report.Totals)
	}
	if report.Conflicts != 0 {
		t.Fatalf("expected no conflicts across distinct types, got %d", report.Conflicts)
	}
}

func loaded2(m Module) *LoadedModule {
	return &LoadedModule{Path: "/fake/" + m.Name() + ".so", Module: m}
}
