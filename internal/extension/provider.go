package extension

// providerKey identifies one {type, name} provider registration slot.
type providerKey struct {
	Type string
	Name string
}

// ProviderRegistrationReport summarizes one provider-registration pass,
// suitable for UI display alongside a ConflictReport.
type ProviderRegistrationReport struct {
	Registered []ProviderDeclaration
	Conflicts  int
	Totals     int
}

// RegisterProviders composes provider declarations from modules already
// sorted by name: built-in declarations always win a {type, name} slot,
// and among extensions the first (lexicographically earliest module) wins.
func RegisterProviders(builtins []ProviderDeclaration, modules []*LoadedModule) *ProviderRegistrationReport {
	report := &ProviderRegistrationReport{}
	claimed := map[providerKey]bool{}

	for _, d := range builtins {
		key := providerKey{Type: d.Type, Name: d.Name}
		claimed[key] = true
		report.Registered = append(report.Registered, d)
	}

	for _, m := range modules {
		ps, ok := m.Module.(ProviderSource)
		if !ok {
			continue
		}
		for _, d := range ps.Providers() {
			key := providerKey{Type: d.Type, Name: d.Name}
			if claimed[key] {
				report.Conflicts++
				continue
			}
			claimed[key] = true
			report.Registered = append(report.Registered, d)
		}
	}

	report.Totals = len(report.Registered)
	return report
}
