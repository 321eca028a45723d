package runbook

import "github.com/sondehub/hub/pkg/herr"

// Registry holds every runbook loaded at startup, keyed by category
// (spec.md §9 "Global state ... Sessions, live integrations, runbook
// registry, and the Store are singletons created at process start; pass
// them explicitly to every component that needs them").
type Registry struct {
	manifests  map[string]ManifestRunbook
	diagnostic map[string]DiagnosticHandler
}

// NewRegistry constructs an empty runbook registry.
func NewRegistry() *Registry {
	return &Registry{
		manifests:  make(map[string]ManifestRunbook),
		diagnostic: make(map[string]DiagnosticHandler),
	}
}

// RegisterManifest installs a simple probe-composition runbook.
func (r *Registry) RegisterManifest(rb ManifestRunbook) {
	r.manifests[rb.Category] = rb
}

// RegisterDiagnostic installs a handler-driven runbook.
func (r *Registry) RegisterDiagnostic(category string, h DiagnosticHandler) {
	r.diagnostic[category] = h
}

// lookup resolves a category to either kind of runbook.
func (r *Registry) lookup(category string) (ManifestRunbook, DiagnosticHandler, error) {
	if rb, ok := r.manifests[category]; ok {
		return rb, nil, nil
	}
	if h, ok := r.diagnostic[category]; ok {
		return ManifestRunbook{}, h, nil
	}
	return ManifestRunbook{}, nil, herr.NotFoundf("runbook category %q not found", category)
}
