package integration

import (
	"context"
	"fmt"

	"github.com/sondehub/hub/pkg/store"
)

// LookupByProbe finds the configured integration instance whose pack
// manifest declares probe, used to wire pkg/router.New's lookupIntegration
// callback. Integrations are rarely added/removed compared to probe
// executions, so a full scan of configured instances on every call is
// preferred over maintaining a denormalised probe-to-integration index.
func LookupByProbe(ctx context.Context, st *store.Store, registry *Registry, probe string) (*store.Integration, bool, error) {
	instances, err := st.ListIntegrations(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list integrations: %w", err)
	}

	for _, it := range instances {
		pack, ok := registry.Lookup(it.Type)
		if !ok {
			continue
		}
		for _, p := range pack.Manifest().Probes {
			if p == probe {
				return it, true, nil
			}
		}
	}
	return nil, false, nil
}
