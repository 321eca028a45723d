package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sondehub/hub/pkg/store"
)

func TestLookupByProbeFindsConfiguredInstance(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, err = st.CreateIntegration(context.Background(), "datadog", "prod-datadog", "encrypted-blob")
	require.NoError(t, err)

	reg := NewRegistry()
	reg.Register(stubPack{manifest: Manifest{Type: "datadog", Probes: []string{"datadog.query"}}})

	it, found, err := LookupByProbe(context.Background(), st, reg, "datadog.query")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "prod-datadog", it.Name)
}

func TestLookupByProbeNotFound(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	reg := NewRegistry()
	_, found, err := LookupByProbe(context.Background(), st, reg, "no.such.probe")
	require.NoError(t, err)
	require.False(t, found)
}
