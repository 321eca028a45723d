package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sondehub/hub/pkg/store"
)

func TestSetAgentTagsReplacesFullSet(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	agent, err := st.UpsertAgentByName(ctx, "srv-01", "linux", "1.0.0")
	require.NoError(t, err)

	require.NoError(t, st.SetAgentTags(ctx, agent.ID, []string{"care", "database", "prod"}))
	tags, err := st.GetTags(ctx, store.EntityAgent, agent.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"care", "database", "prod"}, tags)

	require.NoError(t, st.SetAgentTags(ctx, agent.ID, []string{"new"}))
	tags, err = st.GetTags(ctx, store.EntityAgent, agent.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, tags)
}

func TestAddAgentTagsDedupesAgainstExisting(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	agent, err := st.UpsertAgentByName(ctx, "srv-01", "linux", "1.0.0")
	require.NoError(t, err)

	require.NoError(t, st.SetAgentTags(ctx, agent.ID, []string{"existing"}))
	require.NoError(t, st.AddAgentTags(ctx, []string{agent.ID}, []string{"existing", "new"}))

	tags, err := st.GetTags(ctx, store.EntityAgent, agent.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"existing", "new"}, tags)
}

func TestDeleteIntegrationCascadesTags(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	it, err := st.CreateIntegration(ctx, "datadog", "prod-datadog", "encrypted-blob")
	require.NoError(t, err)

	require.NoError(t, st.SetIntegrationTags(ctx, it.ID, []string{"monitoring"}))

	deleted, err := st.DeleteIntegration(ctx, it.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	tags, err := st.GetTags(ctx, store.EntityIntegration, it.ID)
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestRemoveTagsIsNoOpForAbsentTag(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	agent, err := st.UpsertAgentByName(ctx, "srv-01", "linux", "1.0.0")
	require.NoError(t, err)
	require.NoError(t, st.SetAgentTags(ctx, agent.ID, []string{"prod"}))

	require.NoError(t, st.RemoveTags(ctx, store.EntityAgent, agent.ID, []string{"no-such-tag"}))

	tags, err := st.GetTags(ctx, store.EntityAgent, agent.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"prod"}, tags)
}

func TestRenameTagMergesAcrossEntities(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	a, err := st.UpsertAgentByName(ctx, "srv-01", "linux", "1.0.0")
	require.NoError(t, err)
	b, err := st.UpsertAgentByName(ctx, "srv-02", "linux", "1.0.0")
	require.NoError(t, err)

	require.NoError(t, st.SetAgentTags(ctx, a.ID, []string{"old"}))
	require.NoError(t, st.SetAgentTags(ctx, b.ID, []string{"old", "new"}))

	require.NoError(t, st.RenameTag(ctx, "old", "new"))

	tagsA, err := st.GetTags(ctx, store.EntityAgent, a.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, tagsA)

	tagsB, err := st.GetTags(ctx, store.EntityAgent, b.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, tagsB)
}
