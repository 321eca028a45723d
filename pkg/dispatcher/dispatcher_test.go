package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sondehub/hub/pkg/herr"
)

type fakeSigner struct{}

func (fakeSigner) Sign(data []byte) (string, error) { return "fake-sig", nil }

func TestDispatcherCallOfflineAgentFailsImmediately(t *testing.T) {
	d := New(fakeSigner{})
	t.Cleanup(d.Stop)

	_, err := d.Call(context.Background(), "srv-01", "disk.usage", nil, time.Second)
	require.Error(t, err)
	assert.Equal(t, herr.KindUnreachable, herr.KindOf(err))
}

func TestDispatcherIsOnlineAndListOnlineAgents(t *testing.T) {
	d := New(fakeSigner{})
	t.Cleanup(d.Stop)

	assert.False(t, d.IsOnline("srv-01"))
	assert.Empty(t, d.ListOnlineAgents())
}

func TestPendingTableSweepExpiresTimedOutRequests(t *testing.T) {
	pt := newPendingTable()
	id, req := pt.register("srv-01", -time.Millisecond)

	pt.sweepExpired(time.Now(), herr.New(herr.KindTimeout, "request timed out"))

	select {
	case res := <-req.result:
		require.Error(t, res.err)
		assert.Equal(t, herr.KindTimeout, herr.KindOf(res.err))
	default:
		t.Fatal("expected sweepExpired to resolve the pending request")
	}
	_ = id
}

func TestPendingTableFailAgentFailsOnlyThatAgentsRequests(t *testing.T) {
	pt := newPendingTable()
	_, reqA := pt.register("srv-01", time.Minute)
	_, reqB := pt.register("srv-02", time.Minute)

	pt.failAgent("srv-01", herr.New(herr.KindUnreachable, "agent disconnected"))

	select {
	case res := <-reqA.result:
		require.Error(t, res.err)
	default:
		t.Fatal("expected srv-01's request to fail")
	}

	select {
	case <-reqB.result:
		t.Fatal("srv-02's request should remain pending")
	default:
	}
}
