package purchasebills

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestWorkspaces(ttl time.Duration) (*Workspaces, *time.Time) {
	clock := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	ws := NewWorkspaces(Deps{
		API:           newFakeAPI(),
		Catalog:       fakeCatalog{9: "kg"},
		Logger:        discardLogger,
		Debounce:      20 * time.Millisecond,
		LookupTimeout: time.Second,
	}, ttl)
	ws.now = func() time.Time { return clock }
	return ws, &clock
}

func TestWorkspacesReturnSameInstancePerSession(t *testing.T) {
	ws, _ := newTestWorkspaces(time.Hour)

	a := ws.Get("s-1")
	require.Same(t, a, ws.Get("s-1"))
	b := ws.Get("s-2")
	require.NotSame(t, a, b)
	require.Equal(t, 2, ws.Len())

	require.Same(t, a.Store, a.Submission.store)
}

func TestWorkspacesEvictIdleSessions(t *testing.T) {
	ws, clock := newTestWorkspaces(time.Hour)

	idle := ws.Get("idle")
	*clock = clock.Add(40 * time.Minute)
	active := ws.Get("active")
	*clock = clock.Add(30 * time.Minute)

	require.Same(t, active, ws.Get("active"))
	require.Equal(t, 1, ws.Len())
	require.NotSame(t, idle, ws.Get("idle"))
}

func TestWorkspacesDrop(t *testing.T) {
	ws, _ := newTestWorkspaces(0)

	first := ws.Get("s-1")
	ws.Drop("s-1")
	ws.Drop("missing")
	require.Equal(t, 0, ws.Len())
	require.NotSame(t, first, ws.Get("s-1"))
}
