package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retz/retz/internal/store"
)

func newTestStoreWithFinishedJob(t *testing.T, finishedAt string) (*store.Store, int64) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Stop() })

	u, err := st.CreateUser("owner")
	require.NoError(t, err)
	ok, err := st.AddApplication(store.Application{AppID: "app-1", Owner: u.KeyID})
	require.NoError(t, err)
	require.True(t, ok)

	j, err := st.AddJob(store.Job{AppID: "app-1", Name: "job", Cmd: "true"})
	require.NoError(t, err)

	ok, err = st.TransitionJob(j.ID, store.JobStarting, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.TransitionJob(j.ID, store.JobFinished, nil, &finishedAt)
	require.NoError(t, err)
	require.True(t, ok)

	return st, j.ID
}

func TestSweepDeletesJobsOlderThanLeeway(t *testing.T) {
	oldFinish := "2020-01-01T00:00:00Z"
	st, jobID := newTestStoreWithFinishedJob(t, oldFinish)

	fixedNow, err := time.Parse(time.RFC3339, "2026-07-29T00:00:00Z")
	require.NoError(t, err)

	gc := New(st, time.Hour, 24*time.Hour, withClock(func() time.Time { return fixedNow }))
	require.NoError(t, gc.Sweep())

	_, ok, err := st.GetJob(jobID)
	require.NoError(t, err)
	require.False(t, ok, "expected the old finished job to be swept")
}

func TestSweepKeepsJobsWithinLeeway(t *testing.T) {
	fixedNow, err := time.Parse(time.RFC3339, "2026-07-29T00:00:00Z")
	require.NoError(t, err)
	recentFinish := fixedNow.Add(-1 * time.Hour).Format(time.RFC3339)

	st, jobID := newTestStoreWithFinishedJob(t, recentFinish)

	gc := New(st, time.Hour, 24*time.Hour, withClock(func() time.Time { return fixedNow }))
	require.NoError(t, gc.Sweep())

	_, ok, err := st.GetJob(jobID)
	require.NoError(t, err)
	require.True(t, ok, "expected a recently-finished job to survive the sweep")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Stop() })

	gc := New(st, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		gc.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}
