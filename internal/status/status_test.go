package status

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retz/retz/internal/broker"
	"github.com/retz/retz/internal/dispatcher"
	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/store"
)

func newTestReporter(t *testing.T) (*Reporter, *store.Store, *dispatcher.Dispatcher) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Stop() })

	u, err := st.CreateUser("owner")
	require.NoError(t, err)
	ok, err := st.AddApplication(store.Application{AppID: "app-1", Owner: u.KeyID})
	require.NoError(t, err)
	require.True(t, ok)

	fb := broker.NewFake("fw-1")
	dp := dispatcher.New(st, fb, planner.FIFO(), "fifo")
	r := New(st, dp, "0.1.0-test")
	return r, st, dp
}

func TestSnapshotReportsQueueLength(t *testing.T) {
	r, st, _ := newTestReporter(t)

	_, err := st.AddJob(store.Job{AppID: "app-1", Name: "a", Cmd: "true"})
	require.NoError(t, err)
	_, err = st.AddJob(store.Job{AppID: "app-1", Name: "b", Cmd: "true"})
	require.NoError(t, err)

	report, err := r.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 2, report.QueueLength)
	require.Equal(t, 0, report.RunningLength)
	require.Equal(t, "0.1.0-test", report.Version)
}

func TestSnapshotReportsRunningAndResources(t *testing.T) {
	r, st, _ := newTestReporter(t)

	j, err := st.AddJob(store.Job{AppID: "app-1", Name: "a", Cmd: "true", Resources: store.Resources{CPU: 2, MemMB: 512}})
	require.NoError(t, err)
	ok, err := st.TransitionJob(j.ID, store.JobStarting, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	report, err := r.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 0, report.QueueLength)
	require.Equal(t, 1, report.RunningLength)
	require.Equal(t, store.Resources{CPU: 2, MemMB: 512}, report.TotalUsed)
}

func TestRecordOfferCycleTracksSlavesAndOffered(t *testing.T) {
	r, _, _ := newTestReporter(t)

	r.RecordOfferCycle([]planner.Offer{
		{ID: "o1", SlaveID: "slave-1", Resources: store.Resources{CPU: 2, MemMB: 1024}},
		{ID: "o2", SlaveID: "slave-2", Resources: store.Resources{CPU: 4, MemMB: 2048}},
	})

	report, err := r.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 2, report.NumSlaves)
	require.Equal(t, store.Resources{CPU: 6, MemMB: 3072}, report.TotalOffered)
}

func TestSnapshotReflectsConnectionState(t *testing.T) {
	r, _, dp := newTestReporter(t)

	report, err := r.Snapshot()
	require.NoError(t, err)
	require.False(t, report.Connected)

	dp.OnReregistered("fw-1")

	report, err = r.Snapshot()
	require.NoError(t, err)
	require.True(t, report.Connected)
}
