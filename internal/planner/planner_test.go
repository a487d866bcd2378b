package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retz/retz/internal/store"
)

func job(id int64, priority int, cpu, memMB int) store.Job {
	return store.Job{
		ID:       id,
		Priority: priority,
		State:    store.JobQueued,
		Resources: store.Resources{
			CPU:   cpu,
			MemMB: memMB,
		},
	}
}

func TestFIFOMatchesSubmissionOrder(t *testing.T) {
	offers := []Offer{{ID: "o1", Resources: store.Resources{CPU: 4, MemMB: 4096}}}
	queued := []store.Job{job(1, 0, 2, 1024), job(2, 0, 2, 1024), job(3, 0, 2, 1024)}

	plan := FIFO().Plan(offers, queued)

	require.Len(t, plan.Launches, 2)
	assert.Equal(t, int64(1), plan.Launches[0].Job.ID)
	assert.Equal(t, int64(2), plan.Launches[1].Job.ID)
}

func TestFIFOStrictPrefixDoesNotSkip(t *testing.T) {
	offers := []Offer{{ID: "o1", Resources: store.Resources{CPU: 2, MemMB: 1024}}}
	// job 1 doesn't fit; job 2 would fit but must not be launched ahead of
	// job 1 (the Open Question decision: no skip-ahead bin packing).
	queued := []store.Job{job(1, 0, 4, 4096), job(2, 0, 1, 128)}

	plan := FIFO().Plan(offers, queued)

	assert.Empty(t, plan.Launches)
	assert.Equal(t, []string{"o1"}, plan.Decline)
}

func TestPriorityOrdersLowestNumberFirst(t *testing.T) {
	offers := []Offer{{ID: "o1", Resources: store.Resources{CPU: 1, MemMB: 1024}}}
	queued := []store.Job{job(1, 5, 1, 128), job(2, 1, 1, 128)}

	plan := Priority().Plan(offers, queued)

	require.Len(t, plan.Launches, 1)
	assert.Equal(t, int64(2), plan.Launches[0].Job.ID, "job with priority 1 should be picked over priority 5")
}

func TestPriorityTiesKeepSubmissionOrder(t *testing.T) {
	offers := []Offer{{ID: "o1", Resources: store.Resources{CPU: 4, MemMB: 4096}}}
	queued := []store.Job{job(1, 3, 1, 128), job(2, 3, 1, 128)}

	plan := Priority().Plan(offers, queued)

	require.Len(t, plan.Launches, 2)
	assert.Equal(t, int64(1), plan.Launches[0].Job.ID)
	assert.Equal(t, int64(2), plan.Launches[1].Job.ID)
}

func TestPlanSpansMultipleOffers(t *testing.T) {
	offers := []Offer{
		{ID: "o1", Resources: store.Resources{CPU: 1, MemMB: 1024}},
		{ID: "o2", Resources: store.Resources{CPU: 1, MemMB: 1024}},
	}
	queued := []store.Job{job(1, 0, 1, 1024), job(2, 0, 1, 1024)}

	plan := FIFO().Plan(offers, queued)

	require.Len(t, plan.Launches, 2)
	assert.Empty(t, plan.Decline)
}

func TestPlanDeclinesUnusedOffers(t *testing.T) {
	offers := []Offer{
		{ID: "o1", Resources: store.Resources{CPU: 4, MemMB: 4096}},
		{ID: "o2", Resources: store.Resources{CPU: 4, MemMB: 4096}},
	}
	queued := []store.Job{job(1, 0, 1, 128)}

	plan := FIFO().Plan(offers, queued)

	require.Len(t, plan.Launches, 1)
	assert.Equal(t, "o1", plan.Launches[0].OfferID)
	assert.Equal(t, []string{"o2"}, plan.Decline)
}

func TestPlanEmptyQueueDeclinesEverything(t *testing.T) {
	offers := []Offer{{ID: "o1", Resources: store.Resources{CPU: 4, MemMB: 4096}}}

	plan := FIFO().Plan(offers, nil)

	assert.Empty(t, plan.Launches)
	assert.Equal(t, []string{"o1"}, plan.Decline)
}
