package metrics

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSuccessAndFailure(t *testing.T) {
	a := New(nil)

	a.RecordSuccess(12.5, false)
	a.RecordSuccess(7.5, true)
	a.RecordFailure()

	snap := a.Snapshot()
	assert.EqualValues(t, 3, snap.TotalQueries)
	assert.EqualValues(t, 2, snap.Successes)
	assert.EqualValues(t, 1, snap.Failures)
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.InDelta(t, 10.0, snap.AvgLatencyMs, 0.001)
}

func TestSnapshotZeroValueBeforeAnyQueries(t *testing.T) {
	a := New(nil)
	snap := a.Snapshot()

	assert.Zero(t, snap.TotalQueries)
	assert.Zero(t, snap.AvgLatencyMs)
	assert.Zero(t, snap.CacheHitPct)
}

func TestWriteCSVRewritesNotAppends(t *testing.T) {
	a := New(nil)
	a.RecordSuccess(5, false)

	path := t.TempDir() + "/metrics.csv"
	require.NoError(t, a.WriteCSV(path))

	a.RecordSuccess(5, false)
	require.NoError(t, a.WriteCSV(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 2, lines, "metrics CSV must always be exactly header + one values row")
}
