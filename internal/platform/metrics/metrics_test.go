package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 2*time.Millisecond)
	c.NamesResolved(5, 2)
	c.BatchSaved()
	c.ReportExported()

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap["requestsTotal"])
	assert.Equal(t, uint64(1), snap["errorsTotal"])
	assert.Equal(t, uint64(1), snap["rateLimitedTotal"])
	assert.Equal(t, uint64(42), snap["totalDurationMs"])
	assert.InDelta(t, 14.0, snap["avgDurationMs"], 0.001)
	assert.Equal(t, uint64(5), snap["namesResolvedTotal"])
	assert.Equal(t, uint64(2), snap["lowConfidenceTotal"])
	assert.Equal(t, uint64(1), snap["batchesSavedTotal"])
	assert.Equal(t, uint64(1), snap["reportsExportedTotal"])
}

func TestSnapshotEmpty(t *testing.T) {
	snap := New().Snapshot()
	assert.Equal(t, float64(0), snap["avgDurationMs"])
}
