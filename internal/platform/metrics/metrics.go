package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
	namesResolved   uint64
	lowConfidence   uint64
	batchesSaved    uint64
	reportsExported uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// NamesResolved counts schedule names run through the matcher and how many
// of them came back below the confidence threshold.
func (c *Collector) NamesResolved(total, low int) {
	atomic.AddUint64(&c.namesResolved, uint64(total))
	atomic.AddUint64(&c.lowConfidence, uint64(low))
}

func (c *Collector) BatchSaved() {
	atomic.AddUint64(&c.batchesSaved, 1)
}

func (c *Collector) ReportExported() {
	atomic.AddUint64(&c.reportsExported, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":        total,
		"errorsTotal":          errs,
		"rateLimitedTotal":     limited,
		"avgDurationMs":        avg,
		"totalDurationMs":      totalMs,
		"namesResolvedTotal":   atomic.LoadUint64(&c.namesResolved),
		"lowConfidenceTotal":   atomic.LoadUint64(&c.lowConfidence),
		"batchesSavedTotal":    atomic.LoadUint64(&c.batchesSaved),
		"reportsExportedTotal": atomic.LoadUint64(&c.reportsExported),
	}
}
