// Package metrics aggregates latency and outcome statistics for the
// exchanges of a webtask session.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

// Collector implements webtask.Observer. It counts exchanges per
// outcome and records latencies in a histogram, overall and per
// operation kind.
type Collector struct {
	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64

	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	perKind   map[webtask.Kind]*hdrhistogram.Histogram
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	Total   int64
	Success int64
	Failed  int64
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
	Max     time.Duration
}

func NewCollector() *Collector {
	return &Collector{
		// 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(1, 60_000_000, 3),
		perKind:   make(map[webtask.Kind]*hdrhistogram.Histogram),
	}
}

// ObserveExchange records one completed exchange.
func (c *Collector) ObserveExchange(kind webtask.Kind, req *webtask.Request, resp *webtask.Response, d time.Duration, err error) {
	c.total.Add(1)
	if err != nil {
		c.failed.Add(1)
	} else {
		c.success.Add(1)
	}

	us := d.Microseconds()
	if us < 1 {
		us = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.histogram.RecordValue(us)
	h, ok := c.perKind[kind]
	if !ok {
		h = hdrhistogram.New(1, 60_000_000, 3)
		c.perKind[kind] = h
	}
	_ = h.RecordValue(us)
}

// Snapshot returns the aggregate statistics across all kinds.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Total:   c.total.Load(),
		Success: c.success.Load(),
		Failed:  c.failed.Load(),
		P50:     time.Duration(c.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:     time.Duration(c.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:     time.Duration(c.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Max:     time.Duration(c.histogram.Max()) * time.Microsecond,
	}
}

// KindCount reports how many exchanges of one kind were observed.
func (c *Collector) KindCount(kind webtask.Kind) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.perKind[kind]
	if !ok {
		return 0
	}
	return h.TotalCount()
}
