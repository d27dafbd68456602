package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

func TestCollector_CountsOutcomes(t *testing.T) {
	c := NewCollector()
	req := webtask.NewRequest("GET", "/a")

	c.ObserveExchange(webtask.Fetch, req, &webtask.Response{StatusCode: 200}, 10*time.Millisecond, nil)
	c.ObserveExchange(webtask.Fetch, req, &webtask.Response{StatusCode: 200}, 20*time.Millisecond, nil)
	c.ObserveExchange(webtask.Upload, req, nil, 5*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(2), snap.Success)
	assert.Equal(t, int64(1), snap.Failed)
}

func TestCollector_LatencyQuantiles(t *testing.T) {
	c := NewCollector()
	req := webtask.NewRequest("GET", "/a")

	for i := 1; i <= 100; i++ {
		c.ObserveExchange(webtask.Fetch, req, nil, time.Duration(i)*time.Millisecond, nil)
	}

	snap := c.Snapshot()
	assert.InDelta(t, (50 * time.Millisecond).Microseconds(), snap.P50.Microseconds(), 2000)
	assert.InDelta(t, (95 * time.Millisecond).Microseconds(), snap.P95.Microseconds(), 2000)
	assert.GreaterOrEqual(t, snap.Max, snap.P99)
}

func TestCollector_PerKindCounts(t *testing.T) {
	c := NewCollector()
	req := webtask.NewRequest("GET", "/a")

	c.ObserveExchange(webtask.Fetch, req, nil, time.Millisecond, nil)
	c.ObserveExchange(webtask.Download, req, nil, time.Millisecond, nil)
	c.ObserveExchange(webtask.Download, req, nil, time.Millisecond, nil)

	assert.Equal(t, int64(1), c.KindCount(webtask.Fetch))
	assert.Equal(t, int64(2), c.KindCount(webtask.Download))
	assert.Equal(t, int64(0), c.KindCount(webtask.Upload))
}
