package webtask

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipeline_HoldsUnitsUntilStart(t *testing.T) {
	p := newPipeline()

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		p.add(func() { ran.Add(1) })
	}

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())

	p.start()
	p.wait()
	assert.Equal(t, int32(3), ran.Load())
}

func TestPipeline_DrainsInOrder(t *testing.T) {
	p := newPipeline()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		n := i
		p.add(func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		})
	}

	p.start()
	p.wait()

	mu.Lock()
	defer mu.Unlock()
	for i, n := range order {
		assert.Equal(t, i, n)
	}
}

func TestPipeline_StartIsIdempotent(t *testing.T) {
	p := newPipeline()

	var ran atomic.Int32
	p.add(func() { ran.Add(1) })

	p.start()
	p.wait()
	assert.NotPanics(t, p.start)
	assert.Equal(t, int32(1), ran.Load())
}

func TestPipeline_LateUnitsStillSerialize(t *testing.T) {
	p := newPipeline()

	var mu sync.Mutex
	count := 0
	unit := func() {
		mu.Lock()
		count++
		mu.Unlock()
	}

	p.add(unit)
	p.start()
	p.wait()

	var wg sync.WaitGroup
	done := make(chan struct{})
	p.add(func() { unit(); close(done) })
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-done
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}
