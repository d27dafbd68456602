package webtask

import "sync"

// pipeline is the serial, initially-paused handler queue of a Task.
// Units added before start are queued; start drains them in order on a
// single goroutine and is effective exactly once. Units added after
// start run immediately but still serialize on the same run mutex, so
// handlers never overlap.
type pipeline struct {
	mu      sync.Mutex // guards units and started
	runMu   sync.Mutex // serializes unit execution
	units   []func()
	started bool
	done    chan struct{}
}

func newPipeline() *pipeline {
	return &pipeline{done: make(chan struct{})}
}

func (p *pipeline) add(fn func()) {
	p.mu.Lock()
	if !p.started {
		p.units = append(p.units, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	go p.run(fn)
}

func (p *pipeline) run(fn func()) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	fn()
}

// start unpauses the queue. Only the first call has any effect; the
// caller must have finished all state writes the units will read.
func (p *pipeline) start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	units := p.units
	p.units = nil
	p.mu.Unlock()

	go func() {
		for _, fn := range units {
			p.run(fn)
		}
		close(p.done)
	}()
}

// wait blocks until every unit queued before start has run.
func (p *pipeline) wait() {
	<-p.done
}
