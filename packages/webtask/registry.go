package webtask

import "sync"

// Registry maps in-flight operation identifiers to their owning Tasks
// and routes authentication challenges from transport threads to the
// right Task. Entries live only while the operation is in flight:
// inserted just before the operation starts, removed by its terminal
// callback. Caller threads register while transport threads look up
// and remove, so access is mutex-guarded.
type Registry struct {
	mu    sync.RWMutex
	tasks map[int]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[int]*Task)}
}

// Register inserts or overwrites; call sites guarantee one id per live
// operation.
func (r *Registry) Register(id int, t *Task) {
	r.mu.Lock()
	r.tasks[id] = t
	r.mu.Unlock()
}

func (r *Registry) Lookup(id int) (*Task, bool) {
	r.mu.RLock()
	t, ok := r.tasks[id]
	r.mu.RUnlock()
	return t, ok
}

// Remove deletes the entry; a no-op for unknown ids.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

// HandleChallenge forwards a challenge to the owning Task. Unknown ids
// answer with default handling immediately so the transport is never
// left waiting on a response.
func (r *Registry) HandleChallenge(id int, ch *Challenge, respond func(Disposition, *Credential)) {
	t, ok := r.Lookup(id)
	if !ok {
		respond(DispositionDefault, nil)
		return
	}
	t.handleChallenge(ch, respond)
}
