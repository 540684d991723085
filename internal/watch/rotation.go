package watch

import "sync"

// rotor hands out indexes round-robin so a multi-target source spreads
// its polls evenly across sub-targets, one per tick.
type rotor struct {
	mu     sync.Mutex
	cursor int
}

func (r *rotor) next(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.cursor % n
	r.cursor = (r.cursor + 1) % n
	return i
}
