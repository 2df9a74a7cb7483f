package scope

import "sync"

// supervisor decides whether a scope is entitled to end on behalf of the
// forks it tracks: it counts outstanding user forks and the completion
// of the scope's body, and signals a natural end once both conditions
// are met. A scope that never registers a user fork never meets that
// condition, so it behaves exactly like a no-op supervisor without
// needing a separate implementation.
type supervisor interface {
	forkStarts()
	forkSuccess()
	bodyCompleted()
}

// defaultSupervisor tracks how many user forks are outstanding and
// whether the scope's body has completed, calling onEnd exactly once
// when both become true. It does not look at failures: those are
// reported separately via Scope.fail, and Scope.onSupervisorEnd ignores
// the signal if the scope has already been cancelled.
type defaultSupervisor struct {
	onEnd func()

	mu          sync.Mutex
	outstanding int
	everUser    bool
	bodyDone    bool
	ended       bool
}

func newDefaultSupervisor(onEnd func()) *defaultSupervisor {
	return &defaultSupervisor{onEnd: onEnd}
}

func (s *defaultSupervisor) forkStarts() {
	s.mu.Lock()
	s.outstanding++
	s.everUser = true
	s.mu.Unlock()
}

func (s *defaultSupervisor) forkSuccess() {
	s.mu.Lock()
	s.outstanding--
	end := s.checkEndLocked()
	s.mu.Unlock()
	if end {
		s.onEnd()
	}
}

func (s *defaultSupervisor) bodyCompleted() {
	s.mu.Lock()
	s.bodyDone = true
	end := s.checkEndLocked()
	s.mu.Unlock()
	if end {
		s.onEnd()
	}
}

// checkEndLocked reports whether the natural-end condition has just been
// met for the first time. Must be called with s.mu held.
func (s *defaultSupervisor) checkEndLocked() bool {
	if s.ended || !s.everUser || !s.bodyDone || s.outstanding > 0 {
		return false
	}
	s.ended = true
	return true
}
