package game

import "sync"

// studentLocks serializes progress mutations per student. Submissions for
// different students never contend; two concurrent submissions for the same
// student take turns through the read-modify-write of the progress document.
type studentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newStudentLocks() *studentLocks {
	return &studentLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given student id, creating it on first use.
// The caller must call the returned unlock function.
func (l *studentLocks) acquire(studentID string) func() {
	l.mu.Lock()
	m, ok := l.locks[studentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[studentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
