package ingestion

import (
	"sync"

	"github.com/poiesic/duograph/core"
)

// docLocks serializes operations per document ID: at most one in-flight
// ingest, update, or delete per document, while unrelated documents proceed
// freely. Entries are reference counted so the map does not grow with the
// store.
type docLocks struct {
	mu   sync.Mutex
	held map[core.ID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newDocLocks() *docLocks {
	return &docLocks{held: make(map[core.ID]*lockEntry)}
}

func (l *docLocks) lock(id core.ID) {
	l.mu.Lock()
	entry, ok := l.held[id]
	if !ok {
		entry = &lockEntry{}
		l.held[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *docLocks) unlock(id core.ID) {
	l.mu.Lock()
	entry := l.held[id]
	entry.refs--
	if entry.refs == 0 {
		delete(l.held, id)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
