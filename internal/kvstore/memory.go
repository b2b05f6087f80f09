package kvstore

import (
	"context"
	"sync"
)

type cellKey struct {
	ns  string
	key string
}

// MemoryStore is an in-process Store backed by a guarded map, used in tests
// and for a VASP's ephemeral/dev deployment. It serializes the whole store
// behind one mutex for the duration of a transaction window, which is
// sufficient here because callers already hold their channel's lock across
// the same window.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[cellKey][]byte
	inTx     bool
	writes   map[cellKey][]byte
	deletes  map[cellKey]bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[cellKey][]byte)}
}

func (s *MemoryStore) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.inTx {
		s.mu.Unlock()
		return ErrTransactionInProgress
	}
	s.inTx = true
	s.writes = make(map[cellKey][]byte)
	s.deletes = make(map[cellKey]bool)
	return nil
}

func (s *MemoryStore) Commit(ctx context.Context) error {
	if !s.inTx {
		return nil
	}
	for k := range s.deletes {
		delete(s.data, k)
	}
	for k, v := range s.writes {
		s.data[k] = v
	}
	s.endTx()
	return nil
}

func (s *MemoryStore) Rollback(ctx context.Context) error {
	if !s.inTx {
		return nil
	}
	s.endTx()
	return nil
}

// endTx clears transaction staging and releases the store-wide lock
// acquired by Begin. Callers must hold s.mu.
func (s *MemoryStore) endTx() {
	s.inTx = false
	s.writes = nil
	s.deletes = nil
	s.mu.Unlock()
}

func (s *MemoryStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	k := cellKey{ns: HashNamespace(ns), key: key}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTx {
		if s.deletes[k] {
			return nil, ErrNotFound
		}
		if v, ok := s.writes[k]; ok {
			return cloneBytes(v), nil
		}
	}
	v, ok := s.data[k]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

func (s *MemoryStore) Put(ctx context.Context, ns Namespace, key string, value []byte) error {
	if !s.inTx {
		return ErrNoTransaction
	}
	k := cellKey{ns: HashNamespace(ns), key: key}
	delete(s.deletes, k)
	s.writes[k] = cloneBytes(value)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if !s.inTx {
		return ErrNoTransaction
	}
	k := cellKey{ns: HashNamespace(ns), key: key}
	if _, ok := s.writes[k]; !ok {
		if _, ok := s.data[k]; !ok {
			return ErrNotFound
		}
	}
	delete(s.writes, k)
	s.deletes[k] = true
	return nil
}

func (s *MemoryStore) Contains(ctx context.Context, ns Namespace, key string) (bool, error) {
	_, err := s.Get(ctx, ns, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) IterateKeys(ctx context.Context, ns Namespace) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := HashNamespace(ns)
	seen := make(map[string]bool)
	var out []string
	for k := range s.data {
		if k.ns != h || (s.inTx && s.deletes[k]) {
			continue
		}
		if !seen[k.key] {
			seen[k.key] = true
			out = append(out, k.key)
		}
	}
	if s.inTx {
		for k := range s.writes {
			if k.ns == h && !seen[k.key] {
				seen[k.key] = true
				out = append(out, k.key)
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, ns Namespace) (int, error) {
	keys, err := s.IterateKeys(ctx, ns)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
