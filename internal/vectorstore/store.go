package vectorstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const dbFileName = "index.db"

// Store hands out collections living under a root directory, one
// subdirectory per collection name. A bbolt file may only be opened once per
// process, so open collections are shared and reference counted; the file is
// closed when the last holder releases it, letting other processes (the
// ingestion worker) take the file lock.
type Store struct {
	root        string
	lockTimeout time.Duration

	mu      sync.Mutex
	open    map[string]*Collection
	opening map[string]*pendingOpen
	closed  bool
}

// pendingOpen lets callers for the same name wait on one bbolt.Open, which may
// block up to the lock timeout, without holding the store mutex.
type pendingOpen struct {
	done chan struct{}
	err  error
}

var errStoreClosed = errors.New("vector store is closed")

func NewStore(root string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index root %s: %w", root, err)
	}
	return &Store{
		root:        root,
		lockTimeout: lockTimeout,
		open:        make(map[string]*Collection),
		opening:     make(map[string]*pendingOpen),
	}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Acquire opens (or creates) the named collection. Every successful Acquire
// must be paired with Release.
func (s *Store) Acquire(name string) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for {
		if s.closed {
			s.mu.Unlock()
			return nil, errStoreClosed
		}
		if c, ok := s.open[name]; ok {
			c.refs++
			s.mu.Unlock()
			return c, nil
		}
		p, ok := s.opening[name]
		if !ok {
			break
		}
		s.mu.Unlock()
		<-p.done
		if p.err != nil {
			return nil, p.err
		}
		// The handle may already be released again; look it up afresh.
		s.mu.Lock()
	}

	p := &pendingOpen{done: make(chan struct{})}
	s.opening[name] = p
	s.mu.Unlock()

	c, err := s.openFile(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.opening, name)
	defer close(p.done)

	if err == nil && s.closed {
		c.db.Close()
		err = errStoreClosed
	}
	if err != nil {
		p.err = err
		return nil, err
	}
	c.refs = 1
	s.open[name] = c
	return c, nil
}

func (s *Store) openFile(name string) (*Collection, error) {
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create collection dir %s: %w", dir, err)
	}
	return openCollection(filepath.Join(dir, dbFileName), name, &bbolt.Options{Timeout: s.lockTimeout})
}

// Release drops one reference and closes the file when none remain.
func (s *Store) Release(c *Collection) error {
	if c == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c.refs--
	if c.refs > 0 {
		return nil
	}
	delete(s.open, c.name)
	return c.db.Close()
}

// Close closes every open collection regardless of outstanding references.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	var errs []error
	for name, c := range s.open {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(s.open, name)
	}
	return errors.Join(errs...)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}
