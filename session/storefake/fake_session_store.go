// Package storefake provides an in-memory session.Store for tests and
// single-process deployments without a Redis backend.
package storefake

import (
	"context"
	"sync"
	"time"

	"github.com/sealantern/go-auth-service/session"
)

var _ session.Store = (*FakeSessionStore)(nil)

type record struct {
	value     string
	expiresAt time.Time
}

// FakeSessionStore keeps records in a TTL-checked map. NowFunc can be
// overridden to step time in tests.
type FakeSessionStore struct {
	records map[string]record
	lock    sync.RWMutex

	NowFunc func() time.Time
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		records: make(map[string]record),
		NowFunc: time.Now,
	}
}

func (s *FakeSessionStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.records[key] = record{value: value, expiresAt: s.NowFunc().Add(ttl)}
	return nil
}

func (s *FakeSessionStore) Get(_ context.Context, key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rec, ok := s.records[key]
	if !ok || s.NowFunc().After(rec.expiresAt) {
		return "", session.ErrNotFound
	}
	return rec.value, nil
}

func (s *FakeSessionStore) Delete(_ context.Context, key string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false, nil
	}
	delete(s.records, key)
	if s.NowFunc().After(rec.expiresAt) {
		return false, nil
	}
	return true, nil
}
