package memory

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-sync/internal/repository"
)

type kvStore struct {
	c *cache.Cache
}

// NewKVStore returns a process-local store. ttl of 0 keeps entries forever.
func NewKVStore(ttl time.Duration) repository.KVStore {
	expiration := cache.NoExpiration
	if ttl > 0 {
		expiration = ttl
	}
	return &kvStore{c: cache.New(expiration, 10*time.Minute)}
}

func (s *kvStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return clone(b), true, nil
}

func (s *kvStore) Set(_ context.Context, key string, value []byte) error {
	s.c.SetDefault(key, clone(value))
	return nil
}

func (s *kvStore) Remove(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.c.Delete(k)
	}
	return nil
}

func (s *kvStore) List(_ context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for k, item := range s.c.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		b, _ := item.Object.([]byte)
		out[k] = clone(b)
	}
	return out, nil
}

func (s *kvStore) Ping(context.Context) error {
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
