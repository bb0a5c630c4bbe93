package registry

import (
	"context"
	"sync"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
)

var _ Registry = (*synchronized)(nil)

// Synchronized wraps r so that mutations exclude every
// other call and reads exclude only mutations. Event
// delivery happens inside the lock, so sinks observe
// events in the order the mutations were applied.
func Synchronized(r Registry) Registry {
	return &synchronized{registry: r}
}

type synchronized struct {
	mu       sync.RWMutex
	registry Registry
}

func (s *synchronized) Create(ctx context.Context, caller Identity, title string, url string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.registry.Create(ctx, caller, title, url)
}

func (s *synchronized) VoteUp(ctx context.Context, caller Identity, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.registry.VoteUp(ctx, caller, id)
}

func (s *synchronized) Get(ctx context.Context, id uint32) (memevotepb.Meme, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.registry.Get(ctx, id)
}

func (s *synchronized) ListRange(ctx context.Context, from int64, limit int) ([]memevotepb.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.registry.ListRange(ctx, from, limit)
}

func (s *synchronized) ListTopRanked(ctx context.Context, limit int) ([]memevotepb.Meme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.registry.ListTopRanked(ctx, limit)
}

func (s *synchronized) HasVoted(ctx context.Context, identity Identity, id uint32) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.registry.HasVoted(ctx, identity, id)
}

func (s *synchronized) TotalCount(ctx context.Context) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.registry.TotalCount(ctx)
}
