package jobs

import (
	"context"
	"sync"

	"github.com/Popolzen/shortlinks/internal/model"
)

// ProgressStore последний отчёт о прогрессе по задаче
type ProgressStore interface {
	Set(ctx context.Context, id string, p model.Progress) error
	// Get возвращает false, если задача ещё ничего не сообщала
	Get(ctx context.Context, id string) (model.Progress, bool, error)
	Delete(ctx context.Context, id string) error
}

// MemoryProgressStore прогресс в памяти процесса
type MemoryProgressStore struct {
	mu    sync.RWMutex
	items map[string]model.Progress
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{items: map[string]model.Progress{}}
}

func (s *MemoryProgressStore) Set(_ context.Context, id string, p model.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = p
	return nil
}

func (s *MemoryProgressStore) Get(_ context.Context, id string) (model.Progress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	return p, ok, nil
}

func (s *MemoryProgressStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}
