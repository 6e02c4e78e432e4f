package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// FiberStorage adapts any fiber.Storage (memory, redis, ...) by storing values
// as JSON documents. Delete is atomic within one process only; deployments with
// several instances should use RedisStorage.
type FiberStorage struct {
	backend fiber.Storage
	mu      sync.Mutex
}

func (s *FiberStorage) Get(ctx context.Context, key string, val any) error {
	data, err := s.backend.Get(key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(data, val)
}

func (s *FiberStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	if expiresIn < 0 {
		expiresIn = 0
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.backend.Set(key, data, expiresIn)
}

func (s *FiberStorage) Save(ctx context.Context, key string, val any) error {
	return s.Set(ctx, key, val, -1)
}

// Delete removes key and returns ErrNotFound when it is absent, so that
// concurrent callers consuming the same key see exactly one success.
func (s *FiberStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.backend.Delete(key)
}

func (s *FiberStorage) Exists(ctx context.Context, key string) (bool, error) {
	data, err := s.backend.Get(key)
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

func (s *FiberStorage) Close() error {
	return s.backend.Close()
}

func NewFiberStorage(backend fiber.Storage) *FiberStorage {
	return &FiberStorage{backend: backend}
}
