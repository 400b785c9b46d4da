package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/storage/memory/v2"
)

// MemoryStorage keeps JSON-encoded values in process memory. Entries are not
// shared between instances, so it suits single-node deployments and tests.
type MemoryStorage struct {
	mem *memory.Storage
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	data, err := s.mem.Get(key)
	if err != nil {
		return err
	}
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, val)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	if expiresIn <= 0 {
		return s.Save(ctx, key, val)
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.mem.Set(key, data, expiresIn)
}

func (s *MemoryStorage) Save(ctx context.Context, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.mem.Set(key, data, 0)
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if exists, err := s.Exists(ctx, key); err != nil {
		return err
	} else if !exists {
		return ErrNotFound
	}
	return s.mem.Delete(key)
}

func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	data, err := s.mem.Get(key)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

func (s *MemoryStorage) Close() error {
	return s.mem.Close()
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		mem: memory.New(),
	}
}
