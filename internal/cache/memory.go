package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Memory is an in-process cache bounded by the total size of stored values.
type Memory struct {
	c *ristretto.Cache[string, []byte]
}

// NewMemory creates a ristretto-backed cache holding at most maxCostBytes of values.
func NewMemory(maxCostBytes int64) (*Memory, error) {
	if maxCostBytes <= 0 {
		maxCostBytes = 32 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{c: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := m.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value and waits for the write buffer to drain so the entry is
// visible to the next Get.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.SetWithTTL(key, value, int64(len(value)), ttl)
	m.c.Wait()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Del(key)
	return nil
}

func (m *Memory) Close() {
	m.c.Close()
}
