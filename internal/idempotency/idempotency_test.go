package idempotency

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/orders/create", nil)
	assert.Equal(t, "", Key(r))

	r.Header.Set(HeaderKey, "  abc-123 ")
	assert.Equal(t, "abc-123", Key(r))
}

func TestMemoryStore_AcquireOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var acquired int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Acquire(ctx, "k", time.Minute)
			require.NoError(t, err)
			if ok {
				atomic.AddInt32(&acquired, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired)

	require.NoError(t, s.Release(ctx, "k"))
	ok, err := s.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_Expires(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ok, _ := s.Acquire(context.Background(), "k", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = s.Acquire(context.Background(), "k", time.Minute)
	assert.True(t, ok, "expired key can be acquired again")
}
