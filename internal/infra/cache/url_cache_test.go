package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLCache_GetSet(t *testing.T) {
	c := NewURLCache()
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "https://x", time.Now().Add(time.Minute)))
	url, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "https://x", url)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestURLCache_ExpiredEntries(t *testing.T) {
	c := NewURLCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "old", "u1", now.Add(time.Second)))
	require.NoError(t, c.Set(ctx, "new", "u2", now.Add(time.Hour)))

	now = now.Add(time.Minute)
	_, ok := c.Get(ctx, "old")
	assert.False(t, ok)

	require.NoError(t, c.Clear(ctx))
	c.mutex.RLock()
	assert.Len(t, c.cache, 1)
	c.mutex.RUnlock()
}
