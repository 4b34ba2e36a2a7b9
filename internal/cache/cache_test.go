package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGetDel(t *testing.T) {
	c, err := New(1<<20, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("metrics:a1")
	assert.False(t, ok)

	c.Set("metrics:a1", 42)
	v, ok := c.Get("metrics:a1")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	c.Del("metrics:a1")
	_, ok = c.Get("metrics:a1")
	assert.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c, err := New(1<<20, 20*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", "v")
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}
