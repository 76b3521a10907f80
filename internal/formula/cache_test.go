package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	c, err := NewCache(2, Limits{})
	require.NoError(t, err)

	p1, err := c.Get("1 + 2")
	require.NoError(t, err)
	p2, err := c.Get("1 + 2")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, c.Len())

	_, err = c.Get("3 * 4")
	require.NoError(t, err)
	_, err = c.Get("5 - 6")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.Get("1 +")
	assert.Error(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestCacheRejectsBadSize(t *testing.T) {
	_, err := NewCache(0, Limits{})
	assert.Error(t, err)
}
