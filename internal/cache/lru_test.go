package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	assert.False(t, c.Add("a", 1))
	assert.False(t, c.Add("b", 2))

	_, _ = c.Get("a") // b is now LRU
	assert.True(t, c.Add("c", 3))

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUUpdateAndRemove(t *testing.T) {
	c := New[int64, string](4)
	c.Add(1, "old")
	assert.False(t, c.Add(1, "new"))
	v, _ := c.Get(1)
	assert.Equal(t, "new", v)

	c.Remove(1)
	c.Remove(99)
	assert.Equal(t, 0, c.Len())
}

func TestLRUPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[string, int](0) })
}
