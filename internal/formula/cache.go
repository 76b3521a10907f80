package formula

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes compiled programs by source text. Module expansion stamps
// the same template bodies out many times, so hit rates are high. Compile
// failures are not cached; they are cheap to reproduce and rare.
type Cache struct {
	limits Limits
	lru    *lru.Cache[string, *Program]
}

// NewCache builds a cache holding up to size programs.
func NewCache(size int, limits Limits) (*Cache, error) {
	c, err := lru.New[string, *Program](size)
	if err != nil {
		return nil, fmt.Errorf("formula cache: %w", err)
	}
	return &Cache{limits: limits, lru: c}, nil
}

// Get returns the compiled program for src, compiling on a miss.
func (c *Cache) Get(src string) (*Program, error) {
	if p, ok := c.lru.Get(src); ok {
		return p, nil
	}
	p, err := Compile(src, c.limits)
	if err != nil {
		return nil, err
	}
	c.lru.Add(src, p)
	return p, nil
}

// Len reports the number of cached programs.
func (c *Cache) Len() int { return c.lru.Len() }
