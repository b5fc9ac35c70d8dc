package processor

import (
	"sync"
)

// ConcLimiter bounds the number of goroutines a source runs while it
// materialises one sub-region.
type ConcLimiter struct {
	*sync.WaitGroup
	Pool chan struct{}
}

func (c *ConcLimiter) Increase() {
	c.Add(1)
	c.Pool <- struct{}{}
}

func (c *ConcLimiter) Decrease() {
	select {
	case <-c.Pool:
		c.Done()
	default:
	}
}

// ForEach calls fn for i in [0, n) with at most cap(Pool) calls in flight
// and waits for all of them.
func (c *ConcLimiter) ForEach(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		c.Increase()
		go func(i int) {
			defer c.Decrease()
			fn(i)
		}(i)
	}
	c.Wait()
}

func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel < 1 {
		cLevel = 1
	}
	var wg sync.WaitGroup
	return &ConcLimiter{&wg, make(chan struct{}, cLevel)}
}
