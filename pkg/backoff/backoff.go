// Package backoff provides a multiplicative-interval ticker for
// operations that may transiently fail, such as removing a socket file
// still held open by another process, and need to be retried on a
// progressively longer interval rather than hammered at a fixed rate.
package backoff

import (
	"sync"
	"time"
)

type multiplicativeCounter struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newMultiplicativeCounter(base, max time.Duration) *multiplicativeCounter {
	return &multiplicativeCounter{base: base, max: max}
}

// next returns the next interval: base, 2*base, 3*base, ... capped at max.
func (c *multiplicativeCounter) next() time.Duration {
	c.current += c.base
	if c.current > c.max {
		c.current = c.max
	}
	return c.current
}

// MultiplicativeTicker is like time.Ticker, except the interval between
// ticks grows multiplicatively (base, 2*base, 3*base, ...) up to max
// instead of staying fixed.
type MultiplicativeTicker struct {
	C <-chan time.Time

	c    chan time.Time
	stop chan struct{}
	once sync.Once
}

// NewMultiplicativeTicker starts a MultiplicativeTicker ticking on base,
// 2*base, 3*base, ... capped at max.
func NewMultiplicativeTicker(base, max time.Duration) *MultiplicativeTicker {
	c := make(chan time.Time, 1)
	t := &MultiplicativeTicker{
		C:    c,
		c:    c,
		stop: make(chan struct{}),
	}

	go func() {
		counter := newMultiplicativeCounter(base, max)
		for {
			timer := time.NewTimer(counter.next())
			select {
			case <-t.stop:
				timer.Stop()
				return
			case tick := <-timer.C:
				select {
				case t.c <- tick:
				case <-t.stop:
					return
				}
			}
		}
	}()

	return t
}

// Stop halts the ticker. Safe to call more than once.
func (t *MultiplicativeTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
}
