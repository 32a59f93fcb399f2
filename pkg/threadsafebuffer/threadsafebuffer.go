// Package threadsafebuffer provides a bytes.Buffer safe for concurrent
// writes, for tests that point a logger at a buffer from more than one
// goroutine.
package threadsafebuffer

import (
	"bytes"
	"sync"
)

// ThreadSafeBuffer wraps bytes.Buffer with a mutex around every method.
type ThreadSafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *ThreadSafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *ThreadSafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
