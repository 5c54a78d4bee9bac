package playback

import (
	"fmt"
	"sync/atomic"
)

// idGenerator hands out request ids unique within one controller.
type idGenerator struct {
	counter uint64
}

func (g *idGenerator) Next(prefix string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-req-%d", prefix, n)
}
