package session

import "context"

// lane runs the background writes of one exercise one after another, so log
// entries are issued in the order the user completed the sets.
type lane struct {
	queue   []job
	running bool
}

type job func(ctx context.Context)

// enqueueLocked schedules a write on the exercise's lane. The caller's
// context only contributes values; cancellation of the request that caused
// the write does not abort it.
func (c *Controller) enqueueLocked(ctx context.Context, uiID string, j job) {
	l := c.lanes[uiID]
	if l == nil {
		l = &lane{}
		c.lanes[uiID] = l
	}
	l.queue = append(l.queue, j)
	c.inflight++
	if l.running {
		return
	}
	l.running = true
	c.pending.Add(1)
	go c.drain(context.WithoutCancel(ctx), l)
}

func (c *Controller) drain(ctx context.Context, l *lane) {
	defer c.pending.Done()
	for {
		c.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			c.mu.Unlock()
			return
		}
		j := l.queue[0]
		l.queue = l.queue[1:]
		c.mu.Unlock()

		j(ctx)

		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}
}
