package syncqueue

import "sync"

// Connectivity tracks whether the remote store is believed reachable. It is
// driven by explicit signals from client reports and from the app's remote
// connection loop. It never polls on its own.
type Connectivity struct {
	mu     sync.Mutex
	online bool
	subs   []chan struct{}
}

func NewConnectivity(online bool) *Connectivity {
	return &Connectivity{online: online}
}

func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetOnline marks the link up and reports whether this was a down->up edge.
// Subscribers are notified only on the edge.
func (c *Connectivity) SetOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online {
		return false
	}
	c.online = true
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return true
}

func (c *Connectivity) SetOffline() {
	c.mu.Lock()
	c.online = false
	c.mu.Unlock()
}

// Restored returns a channel signalled on each reconnect. Signals coalesce
// while the receiver is busy.
func (c *Connectivity) Restored() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}
