package console

import (
	"sync"
	"time"
)

// Notification is the user-visible result of an action.
// The zero value means the notification area is clear.
type Notification struct {
	Message string
	IsError bool
}

// Notifier holds at most one notification at a time. Showing a new one
// replaces the current one; each clears itself after the TTL unless
// replaced first.
type Notifier struct {
	mu      sync.Mutex
	ttl     time.Duration
	current Notification
	gen     uint64
	timer   *time.Timer
	subs    map[int]chan Notification
	nextSub int
}

func NewNotifier(ttl time.Duration) *Notifier {
	return &Notifier{ttl: ttl, subs: map[int]chan Notification{}}
}

// Subscribe returns a stream of notification changes, including clears.
// Slow subscribers miss updates rather than block the sender.
func (n *Notifier) Subscribe() (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSub
	n.nextSub++
	ch := make(chan Notification, 8)
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Current returns the notification on display
func (n *Notifier) Current() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Show replaces the current notification
func (n *Notifier) Show(msg Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	n.current = msg
	n.publish(msg)

	if n.ttl > 0 {
		gen := n.gen
		n.timer = time.AfterFunc(n.ttl, func() { n.expire(gen) })
	}
}

// Clear removes the current notification immediately
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	n.clear()
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// A newer notification owns the display
	if gen != n.gen {
		return
	}
	n.clear()
}

func (n *Notifier) clear() {
	if n.current == (Notification{}) {
		return
	}
	n.current = Notification{}
	n.publish(Notification{})
}

func (n *Notifier) publish(msg Notification) {
	for _, ch := range n.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
