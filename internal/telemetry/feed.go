package telemetry

import "sync"

// Feed keeps the latest frame and fans new frames out to subscribers. Each
// subscriber holds at most one pending frame; a slow reader only ever sees
// the newest.
type Feed struct {
	mu     sync.Mutex
	latest *Frame
	subs   map[chan *Frame]struct{}
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan *Frame]struct{})}
}

// Publish records f as the latest frame and delivers it to every subscriber.
func (f *Feed) Publish(fr *Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest = fr
	for ch := range f.subs {
		select {
		case ch <- fr:
		default:
			// Replace the stale pending frame. Only Publish sends, under mu,
			// so the second send cannot block.
			select {
			case <-ch:
			default:
			}
			ch <- fr
		}
	}
}

// Latest returns the most recently published frame, or nil.
func (f *Feed) Latest() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel.
func (f *Feed) Subscribe() (<-chan *Frame, func()) {
	ch := make(chan *Frame, 1)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
