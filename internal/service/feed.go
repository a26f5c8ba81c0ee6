package service

import (
	"sync"

	"github.com/jengzang/roadsim-backend-go/internal/models"
)

// feedBuffer is how many snapshots a slow subscriber may lag behind before
// it starts missing them
const feedBuffer = 16

// feed fans step snapshots out to the stream subscribers of one run
type feed struct {
	mu     sync.Mutex
	subs   map[chan *models.RunSnapshot]struct{}
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[chan *models.RunSnapshot]struct{})}
}

func (f *feed) subscribe() (<-chan *models.RunSnapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan *models.RunSnapshot, feedBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
	}
}

func (f *feed) publish(snap *models.RunSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}
