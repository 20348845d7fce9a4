package messenger

import (
	"context"
	"sync"
)

type Sent struct {
	To   string
	Body string
}

// Recorder keeps sent messages in memory. Err, when set, is returned by
// every Send after the message is recorded.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) Send(_ context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, Sent{To: to, Body: body})

	return r.Err
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = nil
}
