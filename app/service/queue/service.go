package queue

import (
	"log/slog"
	"sync"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Service buffers inbound chat messages between the poller and the engine.
type Service struct {
	mu     sync.RWMutex
	closed bool
	queue  chan Message
}

type Message struct {
	Sender string
	Text   string
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(bufferSize), nil
}

func NewService(size int) *Service {
	return &Service{
		queue: make(chan Message, size),
	}
}

// Add enqueues a message without blocking. It reports false when the
// queue is full or closed.
func (s *Service) Add(sender, text string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.queue <- Message{Sender: sender, Text: text}:
		return true
	default:
		slog.Warn("Message queue is full", "sender", sender)
		return false
	}
}

func (s *Service) Channel() <-chan Message {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}
