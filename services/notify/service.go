// Package notify delivers transient user-facing messages (toasts). Delivery
// is fire and forget: no caller logic depends on a message arriving.
package notify

import (
	"log"
	"sync"
	"time"
)

// Severity levels for toasts.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Toast is one user-visible message.
type Toast struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Service fans toasts out to subscribers. Slow subscribers drop messages
// rather than block the caller.
type Service struct {
	mu   sync.Mutex
	subs []chan Toast
}

// NewService creates an empty notifier.
func NewService() *Service {
	return &Service{}
}

// Error emits an error toast.
func (s *Service) Error(msg string) { s.emit(LevelError, msg) }

// Info emits an informational toast.
func (s *Service) Info(msg string) { s.emit(LevelInfo, msg) }

func (s *Service) emit(level, msg string) {
	toast := Toast{Level: level, Message: msg, At: time.Now().UTC()}
	s.mu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- toast:
		default:
		}
	}
	s.mu.Unlock()
}

// Subscribe registers a toast channel. The returned func unsubscribes.
func (s *Service) Subscribe() (<-chan Toast, func()) {
	ch := make(chan Toast, 8)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// LogNotifier writes toasts to the process log. Useful for headless runs and
// tests that only care that a message fired.
type LogNotifier struct{}

func (LogNotifier) Error(msg string) { log.Printf("[notify] error: %s", msg) }
func (LogNotifier) Info(msg string)  { log.Printf("[notify] info: %s", msg) }
