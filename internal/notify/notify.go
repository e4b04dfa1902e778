package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kelsos/keeper-sync/internal/logger"
	"github.com/kelsos/keeper-sync/internal/metrics"
)

type Type string

const (
	Info    Type = "info"
	Warning Type = "warning"
	Error   Type = "error"
	Success Type = "success"
)

type Options struct {
	Type      Type   `json:"type"`
	Title     string `json:"title,omitempty"`
	Link      string `json:"link,omitempty"`
	LinkTitle string `json:"linkTitle,omitempty"`
}

type Notification struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Options
	CreatedAt time.Time `json:"createdAt"`
}

// Sink surfaces messages to the user.
type Sink interface {
	Notify(message string, opts Options)
}

// Hub logs every notification, keeps a bounded history and fans out to subscribers.
type Hub struct {
	mu          sync.RWMutex
	limit       int
	history     []Notification
	subscribers map[int]func(Notification)
	nextID      int
}

func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 50
	}
	return &Hub{
		limit:       limit,
		subscribers: make(map[int]func(Notification)),
	}
}

func (h *Hub) Notify(message string, opts Options) {
	if opts.Type == "" {
		opts.Type = Info
	}

	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Options:   opts,
		CreatedAt: time.Now(),
	}

	logNotification(n)
	metrics.Notifications.WithLabelValues(string(opts.Type)).Inc()

	h.mu.Lock()
	h.history = append(h.history, n)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
	subscribers := make([]func(Notification), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		subscribers = append(subscribers, fn)
	}
	h.mu.Unlock()

	for _, fn := range subscribers {
		fn(n)
	}
}

// Recent returns the history, oldest first.
func (h *Hub) Recent() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Notification, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hub) Subscribe(fn func(Notification)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}
}

func logNotification(n Notification) {
	message := strings.TrimSpace(n.Message)
	if n.Title != "" {
		message = n.Title + ": " + message
	}
	if n.Link != "" {
		message += " (" + n.Link + ")"
	}

	switch n.Type {
	case Error:
		logger.Error("%s", message)
	case Warning:
		logger.Warn("%s", message)
	default:
		logger.Info("%s", message)
	}
}
