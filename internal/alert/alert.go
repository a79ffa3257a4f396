// Package alert implements user notifications raised by the data-access layer.
//
// Alerts are fire-and-forget: callers hand a type, title and message to a
// Notifier and move on. The Center keeps the most recent alerts in memory so the
// UI can poll and dismiss them.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type is the severity of an alert.
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeSuccess Type = "success"
)

// DefaultMaxRetained is used when NewCenter is given a non-positive size.
const DefaultMaxRetained = 100

// Alert is a single user-facing notification.
type Alert struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notifier receives alerts. Implementations must not block.
type Notifier interface {
	AddCustomAlert(kind Type, title, message string, persistent bool)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(kind Type, title, message string, persistent bool)

// AddCustomAlert calls f.
func (f NotifierFunc) AddCustomAlert(kind Type, title, message string, persistent bool) {
	f(kind, title, message, persistent)
}

// Discard drops every alert.
var Discard Notifier = NotifierFunc(func(Type, string, string, bool) {})

// Center is an in-memory Notifier that retains the newest alerts.
// When full, the oldest non-persistent alert is dropped first.
type Center struct {
	mu      sync.Mutex
	alerts  []Alert
	maxSize int
	now     func() time.Time
}

// NewCenter creates a Center retaining at most maxRetained alerts.
func NewCenter(maxRetained int) *Center {
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	return &Center{
		alerts:  make([]Alert, 0, maxRetained),
		maxSize: maxRetained,
		now:     time.Now,
	}
}

// AddCustomAlert records an alert and logs it.
func (c *Center) AddCustomAlert(kind Type, title, message string, persistent bool) {
	a := Alert{
		ID:         uuid.New().String(),
		Type:       kind,
		Title:      title,
		Message:    message,
		Persistent: persistent,
		CreatedAt:  c.now(),
	}

	c.mu.Lock()
	if len(c.alerts) >= c.maxSize {
		c.dropOldest()
	}
	c.alerts = append(c.alerts, a)
	c.mu.Unlock()

	level := slog.LevelInfo
	switch kind {
	case TypeWarning:
		level = slog.LevelWarn
	case TypeError:
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "alert raised", "alert_id", a.ID, "type", kind, "title", title, "message", message)
}

// dropOldest must be called with c.mu held.
func (c *Center) dropOldest() {
	for i, a := range c.alerts {
		if !a.Persistent {
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			return
		}
	}
	c.alerts = c.alerts[1:]
}

// List returns a copy of the retained alerts, oldest first.
func (c *Center) List() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Dismiss removes an alert by ID. Returns false if no such alert exists.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, a := range c.alerts {
		if a.ID == id {
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of retained alerts.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}
