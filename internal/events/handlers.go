package events

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogConfig configures LogHandler.
type LogConfig struct {
	// Writer is where events are logged (default: os.Stderr).
	Writer io.Writer

	// IncludePayload includes the event's payload in the log line.
	IncludePayload bool

	// TimeFormat formats the event timestamp (default: time.RFC3339).
	TimeFormat string
}

// LogHandler returns a Handler that writes one line per event:
// "<time> [type] job=N app=X task=Y".
func LogHandler(cfg LogConfig) Handler {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	return func(e Event) {
		var buf strings.Builder
		buf.WriteString(e.Time.Format(cfg.TimeFormat))
		buf.WriteString(" ")
		buf.WriteString(e.String())
		if cfg.IncludePayload && e.Payload != nil {
			fmt.Fprintf(&buf, " payload=%v", e.Payload)
		}
		buf.WriteString("\n")
		fmt.Fprint(cfg.Writer, buf.String())
	}
}

// CountHandler tallies events by type, letting a caller (such as a test)
// inspect counts without re-deriving them from the Store.
type CountHandler struct {
	mu     sync.Mutex
	counts map[EventType]int
}

// NewCountHandler returns a ready CountHandler; pass its Handle method to
// Bus.Subscribe.
func NewCountHandler() *CountHandler {
	return &CountHandler{counts: make(map[EventType]int)}
}

// Handle implements Handler.
func (c *CountHandler) Handle(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[e.Type]++
}

// Count returns how many events of type t have been observed.
func (c *CountHandler) Count(t EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[t]
}
