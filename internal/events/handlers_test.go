package events

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	handler(New(JobStarting).ForJob(1).WithTaskID("task-1"))

	output := buf.String()
	if !strings.Contains(output, "[job.starting]") {
		t.Errorf("expected output to contain [job.starting], got: %s", output)
	}
	if !strings.Contains(output, "job=1") {
		t.Errorf("expected output to contain job=1, got: %s", output)
	}
	if !strings.Contains(output, "task=task-1") {
		t.Errorf("expected output to contain task=task-1, got: %s", output)
	}
}

func TestLogHandlerDefaultWriter(t *testing.T) {
	handler := LogHandler(LogConfig{})
	// Should not panic with a nil Writer (defaults to os.Stderr).
	handler(New(FrameworkRegistered))
}

func TestLogHandlerIncludePayload(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf, IncludePayload: true})

	handler(New(RetentionSwept).WithPayload(map[string]int{"deleted": 2}))

	output := buf.String()
	if !strings.Contains(output, "payload=") {
		t.Errorf("expected output to contain payload=, got: %s", output)
	}
}

func TestLogHandlerCustomTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf, TimeFormat: time.RFC822})
	handler(New(FrameworkRegistered))

	if buf.Len() == 0 {
		t.Error("expected output to be written")
	}
}

func TestLogHandlerSchedulerWideEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	handler(New(FrameworkRegistered))

	output := buf.String()
	if !strings.Contains(output, "[framework.registered]") {
		t.Errorf("expected output to contain [framework.registered], got: %s", output)
	}
	if strings.Contains(output, "job=") {
		t.Errorf("scheduler-wide event should not contain job info, got: %s", output)
	}
}

func TestCountHandlerCounts(t *testing.T) {
	c := NewCountHandler()

	c.Handle(New(JobQueued))
	c.Handle(New(JobQueued))
	c.Handle(New(JobFinished))

	if got := c.Count(JobQueued); got != 2 {
		t.Errorf("expected 2 JobQueued events, got %d", got)
	}
	if got := c.Count(JobFinished); got != 1 {
		t.Errorf("expected 1 JobFinished event, got %d", got)
	}
	if got := c.Count(JobKilled); got != 0 {
		t.Errorf("expected 0 JobKilled events, got %d", got)
	}
}

func TestCountHandlerWiredToBus(t *testing.T) {
	bus := NewBus()
	c := NewCountHandler()
	bus.Subscribe(c.Handle)

	bus.Publish(New(JobStarting).ForJob(1))
	bus.Publish(New(JobStarting).ForJob(2))

	if got := c.Count(JobStarting); got != 2 {
		t.Errorf("expected 2 JobStarting events via the bus, got %d", got)
	}
}
