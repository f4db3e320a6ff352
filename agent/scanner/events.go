package scanner

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// Event types emitted during a discovery scan.
const (
	EventProgress = "progress"
	EventFound    = "found"
	EventComplete = "complete"
	EventError    = "error"
)

// Progress counts hosts whose probe has finished.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Event is one entry in the scan stream. Only the fields relevant to Type
// are set.
type Event struct {
	Type      string             `json:"type"`
	ScanID    string             `json:"scanId,omitempty"`
	Progress  *Progress          `json:"progress,omitempty"`
	CurrentIP string             `json:"currentIP,omitempty"`
	Printer   *DiscoveredPrinter `json:"printer,omitempty"`
	Count     *int               `json:"count,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// EventSink receives scan events in emission order. A non-nil error stops
// the scan from scheduling further batches.
type EventSink interface {
	Emit(Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event) error

func (f EventSinkFunc) Emit(ev Event) error { return f(ev) }

type flusher interface {
	Flush()
}

// NDJSONSink writes one JSON object per line and flushes after each event
// when the writer supports it (http.ResponseWriter, bufio.Writer).
type NDJSONSink struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewNDJSONSink returns a sink writing to w.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w, enc: json.NewEncoder(w)}
}

func (s *NDJSONSink) Emit(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		return err
	}
	if f, ok := s.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

// MultiSink fans an event out to every sink. All sinks see the event; the
// errors are joined.
func MultiSink(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(ev Event) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Emit(ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// CollectingSink keeps every event in memory.
type CollectingSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *CollectingSink) Emit(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of the events seen so far.
func (c *CollectingSink) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}
