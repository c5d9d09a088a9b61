package batch

import "fmt"

// ProgressStatus is the state of a unit within a batch run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent is emitted for each unit as a batch run advances.
type ProgressEvent struct {
	Unit    string
	Status  ProgressStatus
	Message string
}

// ProgressReporter emits progress events through a buffered channel.
type ProgressReporter struct {
	ch chan ProgressEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Unit)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", event.Unit)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ %s %s", event.Unit, event.Message)
		}
		return fmt.Sprintf("  ✓ %s complete", event.Unit)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Unit, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Unit)
	}
}
