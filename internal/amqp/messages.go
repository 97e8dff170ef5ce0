package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"financify/internal/core"
	"financify/internal/reports"
)

// ReportRunMessage asks a worker to run the report pipeline. The pipeline
// always processes every unused statement, so the message only carries
// bookkeeping.
type ReportRunMessage struct {
	RequestID   string    `json:"request_id"`
	RequestedBy int64     `json:"requested_by,omitempty"`
	Trigger     string    `json:"trigger"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReportRunMessage creates a run request with a fresh request id.
func NewReportRunMessage(requestedBy int64, trigger string) *ReportRunMessage {
	return &ReportRunMessage{
		RequestID:   uuid.NewString(),
		RequestedBy: requestedBy,
		Trigger:     trigger,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *ReportRunMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRunMessageFromJSON decodes and validates a run request.
func ReportRunMessageFromJSON(data []byte) (*ReportRunMessage, error) {
	var msg ReportRunMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestID == "" {
		return nil, errors.New("missing request_id")
	}
	return &msg, nil
}

// ReportsCreatedEvent announces the reports written by one pipeline run.
type ReportsCreatedEvent struct {
	RunID     string        `json:"run_id"`
	Reports   []core.Report `json:"reports"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewReportsCreatedEvent builds the event for a finished run.
func NewReportsCreatedEvent(res *reports.RunResult) (*ReportsCreatedEvent, error) {
	if res == nil {
		return nil, fmt.Errorf("nil run result")
	}
	return &ReportsCreatedEvent{
		RunID:     res.RunID,
		Reports:   res.Reports,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (e *ReportsCreatedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ReportsCreatedEventFromJSON(data []byte) (*ReportsCreatedEvent, error) {
	var e ReportsCreatedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// PermanentError marks a handler failure that retrying cannot fix. The
// consumer drops such deliveries instead of requeueing them.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
