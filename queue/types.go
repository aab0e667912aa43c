package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened during a scan.
type EventType string

const (
	EventScanStarted         EventType = "scan_started"
	EventScanCompleted       EventType = "scan_completed"
	EventAgentCreated        EventType = "agent_created"
	EventAgentStatusChanged  EventType = "agent_status_changed"
	EventMessageSent         EventType = "message_sent"
	EventFindingPending      EventType = "finding_pending"
	EventFindingVerified     EventType = "finding_verified"
	EventFindingRejected     EventType = "finding_rejected"
	EventFindingManualReview EventType = "finding_manual_review"
)

// IsValid returns true if the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventScanStarted, EventScanCompleted,
		EventAgentCreated, EventAgentStatusChanged, EventMessageSent,
		EventFindingPending, EventFindingVerified, EventFindingRejected,
		EventFindingManualReview:
		return true
	}
	return false
}

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// ScanStatus is the coarse state recorded under scan:<id>:status.
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// IsValid returns true if the scan status is a known value.
func (s ScanStatus) IsValid() bool {
	switch s {
	case ScanStatusRunning, ScanStatusCompleted, ScanStatusFailed:
		return true
	}
	return false
}

// Event is one scan lifecycle record.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// ScanID is the scan this event belongs to.
	ScanID string `json:"scan_id"`

	// Type classifies the event.
	Type EventType `json:"type"`

	// AgentID is the agent the event concerns, when any.
	AgentID string `json:"agent_id,omitempty"`

	// ReportID is the finding the event concerns, when any.
	ReportID string `json:"report_id,omitempty"`

	// Payload carries type-specific detail.
	Payload map[string]any `json:"payload,omitempty"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh ID and the current time.
func NewEvent(scanID string, eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		ScanID:    scanID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks that the event carries the required fields.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event ID is required")
	}
	if e.ScanID == "" {
		return fmt.Errorf("event scan ID is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type: %q", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}
	return nil
}
