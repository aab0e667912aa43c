package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserSender is the sender id used for messages injected by the operator
// rather than by another agent.
const UserSender = "user"

// MessageKind classifies an inter-agent message.
type MessageKind string

const (
	// KindQuery asks the recipient a question and expects a reply.
	KindQuery MessageKind = "query"

	// KindInstruction directs the recipient to do something.
	KindInstruction MessageKind = "instruction"

	// KindInformation shares context with no response expected.
	KindInformation MessageKind = "information"
)

// IsValid checks if the message kind is a recognized value.
func (k MessageKind) IsValid() bool {
	switch k {
	case KindQuery, KindInstruction, KindInformation:
		return true
	default:
		return false
	}
}

// Priority orders messages for presentation. Delivery order is always
// arrival order; priority is advisory for the recipient.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is a recognized value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Envelope is one message in an agent's mailbox.
type Envelope struct {
	// ID uniquely identifies the envelope.
	ID string `json:"id"`

	// From is the sender's agent id, or UserSender for operator input.
	From string `json:"from"`

	// FromName is the sender's display name at send time.
	FromName string `json:"from_name,omitempty"`

	// To is the recipient's agent id.
	To string `json:"to"`

	// Content is the message body.
	Content string `json:"content"`

	// Kind classifies the message.
	Kind MessageKind `json:"kind"`

	// Priority is advisory ordering for the recipient.
	Priority Priority `json:"priority"`

	// Timestamp is when the envelope was delivered.
	Timestamp time.Time `json:"timestamp"`

	// Delivered is set once the envelope sits in the recipient's mailbox.
	Delivered bool `json:"delivered"`

	// Read is set once the recipient consumed the envelope.
	Read bool `json:"read"`
}

// NewEnvelope builds an envelope with defaults applied: a fresh id, kind
// information, and normal priority.
func NewEnvelope(from, to, content string) Envelope {
	return Envelope{
		ID:       uuid.New().String(),
		From:     from,
		To:       to,
		Content:  content,
		Kind:     KindInformation,
		Priority: PriorityNormal,
	}
}

// Validate checks the envelope for required fields.
func (e *Envelope) Validate() error {
	if e.From == "" {
		return fmt.Errorf("envelope sender cannot be empty")
	}
	if e.To == "" {
		return fmt.Errorf("envelope recipient cannot be empty")
	}
	if e.Content == "" {
		return fmt.Errorf("envelope content cannot be empty")
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid message kind %q", e.Kind)
	}
	if !e.Priority.IsValid() {
		return fmt.Errorf("invalid message priority %q", e.Priority)
	}
	return nil
}
