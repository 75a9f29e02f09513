package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. Subscribing with
	// AllTenants receives the topic for every tenant.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AllTenants subscribes to a topic across every tenant.
const AllTenants = "*"

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds

	// NATSQueueGroup load-balances each subject across subscribers in the group.
	NATSQueueGroup string
}

// Standard topic names for the assessment pipeline.
const (
	TopicAssessmentRequested = "nexis.assessment.requested"
	TopicAssessmentCompleted = "nexis.assessment.completed"
	TopicDecisionRecorded    = "nexis.decision.recorded"
)

// AssessmentRequest is the payload of an asynchronous scoring request.
type AssessmentRequest struct {
	RequestID           string           `json:"requestId"`
	SubjectID           string           `json:"subjectId"`
	DocumentationMonths *int             `json:"documentationMonths,omitempty"`
	Record              BehavioralRecord `json:"record"`
}

// AssessmentCompleted is the payload published after an assessment is stored.
type AssessmentCompleted struct {
	RequestID    string    `json:"requestId,omitempty"`
	AssessmentID string    `json:"assessmentId"`
	SubjectID    string    `json:"subjectId"`
	TrustScore   int       `json:"trustScore"`
	RiskLevel    RiskLevel `json:"riskLevel"`
}
