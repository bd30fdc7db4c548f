package model

import (
	"time"
)

// EventType represents the type of store event.
type EventType string

const (
	EventConversationCreated EventType = "conversation.created"
	EventConversationLoaded  EventType = "conversation.loaded"
	EventConversationDeleted EventType = "conversation.deleted"
	EventConversationRenamed EventType = "conversation.renamed"
	EventMessagesCleared     EventType = "messages.cleared"
	EventMessageAppended     EventType = "message.appended"
	EventCategoryChanged     EventType = "category.changed"
	EventRespondingChanged   EventType = "responding.changed"
)

// Event describes one mutation of a conversation store.
type Event struct {
	Type         EventType        `json:"type"`
	SessionID    string           `json:"session_id,omitempty"`
	Category     ScenarioCategory `json:"category,omitempty"`
	Conversation *ConversationKey `json:"conversation,omitempty"`
	OldTitle     string           `json:"old_title,omitempty"`
	Message      *Message         `json:"message,omitempty"`
	Responding   bool             `json:"responding,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ErrorEvent represents an error event on the stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// EventHistoryResponse is a page of a session's published events.
type EventHistoryResponse struct {
	Events       []Event `json:"events"`
	LastSequence uint64  `json:"last_sequence"`
}
