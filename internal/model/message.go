package model

import (
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderSystem
}

// FileAttachment references an uploaded file.
type FileAttachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Message is a single chat message.
type Message struct {
	ID          string           `json:"id"`
	Content     string           `json:"content"`
	Sender      Sender           `json:"sender"`
	Timestamp   time.Time        `json:"timestamp"`
	Standard    StandardTag      `json:"fas,omitempty"`
	Attachments []FileAttachment `json:"attachments,omitempty"`
}

// SendMessageRequest is the request to append a user message.
type SendMessageRequest struct {
	Content       string      `json:"content"`
	Standard      StandardTag `json:"fas,omitempty"`
	AttachmentIDs []string    `json:"attachment_ids,omitempty"`
}

// SendMessageResponse is the response after appending a user message.
type SendMessageResponse struct {
	Message      Message          `json:"message"`
	Conversation *ConversationKey `json:"conversation,omitempty"`
	Created      bool             `json:"created"`
}

// ListMessagesResponse is the visible message list of a session.
type ListMessagesResponse struct {
	Messages   []Message       `json:"messages"`
	Rendered   []RenderedEntry `json:"rendered,omitempty"`
	Responding bool            `json:"responding"`
}

// RenderedEntry carries the markup for one message.
type RenderedEntry struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}
