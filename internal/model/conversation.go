package model

// ConversationKey identifies a conversation. Titles are unique only within a category.
type ConversationKey struct {
	Category ScenarioCategory `json:"category"`
	Title    string           `json:"title"`
}

// ConversationState is the store's position in its state machine.
type ConversationState string

const (
	StateNoConversation     ConversationState = "no_conversation"
	StateConversationActive ConversationState = "conversation_active"
)

// Snapshot is a consistent view of a session's chat state.
type Snapshot struct {
	Category   ScenarioCategory  `json:"category"`
	State      ConversationState `json:"state"`
	Current    *ConversationKey  `json:"current,omitempty"`
	Messages   []Message         `json:"messages"`
	Responding bool              `json:"responding"`
}

// CreateConversationRequest is the request to start a new conversation.
type CreateConversationRequest struct {
	Content       string      `json:"content,omitempty"`
	Standard      StandardTag `json:"fas,omitempty"`
	AttachmentIDs []string    `json:"attachment_ids,omitempty"`
}

// CreateConversationResponse is the response for a newly created conversation.
type CreateConversationResponse struct {
	Conversation ConversationKey `json:"conversation"`
	Messages     []Message       `json:"messages"`
}

// ConversationRequest addresses a conversation by category and title.
type ConversationRequest struct {
	Category ScenarioCategory `json:"category"`
	Title    string           `json:"title"`
}

// RenameConversationRequest is the request to rename a conversation.
type RenameConversationRequest struct {
	Category ScenarioCategory `json:"category"`
	OldTitle string           `json:"old_title"`
	NewTitle string           `json:"new_title"`
}

// ListConversationsResponse lists conversation titles per category.
type ListConversationsResponse struct {
	Conversations map[ScenarioCategory][]string `json:"conversations"`
}

// SetCategoryRequest changes the active category.
type SetCategoryRequest struct {
	Category ScenarioCategory `json:"category"`
}
