package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdb-fas/fasdesk/internal/export"
	"github.com/isdb-fas/fasdesk/internal/markdown"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

var (
	// ErrEmptyMessage is returned when a message has no content.
	ErrEmptyMessage = errors.New("message content must not be empty")

	// ErrMessageNotFound is returned when a message ID is unknown.
	ErrMessageNotFound = errors.New("message not found")
)

// MessageService handles message operations.
type MessageService struct {
	sessions   *SessionManager
	dispatcher *Dispatcher
	logger     *logger.Logger
	now        func() time.Time
}

// NewMessageService creates a new message service.
func NewMessageService(sessions *SessionManager, dispatcher *Dispatcher, log *logger.Logger) *MessageService {
	return &MessageService{
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     log,
		now:        time.Now,
	}
}

// Send appends a user message and requests its answer in the background. Sending while
// no conversation is current starts one.
func (s *MessageService) Send(ctx context.Context, sessionID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	tag, err := model.ParseStandard(string(req.Standard))
	if err != nil {
		return nil, err
	}

	sess := s.sessions.Get(sessionID)
	atts, err := sess.Uploads.Take(req.AttachmentIDs)
	if err != nil {
		return nil, err
	}

	res := sess.Store.AppendMessage(content, model.SenderUser, model.StandardFor(sess.Store.Category(), tag), atts)
	if res.Conversation != nil {
		s.dispatcher.Dispatch(sess.Store, res.Category, res.Message)
	}

	return &model.SendMessageResponse{
		Message:      res.Message,
		Conversation: res.Conversation,
		Created:      res.Created,
	}, nil
}

// List returns the visible messages. With render set, system messages are rendered from
// markdown and user messages are escaped.
func (s *MessageService) List(ctx context.Context, sessionID string, render bool) *model.ListMessagesResponse {
	snap := s.sessions.Get(sessionID).Store.Snapshot()
	resp := &model.ListMessagesResponse{Messages: snap.Messages, Responding: snap.Responding}
	if resp.Messages == nil {
		resp.Messages = []model.Message{}
	}

	if render {
		resp.Rendered = make([]model.RenderedEntry, len(snap.Messages))
		for i, m := range snap.Messages {
			resp.Rendered[i] = model.RenderedEntry{ID: m.ID, HTML: RenderMessage(m)}
		}
	}
	return resp
}

// RenderMessage returns the HTML shown for m.
func RenderMessage(m model.Message) string {
	if m.Sender == model.SenderSystem {
		return markdown.Render(m.Content)
	}
	return markdown.Escape(m.Content)
}

// Clear empties the visible list without deleting stored conversations.
func (s *MessageService) Clear(ctx context.Context, sessionID string) {
	s.sessions.Get(sessionID).Store.Clear()
}

// Download renders a message as a file.
func (s *MessageService) Download(ctx context.Context, sessionID, messageID string, format export.Format) (*export.File, error) {
	msg, ok := s.sessions.Get(sessionID).Store.FindMessage(messageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	return export.Message(msg, format, s.now())
}
