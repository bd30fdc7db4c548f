package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

var (
	// ErrConversationNotFound is returned when a named conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyTitle is returned when renaming to a blank title.
	ErrEmptyTitle = errors.New("title must not be empty")
)

// ConversationService handles conversation operations.
type ConversationService struct {
	sessions   *SessionManager
	dispatcher *Dispatcher
	logger     *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(sessions *SessionManager, dispatcher *Dispatcher, log *logger.Logger) *ConversationService {
	return &ConversationService{
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// Snapshot returns the session's visible state.
func (s *ConversationService) Snapshot(ctx context.Context, sessionID string) model.Snapshot {
	return s.sessions.Get(sessionID).Store.Snapshot()
}

// SetCategory switches the active scenario category.
func (s *ConversationService) SetCategory(ctx context.Context, sessionID string, category model.ScenarioCategory) (model.Snapshot, error) {
	c, err := model.ParseCategory(string(category))
	if err != nil {
		return model.Snapshot{}, err
	}
	store := s.sessions.Get(sessionID).Store
	store.SetCategory(c)
	return store.Snapshot(), nil
}

// List returns conversation titles, most recent first. An empty category lists all of them.
func (s *ConversationService) List(ctx context.Context, sessionID string, category model.ScenarioCategory) (*model.ListConversationsResponse, error) {
	cats := model.Categories()
	if category != "" {
		c, err := model.ParseCategory(string(category))
		if err != nil {
			return nil, err
		}
		cats = []model.ScenarioCategory{c}
	}

	store := s.sessions.Get(sessionID).Store
	resp := &model.ListConversationsResponse{Conversations: make(map[model.ScenarioCategory][]string, len(cats))}
	for _, c := range cats {
		titles := store.Titles(c)
		if titles == nil {
			titles = []string{}
		}
		resp.Conversations[c] = titles
	}
	return resp, nil
}

// Create starts a conversation in the active category. When the request carries text it
// becomes the first message and its answer is requested in the background.
func (s *ConversationService) Create(ctx context.Context, sessionID string, req *model.CreateConversationRequest) (*model.CreateConversationResponse, error) {
	tag, err := model.ParseStandard(string(req.Standard))
	if err != nil {
		return nil, err
	}

	sess := s.sessions.Get(sessionID)
	content := strings.TrimSpace(req.Content)

	var atts []model.FileAttachment
	if content != "" {
		if atts, err = sess.Uploads.Take(req.AttachmentIDs); err != nil {
			return nil, err
		}
	}

	key, first := sess.Store.CreateConversation(content, model.StandardFor(sess.Store.Category(), tag), atts)
	if first != nil {
		s.dispatcher.Dispatch(sess.Store, key.Category, *first)
	}

	msgs, _ := sess.Store.Messages(key.Category, key.Title)
	return &model.CreateConversationResponse{Conversation: key, Messages: msgs}, nil
}

// Load displays a stored conversation. A missing conversation resets the view to the
// welcome list and reports ErrConversationNotFound.
func (s *ConversationService) Load(ctx context.Context, sessionID string, req *model.ConversationRequest) (model.Snapshot, error) {
	store := s.sessions.Get(sessionID).Store
	ok := store.LoadConversation(req.Category, req.Title)
	snap := store.Snapshot()
	if !ok {
		return snap, fmt.Errorf("%w: %s", ErrConversationNotFound, req.Title)
	}
	return snap, nil
}

// Rename moves a conversation to a new title within its category.
func (s *ConversationService) Rename(ctx context.Context, sessionID string, req *model.RenameConversationRequest) error {
	if strings.TrimSpace(req.NewTitle) == "" {
		return ErrEmptyTitle
	}
	store := s.sessions.Get(sessionID).Store
	if _, ok := store.Messages(req.Category, req.OldTitle); !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, req.OldTitle)
	}
	store.RenameConversation(req.Category, req.OldTitle, req.NewTitle)
	return nil
}

// Delete removes a conversation.
func (s *ConversationService) Delete(ctx context.Context, sessionID string, req *model.ConversationRequest) error {
	if !s.sessions.Get(sessionID).Store.DeleteConversation(req.Category, req.Title) {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, req.Title)
	}
	return nil
}
