package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdb-fas/fasdesk/internal/attachment"
	"github.com/isdb-fas/fasdesk/internal/export"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/internal/responder"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

var testNow = time.Date(2025, 5, 14, 15, 4, 0, 0, time.UTC)

// gatedResponder answers "re: <text>" once release is closed.
type gatedResponder struct {
	release chan struct{}

	mu   sync.Mutex
	reqs []responder.Request
}

func newGatedResponder() *gatedResponder {
	return &gatedResponder{release: make(chan struct{})}
}

func (g *gatedResponder) Respond(ctx context.Context, req responder.Request) string {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()

	select {
	case <-g.release:
		return "re: " + req.Text
	case <-ctx.Done():
		return responder.FailureMessage(req.Category)
	}
}

func (g *gatedResponder) requests() []responder.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]responder.Request(nil), g.reqs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, ev model.Event) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.EventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	sessions      *SessionManager
	dispatcher    *Dispatcher
	conversations *ConversationService
	messages      *MessageService
	uploads       *UploadService
	responder     *gatedResponder
	publisher     *recordingPublisher
}

func newFixture(t *testing.T, opts ...SessionOption) *fixture {
	t.Helper()
	log := logger.Nop()
	pub := &recordingPublisher{}
	opts = append([]SessionOption{WithSessionClock(func() time.Time { return testNow }), WithPublisher(pub)}, opts...)

	sessions := NewSessionManager(attachment.NewMemoryStore("/files/"), log, opts...)
	resp := newGatedResponder()
	d := NewDispatcher(resp, 0, log)
	t.Cleanup(func() {
		select {
		case <-resp.release:
		default:
			close(resp.release)
		}
		_ = d.Shutdown(context.Background())
	})

	msgs := NewMessageService(sessions, d, log)
	msgs.now = func() time.Time { return testNow }

	return &fixture{
		sessions:      sessions,
		dispatcher:    d,
		conversations: NewConversationService(sessions, d, log),
		messages:      msgs,
		uploads:       NewUploadService(sessions, log),
		responder:     resp,
		publisher:     pub,
	}
}

func (f *fixture) answerAll(t *testing.T) {
	t.Helper()
	close(f.responder.release)
	require.NoError(t, f.dispatcher.Shutdown(context.Background()))
}

func TestNewSessionShowsWelcomeList(t *testing.T) {
	f := newFixture(t)

	resp := f.messages.List(context.Background(), "alice", false)
	assert.Len(t, resp.Messages, 6)
	assert.False(t, resp.Responding)

	snap := f.conversations.Snapshot(context.Background(), "alice")
	assert.Equal(t, model.StateNoConversation, snap.State)
	assert.Equal(t, model.CategoryUseCase, snap.Category)
	assert.Equal(t, 1, f.sessions.Len())
	assert.Same(t, f.sessions.Get("alice"), f.sessions.Get("alice"))
}

func TestEvictIdleSessions(t *testing.T) {
	now := testNow
	blobs := attachment.NewMemoryStore("/files/")
	m := NewSessionManager(blobs, logger.Nop(),
		WithSessionClock(func() time.Time { return now }),
		WithIdleTTL(time.Hour),
	)
	ctx := context.Background()

	att, err := m.Get("alice").Uploads.Add(ctx, "a.txt", "text/plain", 1, strings.NewReader("a"))
	require.NoError(t, err)
	now = now.Add(45 * time.Minute)
	bob := m.Get("bob")
	now = now.Add(30 * time.Minute)

	assert.Equal(t, 1, m.EvictIdle(ctx))
	assert.Equal(t, 1, m.Len())
	assert.Same(t, bob, m.Get("bob"))
	_, err = blobs.Get(att.ID)
	assert.Error(t, err, "pending uploads of an evicted session are deleted")

	assert.NotSame(t, bob, m.Get("alice"))
	assert.Equal(t, 2, m.Len())
}

func TestMaxSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	now := testNow
	m := NewSessionManager(attachment.NewMemoryStore("/files/"), logger.Nop(),
		WithSessionClock(func() time.Time { return now }),
		WithMaxSessions(2),
	)

	alice := m.Get("alice")
	now = now.Add(time.Minute)
	m.Get("bob")
	now = now.Add(time.Minute)
	assert.Same(t, alice, m.Get("alice"))
	now = now.Add(time.Minute)
	m.Get("carol")

	assert.Equal(t, 2, m.Len())
	assert.Same(t, alice, m.Get("alice"))
	assert.Zero(t, m.EvictIdle(context.Background()), "no idle TTL configured")
}

func TestSampleConversationsSeeded(t *testing.T) {
	f := newFixture(t, WithSampleConversations(true))

	list, err := f.conversations.List(context.Background(), "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ijarah MBT Contract Analysis", "Murabaha Sale Documentation"}, list.Conversations[model.CategoryUseCase])
	assert.Equal(t, []string{"Choix Challenge Hackathon"}, list.Conversations[model.CategoryTeamsOwn])

	other := newFixture(t)
	list, err = other.conversations.List(context.Background(), "alice", model.CategoryReverse)
	require.NoError(t, err)
	assert.Equal(t, map[model.ScenarioCategory][]string{model.CategoryReverse: {}}, list.Conversations)
}

func TestSendStartsConversationAndReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "  What is FAS 4?  ", Standard: model.FAS4})
	require.NoError(t, err)
	require.True(t, resp.Created)
	require.NotNil(t, resp.Conversation)
	assert.Equal(t, "What is FAS 4?", resp.Message.Content)
	assert.Equal(t, "New Conversation May 14, 3:04 PM", resp.Conversation.Title)

	assert.True(t, f.messages.List(ctx, "alice", false).Responding)

	f.answerAll(t)

	list := f.messages.List(ctx, "alice", false)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, model.SenderSystem, list.Messages[1].Sender)
	assert.Equal(t, "re: What is FAS 4?", list.Messages[1].Content)
	assert.False(t, list.Responding)

	reqs := f.responder.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, responder.Request{Category: model.CategoryUseCase, Text: "What is FAS 4?", Standard: model.FAS4}, reqs[0])
}

func TestReverseDropsStandardTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.conversations.SetCategory(ctx, "alice", model.CategoryReverse)
	require.NoError(t, err)
	resp, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "Dr. Cash", Standard: model.FAS28})
	require.NoError(t, err)
	f.answerAll(t)

	assert.Empty(t, resp.Message.Standard)
	assert.Empty(t, f.responder.requests()[0].Standard)
	assert.Equal(t, model.CategoryReverse, f.responder.requests()[0].Category)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "q", Standard: "FAS 99"})
	assert.ErrorIs(t, err, model.ErrUnknownStandard)

	_, err = f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "q", AttachmentIDs: []string{"nope"}})
	assert.ErrorIs(t, err, attachment.ErrNotFound)

	assert.Empty(t, f.responder.requests())
}

func TestReplyFollowsOriginatingConversation(t *testing.T) {
	f := newFixture(t, WithSampleConversations(true))
	ctx := context.Background()

	sent, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "first"})
	require.NoError(t, err)

	_, err = f.conversations.Load(ctx, "alice", &model.ConversationRequest{Category: model.CategoryUseCase, Title: "Murabaha Sale Documentation"})
	require.NoError(t, err)

	f.answerAll(t)

	visible := f.messages.List(ctx, "alice", false).Messages
	assert.Len(t, visible, 2, "loaded conversation is untouched")

	stored, ok := f.sessions.Get("alice").Store.Messages(sent.Conversation.Category, sent.Conversation.Title)
	require.True(t, ok)
	require.Len(t, stored, 2)
	assert.Equal(t, "re: first", stored[1].Content)
}

func TestReplyDroppedAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "q"})
	require.NoError(t, err)
	require.NoError(t, f.conversations.Delete(ctx, "alice", &model.ConversationRequest{Category: sent.Conversation.Category, Title: sent.Conversation.Title}))

	f.answerAll(t)

	list := f.messages.List(ctx, "alice", false)
	assert.Len(t, list.Messages, 6, "back on the welcome list")
	assert.False(t, list.Responding)
}

func TestReplyFollowsRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "q"})
	require.NoError(t, err)
	require.NoError(t, f.conversations.Rename(ctx, "alice", &model.RenameConversationRequest{
		Category: sent.Conversation.Category, OldTitle: sent.Conversation.Title, NewTitle: "Sukuk questions",
	}))

	f.answerAll(t)

	stored, ok := f.sessions.Get("alice").Store.Messages(model.CategoryUseCase, "Sukuk questions")
	require.True(t, ok)
	require.Len(t, stored, 2)
	assert.Equal(t, "re: q", stored[1].Content)
	assert.Equal(t, stored, f.messages.List(ctx, "alice", false).Messages)
}

func TestSendUsesActiveCategory(t *testing.T) {
	f := newFixture(t, WithSampleConversations(true))
	ctx := context.Background()

	_, err := f.conversations.Load(ctx, "alice", &model.ConversationRequest{Category: model.CategoryUseCase, Title: "Murabaha Sale Documentation"})
	require.NoError(t, err)
	_, err = f.conversations.SetCategory(ctx, "alice", model.CategoryReverse)
	require.NoError(t, err)

	resp, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "Dr. Inventory", Standard: model.FAS28})
	require.NoError(t, err)
	require.NotNil(t, resp.Conversation)
	assert.Equal(t, model.CategoryUseCase, resp.Conversation.Category)
	assert.Empty(t, resp.Message.Standard)

	f.answerAll(t)

	reqs := f.responder.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, responder.Request{Category: model.CategoryReverse, Text: "Dr. Inventory"}, reqs[0])
}

func TestSendAfterShutdownIsNotAnswered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.answerAll(t)

	resp, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "late"})
	require.NoError(t, err)
	require.True(t, resp.Created)

	list := f.messages.List(ctx, "alice", false)
	assert.Len(t, list.Messages, 1)
	assert.False(t, list.Responding)
	assert.Empty(t, f.responder.requests())
}

func TestCreateConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.conversations.Create(ctx, "alice", &model.CreateConversationRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty.Messages)
	assert.Empty(t, f.responder.requests())

	_, err = f.conversations.SetCategory(ctx, "bob", model.CategoryEnhancement)
	require.NoError(t, err)
	withText, err := f.conversations.Create(ctx, "bob", &model.CreateConversationRequest{Content: "Improve FAS 32", Standard: model.FAS32})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryEnhancement, withText.Conversation.Category)
	require.Len(t, withText.Messages, 1)

	f.answerAll(t)
	assert.Equal(t, model.CategoryEnhancement, f.responder.requests()[0].Category)
	assert.Len(t, f.messages.List(ctx, "bob", false).Messages, 2)
}

func TestConversationNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &model.ConversationRequest{Category: model.CategoryUseCase, Title: "missing"}

	snap, err := f.conversations.Load(ctx, "alice", req)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Equal(t, model.StateNoConversation, snap.State)

	assert.ErrorIs(t, f.conversations.Delete(ctx, "alice", req), ErrConversationNotFound)
	assert.ErrorIs(t, f.conversations.Rename(ctx, "alice", &model.RenameConversationRequest{
		Category: model.CategoryUseCase, OldTitle: "missing", NewTitle: "x",
	}), ErrConversationNotFound)
	assert.ErrorIs(t, f.conversations.Rename(ctx, "alice", &model.RenameConversationRequest{
		Category: model.CategoryUseCase, OldTitle: "missing", NewTitle: " ",
	}), ErrEmptyTitle)

	_, err = f.conversations.SetCategory(ctx, "alice", "Unknown")
	assert.ErrorIs(t, err, model.ErrUnknownCategory)
}

func TestRenameKeepsCurrent(t *testing.T) {
	f := newFixture(t, WithSampleConversations(true))
	ctx := context.Background()

	_, err := f.conversations.Load(ctx, "alice", &model.ConversationRequest{Category: model.CategoryUseCase, Title: "Murabaha Sale Documentation"})
	require.NoError(t, err)
	require.NoError(t, f.conversations.Rename(ctx, "alice", &model.RenameConversationRequest{
		Category: model.CategoryUseCase, OldTitle: "Murabaha Sale Documentation", NewTitle: "Murabaha docs",
	}))

	snap := f.conversations.Snapshot(ctx, "alice")
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Murabaha docs", snap.Current.Title)
}

func TestAttachmentsTravelWithMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	att, err := f.uploads.Add(ctx, "alice", "contract.pdf", "application/pdf", 4, strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "/sample-files/pdf-thumbnail.png", att.ThumbnailURL)

	_, err = f.uploads.Add(ctx, "alice", "", "text/plain", 0, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	resp, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "see attached"})
	require.NoError(t, err)
	require.Len(t, resp.Message.Attachments, 1)
	assert.Equal(t, att.ID, resp.Message.Attachments[0].ID)
	assert.Empty(t, f.uploads.List(ctx, "alice"))
}

func TestUploadRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.uploads.Add(ctx, "alice", "a.png", "image/png", 1, strings.NewReader("a"))
	require.NoError(t, err)
	_, err = f.uploads.Add(ctx, "alice", "b.png", "image/png", 1, strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, f.uploads.Remove(ctx, "alice", a.ID))
	assert.ErrorIs(t, f.uploads.Remove(ctx, "alice", a.ID), attachment.ErrNotFound)
	assert.Len(t, f.uploads.List(ctx, "alice"), 1)

	require.NoError(t, f.uploads.Clear(ctx, "alice"))
	assert.Empty(t, f.uploads.List(ctx, "alice"))
}

func TestListRendered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.messages.List(ctx, "alice", true)
	require.Len(t, resp.Rendered, 6)
	assert.Equal(t, "1", resp.Rendered[0].ID)
	assert.NotContains(t, resp.Rendered[0].HTML, "<p", "user messages are escaped, not rendered")
	assert.Contains(t, resp.Rendered[3].HTML, "<ol")
}

func TestClearAndDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	file, err := f.messages.Download(ctx, "alice", "2", export.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "message-2025-05-14.md", file.Name)

	_, err = f.messages.Download(ctx, "alice", "2", export.FormatPDF)
	assert.ErrorIs(t, err, export.ErrPDFUnsupported)

	_, err = f.messages.Download(ctx, "alice", "nope", export.FormatText)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	f.messages.Clear(ctx, "alice")
	assert.Empty(t, f.messages.List(ctx, "alice", false).Messages)
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)
	sess := f.sessions.Get("alice")

	assert.Equal(t, model.DefaultPreferences(), sess.Preferences())

	require.NoError(t, sess.SetPreferences(model.Preferences{Language: model.LanguageArabic, Theme: model.ThemeDark}))
	assert.Equal(t, "rtl", sess.Preferences().Dir())

	assert.Error(t, sess.SetPreferences(model.Preferences{Language: "klingon", Theme: model.ThemeDark}))
	assert.Equal(t, model.LanguageArabic, sess.Preferences().Language)
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "q"})
	require.NoError(t, err)
	f.answerAll(t)

	assert.Equal(t, []model.EventType{
		model.EventConversationCreated,
		model.EventRespondingChanged,
		model.EventMessageAppended,
		model.EventRespondingChanged,
	}, f.publisher.types())
}

func TestShutdownCancelsSlowResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.messages.Send(ctx, "alice", &model.SendMessageRequest{Content: "slow"})
	require.NoError(t, err)

	expired, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, f.dispatcher.Shutdown(expired), context.Canceled)

	list := f.messages.List(ctx, "alice", false)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, responder.GenericFailureMessage, list.Messages[1].Content)
	assert.False(t, list.Responding)
}
