package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdb-fas/fasdesk/internal/model"
)

var testNow = time.Date(2025, time.May, 14, 15, 4, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	seq := 0
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("m%d", seq) }),
		WithDefaults(WelcomeMessages(testNow)),
	}
	return NewStore(append(base, opts...)...)
}

func TestNewStoreStartsWithDefaults(t *testing.T) {
	s := newTestStore(t)

	snap := s.Snapshot()
	assert.Equal(t, model.StateNoConversation, snap.State)
	assert.Nil(t, snap.Current)
	assert.Equal(t, model.CategoryUseCase, snap.Category)
	assert.Equal(t, WelcomeMessages(testNow), snap.Messages)
	assert.False(t, snap.Responding)
}

func TestCreateConversationWithText(t *testing.T) {
	s := newTestStore(t)

	key, first := s.CreateConversation("What is FAS 4?", model.FAS4, nil)
	require.NotNil(t, first)

	assert.Equal(t, model.CategoryUseCase, key.Category)
	assert.Equal(t, "New Conversation May 14, 3:04 PM", key.Title)
	assert.Equal(t, []string{key.Title}, s.Titles(model.CategoryUseCase))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, model.SenderUser, snap.Messages[0].Sender)
	assert.Equal(t, "What is FAS 4?", snap.Messages[0].Content)
	assert.Equal(t, model.FAS4, snap.Messages[0].Standard)
	assert.Equal(t, &key, snap.Current)

	reply, ok := s.AppendReply(first.ID, "FAS 4 covers Ijarah.")
	require.True(t, ok)
	assert.Equal(t, model.SenderSystem, reply.Sender)

	snap = s.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, model.SenderSystem, snap.Messages[1].Sender)

	stored, ok := s.Messages(key.Category, key.Title)
	require.True(t, ok)
	assert.Equal(t, snap.Messages, stored)
}

func TestCreateConversationWithoutText(t *testing.T) {
	s := newTestStore(t)

	key, first := s.CreateConversation("", "", nil)
	assert.Nil(t, first)

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, model.StateConversationActive, snap.State)

	stored, ok := s.Messages(key.Category, key.Title)
	require.True(t, ok)
	assert.Empty(t, stored)
}

func TestCreateConversationTitleCollisionOverwrites(t *testing.T) {
	s := newTestStore(t)

	first, _ := s.CreateConversation("first", "", nil)
	second, _ := s.CreateConversation("second", "", nil)
	assert.Equal(t, first, second)

	stored, ok := s.Messages(second.Category, second.Title)
	require.True(t, ok)
	require.Len(t, stored, 1)
	assert.Equal(t, "second", stored[0].Content)
}

func TestAppendUserMessageWithoutConversationCreatesOne(t *testing.T) {
	s := newTestStore(t)
	s.SetCategory(model.CategoryTeamsOwn)

	res := s.AppendMessage("Murabaha in UAE", model.SenderUser, model.FAS28, nil)
	require.True(t, res.Created)
	require.NotNil(t, res.Conversation)
	assert.Equal(t, model.CategoryTeamsOwn, res.Conversation.Category)

	titles := s.Titles(model.CategoryTeamsOwn)
	require.Len(t, titles, 1)

	stored, ok := s.Messages(model.CategoryTeamsOwn, titles[0])
	require.True(t, ok)
	require.Len(t, stored, 1)
	assert.Equal(t, res.Message, stored[0])

	snap := s.Snapshot()
	assert.Equal(t, []model.Message{res.Message}, snap.Messages)
}

func TestAppendSystemMessageWithoutConversationOnlyExtendsVisible(t *testing.T) {
	s := newTestStore(t)

	res := s.AppendMessage("notice", model.SenderSystem, "", nil)
	assert.False(t, res.Created)
	assert.Nil(t, res.Conversation)

	snap := s.Snapshot()
	assert.Len(t, snap.Messages, len(WelcomeMessages(testNow))+1)
	assert.Empty(t, s.Titles(model.CategoryUseCase))
}

func TestAppendMessageUpdatesCurrentConversation(t *testing.T) {
	s := newTestStore(t)
	key, _ := s.CreateConversation("one", "", nil)

	res := s.AppendMessage("two", model.SenderUser, "", nil)
	assert.False(t, res.Created)
	assert.Equal(t, &key, res.Conversation)

	stored, _ := s.Messages(key.Category, key.Title)
	require.Len(t, stored, 2)
	assert.Equal(t, "two", stored[1].Content)
}

func TestLoadConversation(t *testing.T) {
	s := newTestStore(t, WithConversations(SampleConversations(testNow)))

	ok := s.LoadConversation(model.CategoryReverse, "Equity Buy-out Entry Analysis")
	require.True(t, ok)

	snap := s.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Equity Buy-out Entry Analysis", snap.Current.Title)
	assert.Len(t, snap.Messages, 2)
}

func TestLoadMissingConversationResetsToDefaults(t *testing.T) {
	s := newTestStore(t)
	s.CreateConversation("hello", "", nil)

	assert.NotPanics(t, func() {
		ok := s.LoadConversation(model.CategoryUseCase, "does not exist")
		assert.False(t, ok)
	})

	snap := s.Snapshot()
	assert.Nil(t, snap.Current)
	assert.Equal(t, WelcomeMessages(testNow), snap.Messages)
}

func TestDeleteCurrentConversationResets(t *testing.T) {
	s := newTestStore(t)
	key, _ := s.CreateConversation("hello", "", nil)

	require.True(t, s.DeleteConversation(key.Category, key.Title))

	snap := s.Snapshot()
	assert.Nil(t, snap.Current)
	assert.Equal(t, model.StateNoConversation, snap.State)
	assert.Equal(t, WelcomeMessages(testNow), snap.Messages)
	_, ok := s.Messages(key.Category, key.Title)
	assert.False(t, ok)
}

func TestDeleteOtherConversationKeepsCurrent(t *testing.T) {
	s := newTestStore(t, WithConversations(SampleConversations(testNow)))
	key, _ := s.CreateConversation("hello", "", nil)

	require.True(t, s.DeleteConversation(model.CategoryUseCase, "Murabaha Sale Documentation"))

	snap := s.Snapshot()
	assert.Equal(t, &key, snap.Current)
	assert.Len(t, snap.Messages, 1)
}

func TestDeleteMissingConversationIsNoop(t *testing.T) {
	s := newTestStore(t)
	key, _ := s.CreateConversation("hello", "", nil)

	assert.False(t, s.DeleteConversation(model.CategoryUseCase, "missing"))
	assert.Equal(t, &key, s.Snapshot().Current)
}

func TestRenamePreservesMessages(t *testing.T) {
	s := newTestStore(t)
	key, first := s.CreateConversation("What is FAS 4?", "", nil)
	s.AppendReply(first.ID, "An answer.")
	before := s.Snapshot().Messages

	require.True(t, s.RenameConversation(key.Category, key.Title, "Ijarah notes"))

	snap := s.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Ijarah notes", snap.Current.Title)

	s.LoadConversation(key.Category, "Ijarah notes")
	assert.Equal(t, before, s.Snapshot().Messages)

	_, ok := s.Messages(key.Category, key.Title)
	assert.False(t, ok)
}

func TestRenameNoops(t *testing.T) {
	s := newTestStore(t, WithConversations(SampleConversations(testNow)))

	assert.False(t, s.RenameConversation(model.CategoryUseCase, "Murabaha Sale Documentation", "Murabaha Sale Documentation"))
	assert.False(t, s.RenameConversation(model.CategoryUseCase, "missing", "other"))
	assert.ElementsMatch(t, []string{"Ijarah MBT Contract Analysis", "Murabaha Sale Documentation"}, s.Titles(model.CategoryUseCase))
}

func TestRenameCollisionOverwrites(t *testing.T) {
	s := newTestStore(t, WithConversations(SampleConversations(testNow)))
	moved, _ := s.Messages(model.CategoryUseCase, "Murabaha Sale Documentation")

	require.True(t, s.RenameConversation(model.CategoryUseCase, "Murabaha Sale Documentation", "Ijarah MBT Contract Analysis"))

	assert.Equal(t, []string{"Ijarah MBT Contract Analysis"}, s.Titles(model.CategoryUseCase))
	got, _ := s.Messages(model.CategoryUseCase, "Ijarah MBT Contract Analysis")
	assert.Equal(t, moved, got)
}

func TestRenameOntoCurrentRefreshesVisible(t *testing.T) {
	s := newTestStore(t, WithConversations(SampleConversations(testNow)))
	s.LoadConversation(model.CategoryUseCase, "Ijarah MBT Contract Analysis")
	moved, _ := s.Messages(model.CategoryUseCase, "Murabaha Sale Documentation")

	s.RenameConversation(model.CategoryUseCase, "Murabaha Sale Documentation", "Ijarah MBT Contract Analysis")

	assert.Equal(t, moved, s.Snapshot().Messages)
}

func TestAppendReplyToBackgroundConversation(t *testing.T) {
	s := newTestStore(t)
	key, first := s.CreateConversation("first question", "", nil)
	s.LoadConversation(model.CategoryReverse, "missing")

	_, ok := s.AppendReply(first.ID, "late answer")
	require.True(t, ok)

	assert.Equal(t, WelcomeMessages(testNow), s.Snapshot().Messages)
	stored, _ := s.Messages(key.Category, key.Title)
	require.Len(t, stored, 2)
	assert.Equal(t, "late answer", stored[1].Content)
}

func TestAppendReplyToDeletedConversationIsDropped(t *testing.T) {
	s := newTestStore(t)
	key, first := s.CreateConversation("question", "", nil)
	s.DeleteConversation(key.Category, key.Title)

	_, ok := s.AppendReply(first.ID, "answer")
	assert.False(t, ok)
	_, exists := s.Messages(key.Category, key.Title)
	assert.False(t, exists)
}

func TestAppendReplyFollowsRename(t *testing.T) {
	s := newTestStore(t)
	key, first := s.CreateConversation("question", "", nil)
	require.True(t, s.RenameConversation(key.Category, key.Title, "Sukuk notes"))

	reply, ok := s.AppendReply(first.ID, "answer")
	require.True(t, ok)

	stored, _ := s.Messages(key.Category, "Sukuk notes")
	require.Len(t, stored, 2)
	assert.Equal(t, reply, stored[1])
	assert.Equal(t, stored, s.Snapshot().Messages)
	_, exists := s.Messages(key.Category, key.Title)
	assert.False(t, exists)
}

func TestAppendReplyAfterOverwriteIsDropped(t *testing.T) {
	s := newTestStore(t)
	_, first := s.CreateConversation("first", "", nil)
	key, _ := s.CreateConversation("second", "", nil)

	_, ok := s.AppendReply(first.ID, "answer")
	assert.False(t, ok)
	stored, _ := s.Messages(key.Category, key.Title)
	assert.Len(t, stored, 1)
}

func TestAppendMessageReportsActiveCategory(t *testing.T) {
	s := newTestStore(t)
	key, _ := s.CreateConversation("question", "", nil)
	s.SetCategory(model.CategoryTeamsOwn)

	res := s.AppendMessage("follow-up", model.SenderUser, "", nil)
	assert.Equal(t, model.CategoryTeamsOwn, res.Category)
	assert.Equal(t, &key, res.Conversation)
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	s.CreateConversation("question", "", nil)

	s.Clear()

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Nil(t, snap.Current)
}

func TestRespondingFlag(t *testing.T) {
	s := newTestStore(t)

	var events []model.Event
	unsubscribe := s.Subscribe(func(ev model.Event) {
		if ev.Type == model.EventRespondingChanged {
			events = append(events, ev)
		}
	})
	defer unsubscribe()

	s.BeginResponse()
	s.BeginResponse()
	assert.True(t, s.Responding())
	s.EndResponse()
	assert.True(t, s.Responding())
	s.EndResponse()
	assert.False(t, s.Responding())
	s.EndResponse()
	assert.False(t, s.Responding())

	require.Len(t, events, 2)
	assert.True(t, events[0].Responding)
	assert.False(t, events[1].Responding)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := newTestStore(t, WithSessionID("sess-1"))

	var got []model.EventType
	unsubscribe := s.Subscribe(func(ev model.Event) {
		assert.Equal(t, "sess-1", ev.SessionID)
		got = append(got, ev.Type)
	})

	key, _ := s.CreateConversation("q", "", nil)
	s.AppendMessage("q2", model.SenderUser, "", nil)
	s.RenameConversation(key.Category, key.Title, "renamed")
	s.SetCategory(model.CategoryReverse)
	s.SetCategory(model.CategoryReverse)
	s.DeleteConversation(key.Category, "renamed")
	unsubscribe()
	s.Clear()

	assert.Equal(t, []model.EventType{
		model.EventConversationCreated,
		model.EventMessageAppended,
		model.EventConversationRenamed,
		model.EventCategoryChanged,
		model.EventConversationDeleted,
	}, got)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore(t)
	s.CreateConversation("original", "", nil)

	snap := s.Snapshot()
	snap.Messages[0].Content = "mutated"

	assert.Equal(t, "original", s.Snapshot().Messages[0].Content)
}

func TestConcurrentAppends(t *testing.T) {
	s := NewStore()
	key, first := s.CreateConversation("start", "", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendReply(first.ID, fmt.Sprintf("reply %d", i))
		}(i)
	}
	wg.Wait()

	stored, ok := s.Messages(key.Category, key.Title)
	require.True(t, ok)
	assert.Len(t, stored, 51)
	assert.Len(t, s.Snapshot().Messages, 51)
}
