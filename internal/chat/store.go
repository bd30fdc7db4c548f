// Package chat holds the per-session conversation store.
//
// A Store maps (category, title) to ordered message lists and tracks which
// conversation is displayed. It moves between two states: NoConversation,
// where the visible list is the default welcome list (or whatever was last
// cleared), and ConversationActive, where the visible list mirrors one
// stored conversation. Every mutation is a synchronous in-memory replacement
// and missing keys are never errors.
package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/isdb-fas/fasdesk/internal/model"
)

const (
	// TitlePrefix starts every generated conversation title.
	TitlePrefix = "New Conversation"

	// TitleLayout formats the creation time appended to TitlePrefix.
	TitleLayout = "Jan 2, 3:04 PM"
)

type conversation struct {
	messages  []model.Message
	updatedAt time.Time
}

// Store is the conversation store of one session. It is safe for concurrent use.
type Store struct {
	sessionID string
	now       func() time.Time
	newID     func() string

	mu            sync.RWMutex
	category      model.ScenarioCategory
	conversations map[model.ScenarioCategory]map[string]*conversation
	current       *model.ConversationKey
	visible       []model.Message
	defaults      []model.Message
	responding    int

	subMu   sync.Mutex
	subs    map[int]func(model.Event)
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for titles and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the message ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithDefaults sets the welcome list shown when no conversation is current.
func WithDefaults(msgs []model.Message) Option {
	return func(s *Store) { s.defaults = cloneMessages(msgs) }
}

// WithConversations seeds stored conversations.
func WithConversations(seed map[model.ScenarioCategory]map[string][]model.Message) Option {
	return func(s *Store) {
		for cat, convs := range seed {
			for title, msgs := range convs {
				s.put(model.ConversationKey{Category: cat, Title: title}, msgs)
			}
		}
	}
}

// WithSessionID tags emitted events with the owning session.
func WithSessionID(id string) Option {
	return func(s *Store) { s.sessionID = id }
}

// NewStore creates a store in the NoConversation state showing the defaults.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		newID:         func() string { return uuid.Must(uuid.NewV7()).String() },
		category:      model.DefaultCategory,
		conversations: make(map[model.ScenarioCategory]map[string]*conversation),
		subs:          make(map[int]func(model.Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.visible = cloneMessages(s.defaults)
	return s
}

// Subscribe registers fn for every event emitted after a mutation.
// fn runs on the mutating goroutine and must not block or call back into the store.
func (s *Store) Subscribe(fn func(model.Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) emit(ev model.Event) {
	ev.SessionID = s.sessionID
	ev.CreatedAt = s.now()

	s.subMu.Lock()
	fns := make([]func(model.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Category returns the active scenario category.
func (s *Store) Category() model.ScenarioCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.category
}

// SetCategory switches the active scenario category. The current conversation is kept.
func (s *Store) SetCategory(c model.ScenarioCategory) {
	s.mu.Lock()
	changed := s.category != c
	s.category = c
	s.mu.Unlock()

	if changed {
		s.emit(model.Event{Type: model.EventCategoryChanged, Category: c})
	}
}

// Snapshot returns a copy of the session's visible state.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.Snapshot{
		Category:   s.category,
		State:      model.StateNoConversation,
		Messages:   cloneMessages(s.visible),
		Responding: s.responding > 0,
	}
	if s.current != nil {
		key := *s.current
		snap.Current = &key
		snap.State = model.StateConversationActive
	}
	return snap
}

// Messages returns the stored messages of a conversation.
func (s *Store) Messages(category model.ScenarioCategory, title string) ([]model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.lookup(model.ConversationKey{Category: category, Title: title})
	if !ok {
		return nil, false
	}
	return cloneMessages(conv.messages), true
}

// Titles lists the conversation titles of a category, most recently updated first.
func (s *Store) Titles(category model.ScenarioCategory) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := s.conversations[category]
	titles := make([]string, 0, len(convs))
	for title := range convs {
		titles = append(titles, title)
	}
	sort.Slice(titles, func(i, j int) bool {
		a, b := convs[titles[i]], convs[titles[j]]
		if !a.updatedAt.Equal(b.updatedAt) {
			return a.updatedAt.After(b.updatedAt)
		}
		return titles[i] < titles[j]
	})
	return titles
}

// FindMessage looks a message up by ID, visible list first.
func (s *Store) FindMessage(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.visible {
		if m.ID == id {
			return m, true
		}
	}
	for _, convs := range s.conversations {
		for _, conv := range convs {
			for _, m := range conv.messages {
				if m.ID == id {
					return m, true
				}
			}
		}
	}
	return model.Message{}, false
}

// CreateConversation starts a conversation in the active category and makes it current.
// The title is not checked for uniqueness: creating two conversations within the same
// minute overwrites the first. When text is non-empty the first user message is stored
// and returned.
func (s *Store) CreateConversation(text string, tag model.StandardTag, attachments []model.FileAttachment) (model.ConversationKey, *model.Message) {
	s.mu.Lock()
	key := model.ConversationKey{Category: s.category, Title: s.newTitle()}

	var msgs []model.Message
	var first *model.Message
	if text != "" {
		m := s.newMessage(text, model.SenderUser, tag, attachments)
		msgs = append(msgs, m)
		first = &m
	}

	s.put(key, msgs)
	s.current = &key
	s.visible = cloneMessages(msgs)
	s.mu.Unlock()

	s.emit(model.Event{Type: model.EventConversationCreated, Category: key.Category, Conversation: &key, Message: first})
	return key, first
}

// LoadConversation displays a stored conversation. A missing conversation is an expected
// condition (for example a racing delete) and resets to the defaults.
func (s *Store) LoadConversation(category model.ScenarioCategory, title string) bool {
	key := model.ConversationKey{Category: category, Title: title}

	s.mu.Lock()
	conv, ok := s.lookup(key)
	if ok {
		s.visible = cloneMessages(conv.messages)
		s.current = &key
	} else {
		s.resetLocked()
	}
	s.mu.Unlock()

	ev := model.Event{Type: model.EventConversationLoaded, Category: category}
	if ok {
		ev.Conversation = &key
	}
	s.emit(ev)
	return ok
}

// DeleteConversation removes a conversation. Deleting the current conversation resets
// to the defaults; deleting a missing one is a no-op.
func (s *Store) DeleteConversation(category model.ScenarioCategory, title string) bool {
	key := model.ConversationKey{Category: category, Title: title}

	s.mu.Lock()
	_, ok := s.lookup(key)
	if ok {
		delete(s.conversations[category], title)
	}
	if s.isCurrent(key) {
		s.resetLocked()
	}
	s.mu.Unlock()

	if ok {
		s.emit(model.Event{Type: model.EventConversationDeleted, Category: category, Conversation: &key})
	}
	return ok
}

// RenameConversation moves a conversation to a new title within its category, keeping its
// messages in order. An existing conversation under newTitle is overwritten. Equal titles
// and missing conversations are no-ops.
func (s *Store) RenameConversation(category model.ScenarioCategory, oldTitle, newTitle string) bool {
	if oldTitle == newTitle {
		return false
	}
	oldKey := model.ConversationKey{Category: category, Title: oldTitle}
	newKey := model.ConversationKey{Category: category, Title: newTitle}

	s.mu.Lock()
	conv, ok := s.lookup(oldKey)
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.conversations[category], oldTitle)
	s.conversations[category][newTitle] = conv

	switch {
	case s.isCurrent(oldKey):
		s.current = &newKey
	case s.isCurrent(newKey):
		// the displayed conversation was overwritten
		s.visible = cloneMessages(conv.messages)
	}
	s.mu.Unlock()

	s.emit(model.Event{Type: model.EventConversationRenamed, Category: category, Conversation: &newKey, OldTitle: oldTitle})
	return true
}

// AppendResult reports what AppendMessage did.
type AppendResult struct {
	Message      model.Message
	Conversation *model.ConversationKey
	Created      bool

	// Category is the active category when the message was appended. It can differ
	// from Conversation.Category after SetCategory.
	Category model.ScenarioCategory
}

// AppendMessage appends a message to the visible list and to the current conversation.
// A user message while no conversation is current first creates one holding exactly
// that message.
func (s *Store) AppendMessage(text string, sender model.Sender, tag model.StandardTag, attachments []model.FileAttachment) AppendResult {
	s.mu.Lock()
	m := s.newMessage(text, sender, tag, attachments)
	res := AppendResult{Message: m, Category: s.category}
	category := s.category

	switch {
	case s.current == nil && sender == model.SenderUser:
		key := model.ConversationKey{Category: s.category, Title: s.newTitle()}
		s.visible = []model.Message{m}
		s.put(key, s.visible)
		s.current = &key
		res.Created = true
	case s.current != nil:
		s.visible = append(s.visible, m)
		s.put(*s.current, s.visible)
	default:
		s.visible = append(s.visible, m)
	}
	if s.current != nil {
		key := *s.current
		res.Conversation = &key
	}
	s.mu.Unlock()

	if res.Created {
		s.emit(model.Event{Type: model.EventConversationCreated, Category: res.Conversation.Category, Conversation: res.Conversation, Message: &m})
	} else {
		if res.Conversation != nil {
			category = res.Conversation.Category
		}
		s.emit(model.Event{Type: model.EventMessageAppended, Category: category, Conversation: res.Conversation, Message: &m})
	}
	return res
}

// AppendReply appends a system message to the conversation holding the question with
// ID questionID, wherever a rename has moved it. The visible list changes only when that
// conversation is current. It reports false when the question is no longer stored, which
// happens after a delete or an overwrite.
func (s *Store) AppendReply(questionID, text string) (model.Message, bool) {
	s.mu.Lock()
	key, conv, ok := s.holding(questionID)
	if !ok {
		s.mu.Unlock()
		return model.Message{}, false
	}

	m := s.newMessage(text, model.SenderSystem, "", nil)
	if s.isCurrent(key) {
		s.visible = append(s.visible, m)
		s.put(key, s.visible)
	} else {
		s.put(key, append(cloneMessages(conv.messages), m))
	}
	s.mu.Unlock()

	s.emit(model.Event{Type: model.EventMessageAppended, Category: key.Category, Conversation: &key, Message: &m})
	return m, true
}

// Clear empties the visible list and detaches from the current conversation.
func (s *Store) Clear() {
	s.mu.Lock()
	s.visible = nil
	s.current = nil
	s.mu.Unlock()

	s.emit(model.Event{Type: model.EventMessagesCleared})
}

// BeginResponse marks one more outstanding response.
func (s *Store) BeginResponse() {
	s.mu.Lock()
	s.responding++
	flipped := s.responding == 1
	s.mu.Unlock()

	if flipped {
		s.emit(model.Event{Type: model.EventRespondingChanged, Responding: true})
	}
}

// EndResponse marks one outstanding response as finished.
func (s *Store) EndResponse() {
	s.mu.Lock()
	if s.responding > 0 {
		s.responding--
	}
	flipped := s.responding == 0
	s.mu.Unlock()

	if flipped {
		s.emit(model.Event{Type: model.EventRespondingChanged, Responding: false})
	}
}

// Responding reports whether any response is outstanding.
func (s *Store) Responding() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.responding > 0
}

func (s *Store) lookup(key model.ConversationKey) (*conversation, bool) {
	conv, ok := s.conversations[key.Category][key.Title]
	return conv, ok
}

// holding finds the stored conversation containing the message with the given ID.
func (s *Store) holding(messageID string) (model.ConversationKey, *conversation, bool) {
	for cat, convs := range s.conversations {
		for title, conv := range convs {
			for _, m := range conv.messages {
				if m.ID == messageID {
					return model.ConversationKey{Category: cat, Title: title}, conv, true
				}
			}
		}
	}
	return model.ConversationKey{}, nil, false
}

func (s *Store) put(key model.ConversationKey, msgs []model.Message) {
	convs, ok := s.conversations[key.Category]
	if !ok {
		convs = make(map[string]*conversation)
		s.conversations[key.Category] = convs
	}
	updated := time.Time{}
	if n := len(msgs); n > 0 {
		updated = msgs[n-1].Timestamp
	}
	if s.now != nil && updated.IsZero() {
		updated = s.now()
	}
	convs[key.Title] = &conversation{messages: cloneMessages(msgs), updatedAt: updated}
}

func (s *Store) isCurrent(key model.ConversationKey) bool {
	return s.current != nil && *s.current == key
}

func (s *Store) resetLocked() {
	s.current = nil
	s.visible = cloneMessages(s.defaults)
}

func (s *Store) newTitle() string {
	return TitlePrefix + " " + s.now().Format(TitleLayout)
}

func (s *Store) newMessage(text string, sender model.Sender, tag model.StandardTag, attachments []model.FileAttachment) model.Message {
	m := model.Message{
		ID:        s.newID(),
		Content:   text,
		Sender:    sender,
		Timestamp: s.now(),
		Standard:  tag,
	}
	if len(attachments) > 0 {
		m.Attachments = append([]model.FileAttachment(nil), attachments...)
	}
	return m
}

func cloneMessages(msgs []model.Message) []model.Message {
	if msgs == nil {
		return []model.Message{}
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}
