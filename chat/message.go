package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is an entry of a channel timeline: a *UserMessage or a *SystemMessage.
type Message interface {
	ID() string
	Timestamp() time.Time
	// Recent marks messages delivered by history backfill instead of live.
	Recent() bool
	Text() string
	Deleted() bool

	header() *base
}

// Header carries the fields common to both message kinds.
type Header struct {
	ID        string
	Timestamp time.Time
	Recent    bool
}

type base struct {
	id     string
	ts     time.Time
	recent bool

	mu      sync.RWMutex
	text    string
	deleted bool
}

func newBase(h Header, text string) base {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now()
	}
	return base{id: h.ID, ts: h.Timestamp, recent: h.Recent, text: text}
}

func (b *base) ID() string           { return b.id }
func (b *base) Timestamp() time.Time { return b.ts }
func (b *base) Recent() bool         { return b.recent }
func (b *base) header() *base        { return b }

func (b *base) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

func (b *base) Deleted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deleted
}

// markDeleted sets the deleted flag and reports whether it changed.
func (b *base) markDeleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleted {
		return false
	}
	b.deleted = true
	return true
}

// Reply is the parent of a threaded reply.
type Reply struct {
	ParentID          string
	ParentUserID      string
	ParentLogin       string
	ParentDisplayName string
	ParentText        string
}

// AutoMod is the filter verdict attached to a held or flagged message.
type AutoMod struct {
	Category   string
	Level      int
	Boundaries []Span
}

// Span is a half-open rune range [Start, End).
type Span struct {
	Start int
	End   int
}

// EmoteRange is an emote occurrence reported by the chat transport.
type EmoteRange struct {
	ID   string
	Name string
	Span Span
}

// EmoteLookup resolves third-party emotes by name while parsing.
type EmoteLookup interface {
	Emote(name string) (Emote, bool)
}

// UserMessage is a chat message authored by a user.
type UserMessage struct {
	base

	Author *User
	Viewer *Viewer

	Badges       []Badge
	Bits         int
	Action       bool
	Highlighted  bool
	FirstMessage bool
	Reply        *Reply
	// SourceChannelID is set for messages relayed from another room in shared chat.
	SourceChannelID string
	// Notice is the platform-rendered text of a subscription, raid or similar event.
	Notice string
	// Kind is the event kind for notices, e.g. "sub" or "announcement".
	Kind string

	Emotes []EmoteRange
	Lookup EmoteLookup

	autoMod *AutoMod
	nodes   []Node
}

// NewUserMessage returns a message authored by author. A zero id or timestamp
// is filled in.
func NewUserMessage(h Header, text string, author *User) *UserMessage {
	return &UserMessage{base: newBase(h, text), Author: author}
}

// AutoMod returns the attached verdict, if any.
func (m *UserMessage) AutoMod() *AutoMod {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.autoMod
}

// SetAutoMod attaches a verdict after construction.
func (m *UserMessage) SetAutoMod(a *AutoMod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoMod = a
	m.nodes = nil
}

// SetText corrects the message body.
func (m *UserMessage) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.nodes = nil
}

// Nodes returns the parsed content, computing it on first use.
func (m *UserMessage) Nodes() []Node {
	m.mu.RLock()
	nodes := m.nodes
	m.mu.RUnlock()
	if nodes != nil {
		return nodes
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes == nil {
		m.nodes = parseNodes(m.text, m.Emotes, m.Lookup, m.Bits)
	}
	return m.nodes
}

// SystemMessage is a synthesized entry describing a state change.
type SystemMessage struct {
	base
	Context Context
}

// NewSystemMessage returns a system message whose text is rendered from c.
func NewSystemMessage(h Header, c Context) *SystemMessage {
	return &SystemMessage{base: newBase(h, Describe(c)), Context: c}
}
