package chat

import (
	"sync"

	"github.com/onnwee/chatline/telemetry"
)

// Observer is notified of timeline changes after they are applied.
type Observer interface {
	MessageAdded(ch *Channel, m Message)
	MessagesDeleted(ch *Channel, ids []string)
}

// Timeline is the ordered message list of one channel.
//
// Live messages append. History-backfill messages are inserted just after the
// previously inserted backfill message, so a backfill delivered one message at
// a time stays contiguous and ordered even when live messages interleave.
type Timeline struct {
	owner    *Channel
	observer Observer

	mu       sync.RWMutex
	messages []Message
	byID     map[string]Message
	// cursor is the index of the last inserted recent message, -1 when none.
	cursor      int
	replyTarget string
	history     []string
}

// NewTimeline returns an empty timeline. owner and observer may be nil.
func NewTimeline(owner *Channel, observer Observer) *Timeline {
	return &Timeline{
		owner:    owner,
		observer: observer,
		byID:     make(map[string]Message),
		cursor:   -1,
	}
}

// Add inserts m and reports whether it was added. A message whose id is
// already present is ignored.
func (t *Timeline) Add(m Message) bool {
	t.mu.Lock()
	if _, ok := t.byID[m.ID()]; ok {
		t.mu.Unlock()
		return false
	}
	t.byID[m.ID()] = m
	if m.Recent() {
		at := t.cursor + 1
		t.messages = append(t.messages, nil)
		copy(t.messages[at+1:], t.messages[at:])
		t.messages[at] = m
		t.cursor = at
	} else {
		t.messages = append(t.messages, m)
	}
	t.mu.Unlock()

	kind := "system"
	if _, ok := m.(*UserMessage); ok {
		kind = "user"
	}
	telemetry.Inc(telemetry.TimelineMessages, kind)
	if t.observer != nil {
		t.observer.MessageAdded(t.owner, m)
	}
	return true
}

// Get returns the message with the given id.
func (t *Timeline) Get(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.byID[id]
	return m, ok
}

// UserMessage returns the user-authored message with the given id.
func (t *Timeline) UserMessage(id string) (*UserMessage, bool) {
	m, ok := t.Get(id)
	if !ok {
		return nil, false
	}
	um, ok := m.(*UserMessage)
	return um, ok
}

// Messages returns a snapshot in timeline order.
func (t *Timeline) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// DeleteMessages soft-deletes user messages by authorID, or every user message
// when authorID is empty, and returns the ids that changed.
func (t *Timeline) DeleteMessages(authorID string) []string {
	t.mu.RLock()
	var ids []string
	for _, m := range t.messages {
		um, ok := m.(*UserMessage)
		if !ok || (authorID != "" && um.Author.ID != authorID) {
			continue
		}
		if um.markDeleted() {
			ids = append(ids, um.ID())
		}
	}
	t.mu.RUnlock()
	t.notifyDeleted(ids)
	return ids
}

// DeleteMessage soft-deletes a single message and reports whether it changed.
func (t *Timeline) DeleteMessage(id string) bool {
	m, ok := t.Get(id)
	if !ok || !m.header().markDeleted() {
		return false
	}
	t.notifyDeleted([]string{id})
	return true
}

func (t *Timeline) notifyDeleted(ids []string) {
	if len(ids) > 0 && t.observer != nil {
		t.observer.MessagesDeleted(t.owner, ids)
	}
}

// Reset drops every message, the reply target and the send history.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.byID = make(map[string]Message)
	t.cursor = -1
	t.replyTarget = ""
	t.history = nil
}

// SetReplyTarget records the message the next send replies to.
func (t *Timeline) SetReplyTarget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replyTarget = id
}

func (t *Timeline) ReplyTarget() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.replyTarget
}

// RecordSent appends text to the send history.
func (t *Timeline) RecordSent(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, text)
}

// History returns the send history, oldest first.
func (t *Timeline) History() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.history))
	copy(out, t.history)
	return out
}

// LastSent returns the most recent history entry.
func (t *Timeline) LastSent() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.history) == 0 {
		return "", false
	}
	return t.history[len(t.history)-1], true
}
