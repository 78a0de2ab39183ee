package chat

import (
	"sync"
	"time"
)

// Whisper is a private message.
type Whisper struct {
	ID        string
	From      *User
	Text      string
	Timestamp time.Time
}

// Whispers keeps one thread per conversation partner.
type Whispers struct {
	mu      sync.RWMutex
	threads map[string][]Whisper
	unread  map[string]int
}

func NewWhispers() *Whispers {
	return &Whispers{threads: make(map[string][]Whisper), unread: make(map[string]int)}
}

// Add appends w to the thread with partnerID. Duplicate ids are ignored.
func (w *Whispers) Add(partnerID string, msg Whisper) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.threads[partnerID] {
		if msg.ID != "" && existing.ID == msg.ID {
			return false
		}
	}
	w.threads[partnerID] = append(w.threads[partnerID], msg)
	w.unread[partnerID]++
	return true
}

func (w *Whispers) Thread(partnerID string) []Whisper {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Whisper, len(w.threads[partnerID]))
	copy(out, w.threads[partnerID])
	return out
}

func (w *Whispers) Unread(partnerID string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.unread[partnerID]
}

func (w *Whispers) MarkRead(partnerID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.unread, partnerID)
}
