package chat

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func userMsg(id string, author *User, recent bool) *UserMessage {
	return NewUserMessage(Header{ID: id, Timestamp: time.Unix(0, 0), Recent: recent}, "hello "+id, author)
}

func TestTimeline_AddIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	author := newUser(Profile{ID: "1", Login: "alice"})

	for round := 0; round < 50; round++ {
		tl := NewTimeline(nil, nil)
		seen := make(map[string]bool)
		for i := 0; i < 200; i++ {
			id := fmt.Sprintf("m%d", rng.Intn(40))
			added := tl.Add(userMsg(id, author, rng.Intn(3) == 0))
			if added == seen[id] {
				t.Fatalf("round %d: Add(%s) = %v with seen=%v", round, id, added, seen[id])
			}
			seen[id] = true
		}
		if tl.Len() != len(seen) {
			t.Fatalf("round %d: Len() = %d, want %d distinct ids", round, tl.Len(), len(seen))
		}
		ids := make(map[string]int)
		for _, m := range tl.Messages() {
			ids[m.ID()]++
		}
		for id, n := range ids {
			if n != 1 {
				t.Fatalf("round %d: id %s appears %d times", round, id, n)
			}
		}
	}
}

func TestTimeline_RecentMessagesStayContiguous(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	author := newUser(Profile{ID: "1", Login: "alice"})

	for round := 0; round < 100; round++ {
		n, m := 1+rng.Intn(15), rng.Intn(15)
		tl := NewTimeline(nil, nil)

		recent, live := 0, 0
		for recent < n || live < m {
			if live < m && (recent == n || rng.Intn(2) == 0) {
				tl.Add(userMsg(fmt.Sprintf("live%d", live), author, false))
				live++
				continue
			}
			tl.Add(userMsg(fmt.Sprintf("recent%d", recent), author, true))
			recent++
		}

		msgs := tl.Messages()
		first := -1
		for i, msg := range msgs {
			if msg.Recent() {
				first = i
				break
			}
		}
		for k := 0; k < n; k++ {
			msg := msgs[first+k]
			if want := fmt.Sprintf("recent%d", k); msg.ID() != want {
				t.Fatalf("round %d (n=%d m=%d): position %d = %s, want %s", round, n, m, first+k, msg.ID(), want)
			}
		}
		liveSeen := 0
		for _, msg := range msgs {
			if !msg.Recent() {
				if want := fmt.Sprintf("live%d", liveSeen); msg.ID() != want {
					t.Fatalf("round %d: live order broken at %s, want %s", round, msg.ID(), want)
				}
				liveSeen++
			}
		}
	}
}

func TestTimeline_DeleteMessages(t *testing.T) {
	alice := newUser(Profile{ID: "1", Login: "alice"})
	bob := newUser(Profile{ID: "2", Login: "bob"})

	tests := []struct {
		name     string
		authorID string
		want     map[string]bool
	}{
		{"single author", "1", map[string]bool{"a1": true, "a2": true, "b1": false}},
		{"everyone", "", map[string]bool{"a1": true, "a2": true, "b1": true}},
		{"unknown author", "3", map[string]bool{"a1": false, "a2": false, "b1": false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewTimeline(nil, nil)
			tl.Add(userMsg("a1", alice, false))
			tl.Add(userMsg("b1", bob, false))
			tl.Add(NewSystemMessage(Header{ID: "sys"}, Text{Body: "hi"}))
			tl.Add(userMsg("a2", alice, false))

			tl.DeleteMessages(tt.authorID)
			for id, want := range tt.want {
				m, _ := tl.Get(id)
				if m.Deleted() != want {
					t.Errorf("%s deleted = %v, want %v", id, m.Deleted(), want)
				}
			}
			if sys, _ := tl.Get("sys"); sys.Deleted() {
				t.Error("system messages must never be deleted")
			}
			if tl.Len() != 4 {
				t.Errorf("Len() = %d, soft delete must keep entries", tl.Len())
			}
		})
	}
}

func TestTimeline_DeleteMessagesReportsOnlyChanges(t *testing.T) {
	alice := newUser(Profile{ID: "1", Login: "alice"})
	tl := NewTimeline(nil, nil)
	tl.Add(userMsg("a1", alice, false))

	if ids := tl.DeleteMessages("1"); len(ids) != 1 {
		t.Fatalf("first delete ids = %v", ids)
	}
	if ids := tl.DeleteMessages("1"); len(ids) != 0 {
		t.Errorf("second delete ids = %v, want none", ids)
	}
	if tl.DeleteMessage("a1") {
		t.Error("DeleteMessage on a deleted message should report no change")
	}
}

func TestTimeline_Reset(t *testing.T) {
	alice := newUser(Profile{ID: "1", Login: "alice"})
	tl := NewTimeline(nil, nil)
	tl.Add(userMsg("r1", alice, true))
	tl.Add(userMsg("l1", alice, false))
	tl.SetReplyTarget("l1")
	tl.RecordSent("hello")

	tl.Reset()

	if tl.Len() != 0 || tl.ReplyTarget() != "" || len(tl.History()) != 0 {
		t.Fatalf("Reset left state: len=%d reply=%q history=%v", tl.Len(), tl.ReplyTarget(), tl.History())
	}
	if !tl.Add(userMsg("l1", alice, false)) {
		t.Error("ids must be reusable after Reset")
	}
	tl.Add(userMsg("r2", alice, true))
	if first := tl.Messages()[0]; first.ID() != "r2" {
		t.Errorf("recent cursor not reset: first = %s", first.ID())
	}
}

type recordingObserver struct {
	added   []string
	deleted []string
}

func (o *recordingObserver) MessageAdded(_ *Channel, m Message) { o.added = append(o.added, m.ID()) }
func (o *recordingObserver) MessagesDeleted(_ *Channel, ids []string) {
	o.deleted = append(o.deleted, ids...)
}

func TestTimeline_Observer(t *testing.T) {
	obs := &recordingObserver{}
	alice := newUser(Profile{ID: "1", Login: "alice"})
	tl := NewTimeline(nil, obs)

	tl.Add(userMsg("a1", alice, false))
	tl.Add(userMsg("a1", alice, false))
	tl.DeleteMessage("a1")

	if len(obs.added) != 1 || len(obs.deleted) != 1 {
		t.Errorf("observer saw added=%v deleted=%v", obs.added, obs.deleted)
	}
}
