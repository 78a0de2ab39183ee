package chat

import (
	"testing"
	"time"
)

func TestModerationState_ApplyIsSparse(t *testing.T) {
	s := &ModerationState{}
	s.Apply(ModePatch{
		EmoteOnly:    Bool(true),
		FollowerOnly: Bool(true),
		FollowerAge:  Duration(10 * time.Minute),
		Slow:         Duration(30 * time.Second),
	})

	got := s.Apply(ModePatch{Slow: Duration(0)})

	want := Mode{EmoteOnly: true, FollowerOnly: true, FollowerAge: 10 * time.Minute}
	if got != want {
		t.Errorf("Apply() = %+v, want %+v", got, want)
	}
	if !(ModePatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}
