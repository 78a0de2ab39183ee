package events

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/onnwee/chatline/chat"
)

// StreamLookup fetches live stream metadata; it returns nil when offline.
type StreamLookup interface {
	Stream(ctx context.Context, channelID string) (*chat.Stream, error)
}

// EmoteLoader loads the emotes of a 7TV emote set.
type EmoteLoader interface {
	SevenTVEmoteSet(ctx context.Context, setID string) (*chat.EmoteSet, error)
}

// CosmeticsFeed manages cosmetics-feed subscriptions.
type CosmeticsFeed interface {
	SubscribeEmoteSet(setID string) error
	UnsubscribeEmoteSet(setID string) error
}

// Env carries the session and the lookup collaborators handlers may call.
// Collaborators are optional; handlers skip work that needs a missing one.
type Env struct {
	Session   *chat.Session
	Streams   StreamLookup
	Emotes    EmoteLoader
	Cosmetics CosmeticsFeed
}

var idSpace = uuid.MustParse("6f1c8a1e-4a8a-4c55-9d0a-2c1d7d1f0b9e")

// DerivedID returns a stable uuid for the joined parts.
func DerivedID(parts ...string) string {
	return uuid.NewSHA1(idSpace, []byte(strings.Join(parts, ":"))).String()
}
