package eventsub

import (
	"encoding/json"
	"fmt"
)

// Subscription types consumed by the client.
const (
	TypeChannelModerate       = "channel.moderate"
	TypeSuspiciousUserUpdate  = "channel.suspicious_user.update"
	TypeSuspiciousUserMessage = "channel.suspicious_user.message"
	TypeUnbanRequestCreate    = "channel.unban_request.create"
	TypeUnbanRequestResolve   = "channel.unban_request.resolve"
	TypeWarningAcknowledge    = "channel.warning.acknowledge"
	TypeSubscriptionEnd       = "channel.subscription.end"
	TypeChatUserMessageHold   = "channel.chat.user_message_hold"
	TypeChatUserMessageUpdate = "channel.chat.user_message_update"
	TypeAutomodMessageHold    = "automod.message.hold"
	TypeAutomodMessageUpdate  = "automod.message.update"
	TypeStreamOnline          = "stream.online"
	TypeStreamOffline         = "stream.offline"
	TypeChannelUpdate         = "channel.update"
	TypeShieldModeBegin       = "channel.shield_mode.begin"
	TypeShieldModeEnd         = "channel.shield_mode.end"
)

// Condition selects which condition fields a topic needs besides the broadcaster.
type Condition int

const (
	ConditionBroadcaster Condition = iota
	ConditionModerator
	ConditionUser
)

// Topic is one subscription the client creates per joined channel.
type Topic struct {
	Type      string
	Version   string
	Condition Condition
	// Privileged topics are only subscribed when the session user moderates the channel.
	Privileged bool
}

// Topics lists every subscription, in the order they are created.
var Topics = []Topic{
	{TypeStreamOnline, "1", ConditionBroadcaster, false},
	{TypeStreamOffline, "1", ConditionBroadcaster, false},
	{TypeChannelUpdate, "2", ConditionBroadcaster, false},
	{TypeChatUserMessageHold, "1", ConditionUser, false},
	{TypeChatUserMessageUpdate, "1", ConditionUser, false},
	{TypeChannelModerate, "2", ConditionModerator, true},
	{TypeSuspiciousUserUpdate, "1", ConditionModerator, true},
	{TypeSuspiciousUserMessage, "1", ConditionModerator, true},
	{TypeUnbanRequestCreate, "1", ConditionModerator, true},
	{TypeUnbanRequestResolve, "1", ConditionModerator, true},
	{TypeWarningAcknowledge, "1", ConditionModerator, true},
	{TypeAutomodMessageHold, "2", ConditionModerator, true},
	{TypeAutomodMessageUpdate, "2", ConditionModerator, true},
	{TypeShieldModeBegin, "1", ConditionModerator, true},
	{TypeShieldModeEnd, "1", ConditionModerator, true},
}

// SelfTopics are subscribed once per session with the authenticated user as broadcaster.
var SelfTopics = []Topic{
	{TypeSubscriptionEnd, "1", ConditionBroadcaster, false},
}

// TopicsFor returns the topics applicable to a channel.
func TopicsFor(moderating bool) []Topic {
	out := make([]Topic, 0, len(Topics))
	for _, t := range Topics {
		if t.Privileged && !moderating {
			continue
		}
		out = append(out, t)
	}
	return out
}

type channelRef interface {
	BroadcasterID() string
	BroadcasterLogin() string
}

type decoder func(json.RawMessage) (channelRef, any, error)

func decodeAs[T channelRef](raw json.RawMessage) (channelRef, any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, err
	}
	return v, v, nil
}

var decoders = map[string]decoder{
	TypeChannelModerate:       decodeAs[ChannelModerate],
	TypeSuspiciousUserUpdate:  decodeAs[SuspiciousUserUpdate],
	TypeSuspiciousUserMessage: decodeAs[SuspiciousUserMessage],
	TypeUnbanRequestCreate:    decodeAs[UnbanRequestCreate],
	TypeUnbanRequestResolve:   decodeAs[UnbanRequestResolve],
	TypeWarningAcknowledge:    decodeAs[WarningAcknowledge],
	TypeSubscriptionEnd:       decodeAs[SubscriptionEnd],
	TypeChatUserMessageHold:   decodeAs[ChatUserMessageHold],
	TypeChatUserMessageUpdate: decodeAs[ChatUserMessageUpdate],
	TypeAutomodMessageHold:    decodeAs[AutomodMessageHold],
	TypeAutomodMessageUpdate:  decodeAs[AutomodMessageUpdate],
	TypeStreamOnline:          decodeAs[StreamOnline],
	TypeStreamOffline:         decodeAs[StreamOffline],
	TypeChannelUpdate:         decodeAs[ChannelUpdate],
	TypeShieldModeBegin:       decodeAs[ShieldModeBegin],
	TypeShieldModeEnd:         decodeAs[ShieldModeEnd],
}

// ErrUnknownType is returned by Decode for subscription types without a decoder.
var ErrUnknownType = fmt.Errorf("eventsub: unknown subscription type")

// Decode parses a notification event body for the given subscription type.
// It returns the broadcaster id and login along with the typed payload.
func Decode(subType string, raw json.RawMessage) (id, login string, payload any, err error) {
	dec, ok := decoders[subType]
	if !ok {
		return "", "", nil, fmt.Errorf("%w: %s", ErrUnknownType, subType)
	}
	ref, v, err := dec(raw)
	if err != nil {
		return "", "", nil, fmt.Errorf("decode %s: %w", subType, err)
	}
	return ref.BroadcasterID(), ref.BroadcasterLogin(), v, nil
}
