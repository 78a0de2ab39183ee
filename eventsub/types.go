// Package eventsub adapts Twitch EventSub websocket notifications to router events.
package eventsub

import "time"

// Broadcaster identifies the channel a notification belongs to.
type Broadcaster struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	BroadcasterUserName  string `json:"broadcaster_user_name"`
}

// BroadcasterID implements the decoder's channel routing.
func (b Broadcaster) BroadcasterID() string { return b.BroadcasterUserID }

// BroadcasterLogin implements the decoder's channel routing.
func (b Broadcaster) BroadcasterLogin() string { return b.BroadcasterUserLogin }

// UserRef is the user a notification is about.
type UserRef struct {
	UserID    string `json:"user_id"`
	UserLogin string `json:"user_login"`
	UserName  string `json:"user_name"`
}

// Moderator is the moderator who acted.
type Moderator struct {
	ModeratorUserID    string `json:"moderator_user_id"`
	ModeratorUserLogin string `json:"moderator_user_login"`
	ModeratorUserName  string `json:"moderator_user_name"`
}

// Message is a chat message body with its fragments.
type Message struct {
	MessageID string     `json:"message_id,omitempty"`
	Text      string     `json:"text"`
	Fragments []Fragment `json:"fragments"`
}

// Fragment is one piece of a structured chat message.
type Fragment struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emote *struct {
		ID string `json:"id"`
	} `json:"emote,omitempty"`
}

// ChannelModerate is channel.moderate v2: one of many moderation actions.
type ChannelModerate struct {
	Broadcaster
	Moderator
	SourceBroadcasterUserID string `json:"source_broadcaster_user_id"`
	Action                  string `json:"action"`

	Followers    *ModerateFollowers    `json:"followers"`
	Slow         *ModerateSlow         `json:"slow"`
	Vip          *UserRef              `json:"vip"`
	Unvip        *UserRef              `json:"unvip"`
	Mod          *UserRef              `json:"mod"`
	Unmod        *UserRef              `json:"unmod"`
	Ban          *ModerateBan          `json:"ban"`
	Unban        *UserRef              `json:"unban"`
	Timeout      *ModerateTimeout      `json:"timeout"`
	Untimeout    *UserRef              `json:"untimeout"`
	Raid         *ModerateRaid         `json:"raid"`
	Unraid       *UserRef              `json:"unraid"`
	Delete       *ModerateDelete       `json:"delete"`
	AutomodTerms *ModerateTerms        `json:"automod_terms"`
	UnbanRequest *ModerateUnbanRequest `json:"unban_request"`
	Warn         *ModerateWarn         `json:"warn"`
}

type ModerateFollowers struct {
	FollowDurationMinutes int `json:"follow_duration_minutes"`
}

type ModerateSlow struct {
	WaitTimeSeconds int `json:"wait_time_seconds"`
}

type ModerateBan struct {
	UserRef
	Reason string `json:"reason"`
}

type ModerateTimeout struct {
	UserRef
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ModerateRaid struct {
	UserRef
	ViewerCount int `json:"viewer_count"`
}

type ModerateDelete struct {
	UserRef
	MessageID   string `json:"message_id"`
	MessageBody string `json:"message_body"`
}

// ModerateTerms is an edit to the blocked or permitted term lists.
type ModerateTerms struct {
	Action      string   `json:"action"`
	List        string   `json:"list"`
	Terms       []string `json:"terms"`
	FromAutomod bool     `json:"from_automod"`
}

type ModerateUnbanRequest struct {
	UserRef
	IsApproved       bool   `json:"is_approved"`
	ModeratorMessage string `json:"moderator_message"`
}

type ModerateWarn struct {
	UserRef
	Reason         string   `json:"reason"`
	ChatRulesCited []string `json:"chat_rules_cited"`
}

// SuspiciousUserUpdate is channel.suspicious_user.update.
type SuspiciousUserUpdate struct {
	Broadcaster
	Moderator
	UserRef
	LowTrustStatus string `json:"low_trust_status"`
}

// SuspiciousUserMessage is channel.suspicious_user.message.
type SuspiciousUserMessage struct {
	Broadcaster
	UserRef
	LowTrustStatus       string   `json:"low_trust_status"`
	SharedBanChannelIDs  []string `json:"shared_ban_channel_ids"`
	Types                []string `json:"types"`
	BanEvasionEvaluation string   `json:"ban_evasion_evaluation"`
	Message              Message  `json:"message"`
}

// UnbanRequestCreate is channel.unban_request.create.
type UnbanRequestCreate struct {
	Broadcaster
	UserRef
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// UnbanRequestResolve is channel.unban_request.resolve.
type UnbanRequestResolve struct {
	Broadcaster
	Moderator
	UserRef
	ID             string `json:"id"`
	ResolutionText string `json:"resolution_text"`
	Status         string `json:"status"`
}

// WarningAcknowledge is channel.warning.acknowledge.
type WarningAcknowledge struct {
	Broadcaster
	UserRef
}

// SubscriptionEnd is channel.subscription.end.
type SubscriptionEnd struct {
	Broadcaster
	UserRef
	Tier   string `json:"tier"`
	IsGift bool   `json:"is_gift"`
}

// ChatUserMessageHold is channel.chat.user_message_hold.
type ChatUserMessageHold struct {
	Broadcaster
	UserRef
	MessageID string  `json:"message_id"`
	Message   Message `json:"message"`
}

// ChatUserMessageUpdate is channel.chat.user_message_update.
type ChatUserMessageUpdate struct {
	Broadcaster
	UserRef
	Status    string  `json:"status"`
	MessageID string  `json:"message_id"`
	Message   Message `json:"message"`
}

// AutomodBoundary is a flagged rune range.
type AutomodBoundary struct {
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`
}

// AutomodMessageHold is automod.message.hold v2.
type AutomodMessageHold struct {
	Broadcaster
	UserRef
	MessageID string  `json:"message_id"`
	Message   Message `json:"message"`
	Reason    string  `json:"reason"`
	Automod   *struct {
		Category   string            `json:"category"`
		Level      int               `json:"level"`
		Boundaries []AutomodBoundary `json:"boundaries"`
	} `json:"automod"`
	BlockedTerm *struct {
		TermsFound []struct {
			TermID   string          `json:"term_id"`
			Boundary AutomodBoundary `json:"boundary"`
		} `json:"terms_found"`
	} `json:"blocked_term"`
	HeldAt time.Time `json:"held_at"`
}

// AutomodMessageUpdate is automod.message.update v2.
type AutomodMessageUpdate struct {
	Broadcaster
	UserRef
	Moderator
	MessageID string  `json:"message_id"`
	Message   Message `json:"message"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason"`
}

// StreamOnline is stream.online.
type StreamOnline struct {
	Broadcaster
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	StartedAt time.Time `json:"started_at"`
}

// StreamOffline is stream.offline.
type StreamOffline struct {
	Broadcaster
}

// ChannelUpdate is channel.update v2.
type ChannelUpdate struct {
	Broadcaster
	Title        string `json:"title"`
	Language     string `json:"language"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
}

// ShieldModeBegin is channel.shield_mode.begin.
type ShieldModeBegin struct {
	Broadcaster
	Moderator
	StartedAt time.Time `json:"started_at"`
}

// ShieldModeEnd is channel.shield_mode.end.
type ShieldModeEnd struct {
	Broadcaster
	Moderator
	EndedAt time.Time `json:"ended_at"`
}
