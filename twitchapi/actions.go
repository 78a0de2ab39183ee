package twitchapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nicklaw5/helix/v2"
)

// SendResult is the platform's verdict on a sent chat message.
type SendResult struct {
	MessageID string
	Sent      bool
	// DropReason is set when the platform accepted the request but did not
	// deliver the message.
	DropReason string
}

// SendMessage posts text to a channel as senderID, optionally as a reply.
func (c *Client) SendMessage(ctx context.Context, broadcasterID, senderID, text, replyTo string) (SendResult, error) {
	body := map[string]string{
		"broadcaster_id": broadcasterID,
		"sender_id":      senderID,
		"message":        text,
	}
	if replyTo != "" {
		body["reply_parent_message_id"] = replyTo
	}
	var resp struct {
		Data []struct {
			MessageID  string `json:"message_id"`
			IsSent     bool   `json:"is_sent"`
			DropReason *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"drop_reason"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/messages", nil, body, &resp); err != nil {
		return SendResult{}, fmt.Errorf("send message: %w", err)
	}
	if len(resp.Data) == 0 {
		return SendResult{}, fmt.Errorf("send message: empty response")
	}
	d := resp.Data[0]
	out := SendResult{MessageID: d.MessageID, Sent: d.IsSent}
	if d.DropReason != nil {
		out.DropReason = d.DropReason.Message
	}
	return out, nil
}

func modQuery(broadcasterID, moderatorID string) url.Values {
	return url.Values{"broadcaster_id": {broadcasterID}, "moderator_id": {moderatorID}}
}

// Announce posts a highlighted announcement.
func (c *Client) Announce(ctx context.Context, broadcasterID, moderatorID, text string) error {
	return c.do(ctx, http.MethodPost, "/chat/announcements", modQuery(broadcasterID, moderatorID),
		map[string]string{"message": text}, nil)
}

// Ban bans userID, or times them out when duration is positive.
func (c *Client) Ban(ctx context.Context, broadcasterID, moderatorID, userID string, duration time.Duration, reason string) error {
	data := map[string]any{"user_id": userID}
	if duration > 0 {
		data["duration"] = int(duration / time.Second)
	}
	if reason != "" {
		data["reason"] = reason
	}
	return c.do(ctx, http.MethodPost, "/moderation/bans", modQuery(broadcasterID, moderatorID),
		map[string]any{"data": data}, nil)
}

// Unban lifts a ban or timeout.
func (c *Client) Unban(ctx context.Context, broadcasterID, moderatorID, userID string) error {
	q := modQuery(broadcasterID, moderatorID)
	q.Set("user_id", userID)
	return c.do(ctx, http.MethodDelete, "/moderation/bans", q, nil, nil)
}

// Warn issues a warning the user must acknowledge.
func (c *Client) Warn(ctx context.Context, broadcasterID, moderatorID, userID, reason string) error {
	return c.do(ctx, http.MethodPost, "/moderation/warnings", modQuery(broadcasterID, moderatorID),
		map[string]any{"data": map[string]string{"user_id": userID, "reason": reason}}, nil)
}

// DeleteMessage deletes one message, or every message when messageID is empty.
func (c *Client) DeleteMessage(ctx context.Context, broadcasterID, moderatorID, messageID string) error {
	q := modQuery(broadcasterID, moderatorID)
	if messageID != "" {
		q.Set("message_id", messageID)
	}
	return c.do(ctx, http.MethodDelete, "/moderation/chat", q, nil, nil)
}

// Block adds userID to the authenticated user's block list.
func (c *Client) Block(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPut, "/users/blocks", url.Values{"target_user_id": {userID}}, nil, nil)
}

// Unblock removes userID from the block list.
func (c *Client) Unblock(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/blocks", url.Values{"target_user_id": {userID}}, nil, nil)
}

// ChatSettings is a sparse chat settings update.
type ChatSettings struct {
	EmoteMode                     *bool `json:"emote_mode,omitempty"`
	FollowerMode                  *bool `json:"follower_mode,omitempty"`
	FollowerModeDuration          *int  `json:"follower_mode_duration,omitempty"`
	SlowMode                      *bool `json:"slow_mode,omitempty"`
	SlowModeWaitTime              *int  `json:"slow_mode_wait_time,omitempty"`
	SubscriberMode                *bool `json:"subscriber_mode,omitempty"`
	UniqueChatMode                *bool `json:"unique_chat_mode,omitempty"`
	NonModeratorChatDelay         *bool `json:"non_moderator_chat_delay,omitempty"`
	NonModeratorChatDelayDuration *int  `json:"non_moderator_chat_delay_duration,omitempty"`
}

// UpdateChatSettings applies s to the channel.
func (c *Client) UpdateChatSettings(ctx context.Context, broadcasterID, moderatorID string, s ChatSettings) error {
	return c.do(ctx, http.MethodPatch, "/chat/settings", modQuery(broadcasterID, moderatorID), s, nil)
}

// SetShieldMode toggles shield mode.
func (c *Client) SetShieldMode(ctx context.Context, broadcasterID, moderatorID string, active bool) error {
	return c.do(ctx, http.MethodPut, "/moderation/shield_mode", modQuery(broadcasterID, moderatorID),
		map[string]bool{"is_active": active}, nil)
}

// CreateMarker adds a stream marker at the current position.
func (c *Client) CreateMarker(ctx context.Context, userID, description string) error {
	body := map[string]string{"user_id": userID}
	if description != "" {
		body["description"] = description
	}
	return c.do(ctx, http.MethodPost, "/streams/markers", nil, body, nil)
}

// AddModerator grants the moderator role.
func (c *Client) AddModerator(ctx context.Context, broadcasterID, userID string) error {
	return c.do(ctx, http.MethodPost, "/moderation/moderators",
		url.Values{"broadcaster_id": {broadcasterID}, "user_id": {userID}}, nil, nil)
}

// RemoveModerator revokes the moderator role.
func (c *Client) RemoveModerator(ctx context.Context, broadcasterID, userID string) error {
	return c.do(ctx, http.MethodDelete, "/moderation/moderators",
		url.Values{"broadcaster_id": {broadcasterID}, "user_id": {userID}}, nil, nil)
}

// AddVIP grants the VIP role.
func (c *Client) AddVIP(ctx context.Context, broadcasterID, userID string) error {
	resp, err := c.helix.AddChannelVip(&helix.AddChannelVipParams{BroadcasterID: broadcasterID, UserID: userID})
	if err != nil {
		return fmt.Errorf("add vip: %w", err)
	}
	return responseErr(resp.ResponseCommon)
}

// RemoveVIP revokes the VIP role.
func (c *Client) RemoveVIP(ctx context.Context, broadcasterID, userID string) error {
	resp, err := c.helix.RemoveChannelVip(&helix.RemoveChannelVipParams{BroadcasterID: broadcasterID, UserID: userID})
	if err != nil {
		return fmt.Errorf("remove vip: %w", err)
	}
	return responseErr(resp.ResponseCommon)
}

// StartRaid raids toID from fromID.
func (c *Client) StartRaid(ctx context.Context, fromID, toID string) error {
	return c.do(ctx, http.MethodPost, "/raids",
		url.Values{"from_broadcaster_id": {fromID}, "to_broadcaster_id": {toID}}, nil, nil)
}

// CancelRaid cancels a pending raid.
func (c *Client) CancelRaid(ctx context.Context, broadcasterID string) error {
	return c.do(ctx, http.MethodDelete, "/raids", url.Values{"broadcaster_id": {broadcasterID}}, nil, nil)
}

// Shoutout sends a shoutout for toID in fromID's chat.
func (c *Client) Shoutout(ctx context.Context, fromID, toID, moderatorID string) error {
	return c.do(ctx, http.MethodPost, "/chat/shoutouts", url.Values{
		"from_broadcaster_id": {fromID},
		"to_broadcaster_id":   {toID},
		"moderator_id":        {moderatorID},
	}, nil, nil)
}
