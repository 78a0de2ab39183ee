package chat

import (
	"fmt"
	"strings"
	"time"
)

// ContextKind names why a system message exists.
type ContextKind string

const (
	KindAutoMod         ContextKind = "autoMod"
	KindBanned          ContextKind = "banned"
	KindBanStatus       ContextKind = "banStatus"
	KindBlockStatus     ContextKind = "blockStatus"
	KindClear           ContextKind = "clear"
	KindDelete          ContextKind = "delete"
	KindEmoteSetChange  ContextKind = "emoteSetChange"
	KindEmoteSetUpdate  ContextKind = "emoteSetUpdate"
	KindJoin            ContextKind = "join"
	KindMode            ContextKind = "mode"
	KindRaid            ContextKind = "raid"
	KindRoleStatus      ContextKind = "roleStatus"
	KindStreamStatus    ContextKind = "streamStatus"
	KindSuspicionStatus ContextKind = "suspicionStatus"
	KindTerm            ContextKind = "term"
	KindText            ContextKind = "text"
	KindTimeout         ContextKind = "timeout"
	KindUnbanRequest    ContextKind = "unbanRequest"
	KindUnraid          ContextKind = "unraid"
	KindUntimeout       ContextKind = "untimeout"
	KindWarn            ContextKind = "warn"
	KindWarnAck         ContextKind = "warnAck"
)

// Context is the structured reason carried by a SystemMessage.
type Context interface {
	Kind() ContextKind
}

// Text is a plain message with no further structure.
type Text struct{ Body string }

// AutoModContext reports a moderator's decision on a held message.
type AutoModContext struct {
	Status    string
	Viewer    *Viewer
	Moderator *Viewer
}

// Banned reports that the authenticated user was banned from the channel.
type Banned struct {
	Channel string
	Reason  string
}

type BanStatus struct {
	Banned    bool
	Reason    string
	Viewer    *Viewer
	Moderator *Viewer
}

type BlockStatus struct {
	Blocked bool
	User    *User
}

// Clear reports a full chat clear. Moderator is nil when unknown.
type Clear struct{ Moderator *Viewer }

type Delete struct {
	Text      string
	Viewer    *Viewer
	Moderator *Viewer
}

type EmoteSetChange struct {
	Name   string
	Viewer *Viewer
}

// EmoteSetAction is one operation of an emote set delta.
type EmoteSetAction string

const (
	EmoteAdded   EmoteSetAction = "added"
	EmoteRemoved EmoteSetAction = "removed"
	EmoteRenamed EmoteSetAction = "renamed"
)

type EmoteSetUpdate struct {
	Action  EmoteSetAction
	Emote   Emote
	OldName string
	Actor   *User
}

type Join struct{ Channel string }

// ModeSetting names a chat setting.
type ModeSetting string

const (
	ModeEmoteOnly      ModeSetting = "emote_only"
	ModeFollowerOnly   ModeSetting = "follower_only"
	ModeSlow           ModeSetting = "slow"
	ModeSubscriberOnly ModeSetting = "subscriber_only"
	ModeUnique         ModeSetting = "unique"
	ModeShield         ModeSetting = "shield"
)

type ModeChange struct {
	Mode      ModeSetting
	Enabled   bool
	Seconds   int
	Moderator *Viewer
}

type Raid struct {
	Target      *User
	ViewerCount int
	Moderator   *Viewer
}

// Role names a grantable channel role.
type Role string

const (
	RoleModerator Role = "moderator"
	RoleVIP       Role = "vip"
)

type RoleStatus struct {
	Role        Role
	Added       bool
	Viewer      *Viewer
	Broadcaster *Viewer
}

type StreamStatus struct {
	Online  bool
	Channel string
}

type SuspicionStatus struct {
	Status    TrustStatus
	Previous  TrustStatus
	Viewer    *Viewer
	Moderator *Viewer
}

// TermAction is an edit to the blocked or permitted term lists.
type TermAction string

const (
	TermAddBlocked      TermAction = "add_blocked_term"
	TermAddPermitted    TermAction = "add_permitted_term"
	TermRemoveBlocked   TermAction = "remove_blocked_term"
	TermRemovePermitted TermAction = "remove_permitted_term"
)

type Term struct {
	Action    TermAction
	Terms     []string
	Moderator *Viewer
}

type Timeout struct {
	Seconds   int
	Reason    string
	Viewer    *Viewer
	Moderator *Viewer
}

type UnbanRequest struct {
	Status    string
	Text      string
	Viewer    *Viewer
	Moderator *Viewer
}

type Unraid struct {
	Target    *User
	Moderator *Viewer
}

type Untimeout struct {
	Viewer    *Viewer
	Moderator *Viewer
}

type Warn struct {
	Reason    string
	Viewer    *Viewer
	Moderator *Viewer
}

type WarnAck struct{ Viewer *Viewer }

func (Text) Kind() ContextKind            { return KindText }
func (AutoModContext) Kind() ContextKind  { return KindAutoMod }
func (Banned) Kind() ContextKind          { return KindBanned }
func (BanStatus) Kind() ContextKind       { return KindBanStatus }
func (BlockStatus) Kind() ContextKind     { return KindBlockStatus }
func (Clear) Kind() ContextKind           { return KindClear }
func (Delete) Kind() ContextKind          { return KindDelete }
func (EmoteSetChange) Kind() ContextKind  { return KindEmoteSetChange }
func (EmoteSetUpdate) Kind() ContextKind  { return KindEmoteSetUpdate }
func (Join) Kind() ContextKind            { return KindJoin }
func (ModeChange) Kind() ContextKind      { return KindMode }
func (Raid) Kind() ContextKind            { return KindRaid }
func (RoleStatus) Kind() ContextKind      { return KindRoleStatus }
func (StreamStatus) Kind() ContextKind    { return KindStreamStatus }
func (SuspicionStatus) Kind() ContextKind { return KindSuspicionStatus }
func (Term) Kind() ContextKind            { return KindTerm }
func (Timeout) Kind() ContextKind         { return KindTimeout }
func (UnbanRequest) Kind() ContextKind    { return KindUnbanRequest }
func (Unraid) Kind() ContextKind          { return KindUnraid }
func (Untimeout) Kind() ContextKind       { return KindUntimeout }
func (Warn) Kind() ContextKind            { return KindWarn }
func (WarnAck) Kind() ContextKind         { return KindWarnAck }

func viewerName(v *Viewer) string {
	if v == nil {
		return "A moderator"
	}
	return v.User.DisplayName()
}

func userName(u *User) string {
	if u == nil {
		return "someone"
	}
	return u.DisplayName()
}

func withReason(s, reason string) string {
	if reason == "" {
		return s + "."
	}
	return fmt.Sprintf("%s: %s", s, reason)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Describe renders c as plain English for logs and the archive.
func Describe(c Context) string {
	switch c := c.(type) {
	case Text:
		return c.Body
	case AutoModContext:
		return fmt.Sprintf("%s %s a message from %s.", viewerName(c.Moderator), c.Status, viewerName(c.Viewer))
	case Banned:
		return withReason("You are banned from "+c.Channel, c.Reason)
	case BanStatus:
		if !c.Banned {
			return fmt.Sprintf("%s unbanned %s.", viewerName(c.Moderator), viewerName(c.Viewer))
		}
		return withReason(fmt.Sprintf("%s banned %s", viewerName(c.Moderator), viewerName(c.Viewer)), c.Reason)
	case BlockStatus:
		if c.Blocked {
			return fmt.Sprintf("You blocked %s.", userName(c.User))
		}
		return fmt.Sprintf("You unblocked %s.", userName(c.User))
	case Clear:
		if c.Moderator == nil {
			return "The chat was cleared."
		}
		return fmt.Sprintf("%s cleared the chat.", viewerName(c.Moderator))
	case Delete:
		return fmt.Sprintf("%s deleted a message from %s: %s", viewerName(c.Moderator), viewerName(c.Viewer), c.Text)
	case EmoteSetChange:
		return fmt.Sprintf("%s switched the 7TV emote set to %s.", viewerName(c.Viewer), c.Name)
	case EmoteSetUpdate:
		switch c.Action {
		case EmoteRenamed:
			return fmt.Sprintf("%s renamed %s to %s.", userName(c.Actor), c.OldName, c.Emote.Name)
		default:
			return fmt.Sprintf("%s %s %s.", userName(c.Actor), c.Action, c.Emote.Name)
		}
	case Join:
		return fmt.Sprintf("Joined %s.", c.Channel)
	case ModeChange:
		text := fmt.Sprintf("%s turned %s %s mode", viewerName(c.Moderator), onOff(c.Enabled), strings.ReplaceAll(string(c.Mode), "_", "-"))
		if c.Enabled && c.Seconds > 0 {
			text += fmt.Sprintf(" (%s)", time.Duration(c.Seconds)*time.Second)
		}
		return text + "."
	case Raid:
		return fmt.Sprintf("%s started a raid to %s with %d viewers.", viewerName(c.Moderator), userName(c.Target), c.ViewerCount)
	case RoleStatus:
		verb := "removed"
		if c.Added {
			verb = "added"
		}
		return fmt.Sprintf("%s %s %s as %s.", viewerName(c.Broadcaster), verb, viewerName(c.Viewer), c.Role)
	case StreamStatus:
		if c.Online {
			return c.Channel + " is now live."
		}
		return c.Channel + " is now offline."
	case SuspicionStatus:
		if c.Status == TrustNone {
			return fmt.Sprintf("%s removed %s from suspicious users.", viewerName(c.Moderator), viewerName(c.Viewer))
		}
		return fmt.Sprintf("%s set %s to %s.", viewerName(c.Moderator), viewerName(c.Viewer), strings.ReplaceAll(string(c.Status), "_", " "))
	case Term:
		return fmt.Sprintf("%s: %s %s.", viewerName(c.Moderator), strings.ReplaceAll(string(c.Action), "_", " "), strings.Join(c.Terms, ", "))
	case Timeout:
		return withReason(fmt.Sprintf("%s timed out %s for %s", viewerName(c.Moderator), viewerName(c.Viewer), time.Duration(c.Seconds)*time.Second), c.Reason)
	case UnbanRequest:
		if c.Moderator == nil {
			return withReason(fmt.Sprintf("%s requested an unban", viewerName(c.Viewer)), c.Text)
		}
		return fmt.Sprintf("%s %s the unban request from %s.", viewerName(c.Moderator), c.Status, viewerName(c.Viewer))
	case Unraid:
		return fmt.Sprintf("%s canceled the raid to %s.", viewerName(c.Moderator), userName(c.Target))
	case Untimeout:
		return fmt.Sprintf("%s removed the timeout on %s.", viewerName(c.Moderator), viewerName(c.Viewer))
	case Warn:
		return withReason(fmt.Sprintf("%s warned %s", viewerName(c.Moderator), viewerName(c.Viewer)), c.Reason)
	case WarnAck:
		return fmt.Sprintf("%s acknowledged their warning.", viewerName(c.Viewer))
	default:
		return ""
	}
}
