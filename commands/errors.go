package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/onnwee/chatline/twitchapi"
)

// Kind classifies a command failure.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindPrivilege   Kind = "privilege"
	KindRejected    Kind = "rejected"
	KindInvalidArgs Kind = "invalid_args"
	KindRateLimited Kind = "rate_limited"
)

// Error is a user-facing command failure. Message is ready to display; Code
// identifies the reason for callers that render their own text.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// LogValue renders the display fields and, for classified upstream failures,
// the structured cause with its context.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("code", e.Code),
		slog.String("message", e.Message),
	}
	if oe, ok := oops.AsOops(e.Err); ok {
		attrs = append(attrs, slog.Any("cause", oe))
	} else if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var ce *Error
	ok := errors.As(err, &ce)
	return ce, ok
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func missingArg(name string) *Error {
	return newError(KindInvalidArgs, "MISSING_ARG", "Missing required argument: %s.", name)
}

func invalidArg(code, msg string) *Error {
	return &Error{Kind: KindInvalidArgs, Code: code, Message: msg}
}

func notFound(name string, cause error) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    "USER_NOT_FOUND",
		Message: fmt.Sprintf("%s was not found.", name),
		Err:     oops.In("commands").Code("USER_NOT_FOUND").With("user", name).Wrap(cause),
	}
}

func noChange(msg string) *Error {
	return &Error{Kind: KindRejected, Code: "NO_CHANGE", Message: msg}
}

// rejection maps a Helix failure to a structured error. A zero status matches
// any status; an empty substring matches any message.
type rejection struct {
	status   int
	contains string
	code     string
	message  string
}

func (r rejection) matches(e *twitchapi.APIError) bool {
	if r.status != 0 && r.status != e.Status {
		return false
	}
	return r.contains == "" || strings.Contains(strings.ToLower(e.Message), r.contains)
}

// classify converts err using the first matching rule. Errors no rule
// recognizes are returned unchanged.
func classify(err error, target string, rules ...rejection) error {
	var apiErr *twitchapi.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	for _, r := range rules {
		if !r.matches(apiErr) {
			continue
		}
		msg := r.message
		if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, target)
		}
		return &Error{
			Kind:    KindRejected,
			Code:    r.code,
			Message: msg,
			Err:     oops.In("commands").Code(r.code).With("target", target, "status", apiErr.Status).Wrap(err),
		}
	}
	return err
}

var (
	banRules = []rejection{
		{status: http.StatusBadRequest, contains: "already banned", code: "USER_ALREADY_BANNED", message: "%s is already banned in this channel."},
		{status: http.StatusBadRequest, contains: "may not be banned", code: "USER_CANNOT_BE_BANNED", message: "%s cannot be banned."},
	}
	timeoutRules = []rejection{
		{contains: "may not be banned", code: "CANNOT_BE_TIMED_OUT", message: "%s cannot be timed out."},
		{contains: "may not be timed out", code: "CANNOT_BE_TIMED_OUT", message: "%s cannot be timed out."},
	}
	unbanRules = []rejection{
		{status: http.StatusBadRequest, code: "USER_NOT_BANNED", message: "%s is not banned from this channel."},
	}
	modRules = []rejection{
		{status: http.StatusBadRequest, contains: "already", code: "ALREADY_MOD", message: "%s is already a moderator of this channel."},
		{status: http.StatusBadRequest, contains: "banned", code: "BANNED_CANNOT_BE_MOD", message: "%s is banned from this channel and cannot be made a moderator."},
		{status: http.StatusUnprocessableEntity, code: "VIP_CANNOT_BE_MOD", message: "%s is a VIP. Remove their VIP status before making them a moderator."},
	}
	unmodRules = []rejection{
		{status: http.StatusUnprocessableEntity, code: "NOT_MOD", message: "%s is not a moderator of this channel."},
		{status: http.StatusBadRequest, contains: "not a moderator", code: "NOT_MOD", message: "%s is not a moderator of this channel."},
	}
	vipRules = []rejection{
		{status: http.StatusConflict, code: "NO_VIP_SLOTS", message: "This channel has no VIP slots available."},
		{status: http.StatusUnprocessableEntity, contains: "already", code: "ALREADY_VIP", message: "%s is already a VIP of this channel."},
		{status: http.StatusUnprocessableEntity, contains: "moderator", code: "MOD_CANNOT_BE_VIP", message: "%s is a moderator. Remove their moderator status before making them a VIP."},
	}
	unvipRules = []rejection{
		{status: http.StatusUnprocessableEntity, code: "NOT_VIP", message: "%s is not a VIP of this channel."},
		{status: http.StatusNotFound, code: "NOT_VIP", message: "%s is not a VIP of this channel."},
	}
	raidRules = []rejection{
		{status: http.StatusBadRequest, contains: "yourself", code: "CANNOT_TARGET_SELF", message: "You cannot target yourself."},
		{status: http.StatusBadRequest, contains: "settings do not", code: "SETTINGS_DO_NOT_ALLOW_RAIDS", message: "%s's settings do not allow raids."},
		{status: http.StatusBadRequest, contains: "cannot be", code: "CANNOT_BE_RAIDED", message: "%s cannot be raided."},
	}
	unraidRules = []rejection{
		{status: http.StatusNotFound, code: "NO_PENDING_RAID", message: "There is no pending raid to cancel."},
	}
	warnRules = []rejection{
		{contains: "may not be warned", code: "CANNOT_BE_WARNED", message: "%s cannot be warned."},
	}
	markerRules = []rejection{
		{status: http.StatusNotFound, code: "NOT_LIVE", message: "The channel must be live to create a stream marker."},
	}
)
