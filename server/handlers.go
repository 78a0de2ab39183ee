package server

import (
	"context"

	"github.com/onnwee/chatline/chat"
)

// Check is one named readiness check.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	session *chat.Session
	checks  []Check
}

// NewHandlers creates a Handlers reporting on session. checks run in order
// on every readiness request.
func NewHandlers(session *chat.Session, checks ...Check) *Handlers {
	return &Handlers{session: session, checks: checks}
}
