// Package events publishes authentication events for downstream consumers
// (dashboards, incident tooling) that only need to know who signed in.
package events

import (
	"context"
	"time"
)

type Type string

const (
	UserRegistered Type = "user.registered"
	UserLoggedIn   Type = "user.logged_in"
	UserLinked     Type = "user.linked"
)

// Event never carries credentials, only the user id and how they authenticated.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id"`
	Provider   string    `json:"provider,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
