// Package chat is the boundary to the message transport. Implementations
// (the actual bot API client) live outside this module; the engine only
// depends on these interfaces.
package chat

import (
	"context"
	"fmt"
	"time"
)

// Button is a single inline affordance. Data carries an encoded callback
// payload; URL makes a link button instead. Exactly one should be set.
type Button struct {
	Label string
	Data  string
	URL   string
}

type Keyboard [][]Button

// MessageRef identifies a previously sent message so it can be edited.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard Keyboard) (ref MessageRef, err error)
	SendSticker(ctx context.Context, chatID int64, stickerID string, keyboard Keyboard) (ref MessageRef, err error)
	SendAnimation(ctx context.Context, chatID int64, animationID string, keyboard Keyboard) (ref MessageRef, err error)
	EditText(ctx context.Context, ref MessageRef, text string, keyboard Keyboard) (err error)
	EditKeyboard(ctx context.Context, ref MessageRef, keyboard Keyboard) (err error)
}

// Command is an inbound command invocation, e.g. "/confess".
type Command struct {
	UserID int64
	ChatID int64
	Name   string
	Args   string
}

// Callback is an inbound button press carrying the payload string the
// engine itself attached to the button.
type Callback struct {
	UserID    int64
	ChatID    int64
	MessageID int64
	Data      string
}

// Text is an inbound free-form message; at most one of the media fields is
// set by the transport.
type Text struct {
	UserID      int64
	ChatID      int64
	Body        string
	StickerID   string
	AnimationID string
}

// RetryAfterError is returned by a Messenger when the transport is rate
// limited and asks to retry after the given duration.
type RetryAfterError struct {
	After time.Duration
}

func (err RetryAfterError) Error() string {
	return fmt.Sprintf("transport rate limited, retry after %s", err.After)
}
