package confessions

import (
	"context"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Confession struct {
	ID               string
	AuthorID         int64
	Text             string
	Categories       []string
	Status           Status
	ChannelMessageID *int64
	RejectionReason  *string
	CreatedAt        time.Time
}

// Published reports whether the confession has been posted to the public
// channel. An approved confession without a channel message is a publish
// failure awaiting retry, not a pending item.
func (c *Confession) Published() bool {
	return c.Status == StatusApproved && c.ChannelMessageID != nil
}

type Repository interface {
	Insert(ctx context.Context, confession *Confession) (err error)
	Find(ctx context.Context, id string) (confession *Confession, err error)
	// MarkDecided transitions the confession from pending to the given
	// status in a single conditional update. It returns false when the
	// confession was already decided, so the first decision always wins.
	MarkDecided(ctx context.Context, id string, status Status, reason *string) (decided bool, err error)
	// MarkPublished records the public channel message and credits the
	// author's balance in the same transaction. It returns false when a
	// channel message was already recorded, so a retried decision credits
	// the author exactly once.
	MarkPublished(ctx context.Context, id string, messageID int64, credit int) (published bool, err error)
	// Delete removes the confession and all of its comments.
	Delete(ctx context.Context, id string) (err error)
}

type ConfessionNotFoundError struct {
	ID string
}

func (err ConfessionNotFoundError) Error() string {
	return fmt.Sprintf("confession %q not found", err.ID)
}
