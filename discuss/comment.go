package discuss

import (
	"context"
	"fmt"
	"time"
)

type Comment struct {
	ID           string
	ConfessionID string
	AuthorID     int64
	Content      *string
	StickerID    *string
	AnimationID  *string
	ParentID     *string
	CreatedAt    time.Time
}

// Body is the payload of a comment. Exactly one field must be set.
type Body struct {
	Text        string
	StickerID   string
	AnimationID string
}

func (b Body) validate() error {
	set := 0

	for _, v := range []string{b.Text, b.StickerID, b.AnimationID} {
		if v != "" {
			set++
		}
	}

	if set != 1 {
		return InvalidBodyError{Populated: set}
	}

	return nil
}

type CommentRepository interface {
	Insert(ctx context.Context, comment *Comment) (err error)
	Find(ctx context.Context, id string) (comment *Comment, err error)
	// ListPage returns comments of a confession ordered by creation time
	// ascending, id as tie-break.
	ListPage(ctx context.Context, confessionID string, limit, offset int) (comments []*Comment, err error)
	Count(ctx context.Context, confessionID string) (total int, err error)
	// Rank returns the 1-based ordinal of the comment within its
	// confession's full creation-order sequence, independent of pagination.
	Rank(ctx context.Context, confessionID, commentID string) (ordinal int, err error)
	// Delete removes the comment and applies authorPenalty to its author's
	// balance in the same transaction. Replies keep their parent reference.
	Delete(ctx context.Context, id string, authorPenalty int) (err error)
}

type CommentNotFoundError struct {
	ID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment %q not found", err.ID)
}

type ParentNotFoundError struct {
	ID string
}

func (err ParentNotFoundError) Error() string {
	return fmt.Sprintf("parent comment %q not found", err.ID)
}

type NotAvailableError struct {
	ConfessionID string
}

func (err NotAvailableError) Error() string {
	return fmt.Sprintf("confession %q is not available for discussion", err.ConfessionID)
}

type InvalidBodyError struct {
	Populated int
}

func (err InvalidBodyError) Error() string {
	return fmt.Sprintf("comment body must have exactly one of text, sticker or animation, got %d", err.Populated)
}
