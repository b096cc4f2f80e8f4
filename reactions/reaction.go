package reactions

import (
	"context"
	"fmt"
	"time"
)

type Kind string

const (
	KindLike    Kind = "like"
	KindDislike Kind = "dislike"
)

func (kind Kind) IsValid() bool {
	switch kind {
	case KindLike, KindDislike:
		return true
	default:
		return false
	}
}

// Reaction is unique per (comment, user) pair.
type Reaction struct {
	CommentID string
	UserID    int64
	Kind      Kind
	CreatedAt time.Time
}

type KindCounts struct {
	Likes    int
	Dislikes int
}

// Deltas are the balance adjustments applied to the comment author when a
// reaction of the matching kind becomes active, and reversed when it is
// removed.
type Deltas struct {
	Like    int
	Dislike int
}

func (d Deltas) For(kind Kind) int {
	if kind == KindDislike {
		return d.Dislike
	}

	return d.Like
}

type ToggleResult struct {
	Previous *Kind
	Current  *Kind
	// AuthorDelta is the net adjustment applied to the comment author's
	// balance by this toggle.
	AuthorDelta int
}

type Repository interface {
	Find(ctx context.Context, commentID string, userID int64) (reaction *Reaction, err error)
	// Toggle applies toggle semantics for the (comment, user) pair and
	// adjusts the comment author's balance by the net delta, all within a
	// single transaction: no existing reaction creates one, a matching
	// kind removes it, a differing kind replaces it.
	Toggle(ctx context.Context, commentID string, userID int64, kind Kind, deltas Deltas) (result *ToggleResult, err error)
	CountByComments(ctx context.Context, commentIDs []string) (counts map[string]KindCounts, err error)
}

type ReactionNotFoundError struct {
	CommentID string
	UserID    int64
}

func (err ReactionNotFoundError) Error() string {
	return fmt.Sprintf("reaction by user %d on comment %q not found", err.UserID, err.CommentID)
}

type CommentNotFoundError struct {
	CommentID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment %q not found", err.CommentID)
}

type InvalidKindError struct {
	Kind Kind
}

func (err InvalidKindError) Error() string {
	return fmt.Sprintf("invalid reaction kind: %q", err.Kind)
}
