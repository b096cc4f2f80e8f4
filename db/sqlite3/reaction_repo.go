package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/whisperwall/whisperwall/reactions"
)

const tableReactions = "reactions"

const (
	reactionFieldCommentID = "comment_id"
	reactionFieldUserID    = "user_id"
	reactionFieldKind      = "kind"
	reactionFieldCreatedAt = "created_at"
)

type ReactionRepository struct {
	db *sql.DB
}

var _ reactions.Repository = (*ReactionRepository)(nil)

func NewReactionRepository(db *sql.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

func (repo *ReactionRepository) Find(ctx context.Context, commentID string, userID int64) (*reactions.Reaction, error) {
	var reaction reactions.Reaction

	err := sq.Select(reactionFieldCommentID, reactionFieldUserID, reactionFieldKind, reactionFieldCreatedAt).
		From(tableReactions).
		Where(sq.Eq{reactionFieldCommentID: commentID, reactionFieldUserID: userID}).
		RunWith(repo.db).
		QueryRowContext(ctx).
		Scan(&reaction.CommentID, &reaction.UserID, &reaction.Kind, &reaction.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reactions.ReactionNotFoundError{CommentID: commentID, UserID: userID}
		}

		return nil, fmt.Errorf("failed to find reaction: %w", err)
	}

	return &reaction, nil
}

// Toggle runs the full toggle within one transaction so the reaction row
// and the author's ledger never drift apart.
func (repo *ReactionRepository) Toggle(ctx context.Context, commentID string, userID int64, kind reactions.Kind, deltas reactions.Deltas) (*reactions.ToggleResult, error) {
	var result reactions.ToggleResult

	err := runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		var authorID int64

		err := sq.Select(commentFieldAuthorID).
			From(tableComments).
			Where(sq.Eq{commentFieldID: commentID}).
			RunWith(tx).
			QueryRowContext(ctx).
			Scan(&authorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return reactions.CommentNotFoundError{CommentID: commentID}
			}

			return fmt.Errorf("failed to read comment author: %w", err)
		}

		var existing reactions.Kind

		err = sq.Select(reactionFieldKind).
			From(tableReactions).
			Where(sq.Eq{reactionFieldCommentID: commentID, reactionFieldUserID: userID}).
			RunWith(tx).
			QueryRowContext(ctx).
			Scan(&existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read existing reaction: %w", err)
		}

		hasExisting := err == nil

		delta := 0

		switch {
		case !hasExisting:
			_, err = tx.ExecContext(ctx, `
INSERT INTO reactions (comment_id, user_id, kind, created_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
`, commentID, userID, kind)
			if err != nil {
				return fmt.Errorf("failed to insert reaction: %w", err)
			}

			result.Current = &kind
			delta = deltas.For(kind)
		case existing == kind:
			_, err = sq.Delete(tableReactions).
				Where(sq.Eq{reactionFieldCommentID: commentID, reactionFieldUserID: userID}).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to delete reaction: %w", err)
			}

			prev := existing
			result.Previous = &prev
			delta = -deltas.For(existing)
		default:
			_, err = sq.Update(tableReactions).
				Set(reactionFieldKind, kind).
				Where(sq.Eq{reactionFieldCommentID: commentID, reactionFieldUserID: userID}).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to update reaction: %w", err)
			}

			prev := existing
			result.Previous = &prev
			result.Current = &kind
			delta = deltas.For(kind) - deltas.For(existing)
		}

		result.AuthorDelta = delta

		if delta != 0 {
			err = addPoints(ctx, tx, authorID, delta)
			if err != nil {
				return fmt.Errorf("failed to adjust author balance: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (repo *ReactionRepository) CountByComments(ctx context.Context, commentIDs []string) (map[string]reactions.KindCounts, error) {
	counts := make(map[string]reactions.KindCounts, len(commentIDs))

	if len(commentIDs) == 0 {
		return counts, nil
	}

	q := sq.Select(reactionFieldCommentID, reactionFieldKind, "COUNT(*)").
		From(tableReactions).
		Where(sq.Eq{reactionFieldCommentID: commentIDs}).
		GroupBy(reactionFieldCommentID, reactionFieldKind).
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query reaction counts: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close reaction count rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			commentID string
			kind      reactions.Kind
			total     int
		)

		err = rows.Scan(&commentID, &kind, &total)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reaction count row: %w", err)
		}

		kc := counts[commentID]

		if kind == reactions.KindDislike {
			kc.Dislikes = total
		} else {
			kc.Likes = total
		}

		counts[commentID] = kc
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate reaction count rows: %w", err)
	}

	return counts, nil
}
