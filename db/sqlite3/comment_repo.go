package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/whisperwall/whisperwall/discuss"
)

const tableComments = "comments"

type CommentRepository struct {
	db *sql.DB
}

var _ discuss.CommentRepository = (*CommentRepository)(nil)

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const (
	commentFieldID           = "id"
	commentFieldConfessionID = "confession_id"
	commentFieldAuthorID     = "author_id"
	commentFieldContent      = "content"
	commentFieldStickerID    = "sticker_id"
	commentFieldAnimationID  = "animation_id"
	commentFieldParentID     = "parent_id"
	commentFieldCreatedAt    = "created_at"
)

func commentColumns() []string {
	return []string{
		commentFieldID,
		commentFieldConfessionID,
		commentFieldAuthorID,
		commentFieldContent,
		commentFieldStickerID,
		commentFieldAnimationID,
		commentFieldParentID,
		commentFieldCreatedAt,
	}
}

func scanComment(row sq.RowScanner) (*discuss.Comment, error) {
	var comment discuss.Comment

	err := row.Scan(
		&comment.ID,
		&comment.ConfessionID,
		&comment.AuthorID,
		&comment.Content,
		&comment.StickerID,
		&comment.AnimationID,
		&comment.ParentID,
		&comment.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan comment row: %w", err)
	}

	return &comment, nil
}

// Insert validates the parent reference inside the insert transaction: a
// parent must exist and belong to the same confession.
func (repo *CommentRepository) Insert(ctx context.Context, comment *discuss.Comment) error {
	return runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		if comment.ParentID != nil {
			var parentConfessionID string

			err := sq.Select(commentFieldConfessionID).
				From(tableComments).
				Where(sq.Eq{commentFieldID: *comment.ParentID}).
				RunWith(tx).
				QueryRowContext(ctx).
				Scan(&parentConfessionID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return discuss.ParentNotFoundError{ID: *comment.ParentID}
				}

				return fmt.Errorf("failed to check parent comment: %w", err)
			}

			if parentConfessionID != comment.ConfessionID {
				return discuss.ParentNotFoundError{ID: *comment.ParentID}
			}
		}

		_, err := sq.Insert(tableComments).
			Columns(commentColumns()...).
			Values(
				comment.ID,
				comment.ConfessionID,
				comment.AuthorID,
				comment.Content,
				comment.StickerID,
				comment.AnimationID,
				comment.ParentID,
				comment.CreatedAt,
			).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to exec insert: %w", err)
		}

		return nil
	})
}

func (repo *CommentRepository) Find(ctx context.Context, id string) (*discuss.Comment, error) {
	q := sq.Select(commentColumns()...).
		From(tableComments).
		Where(sq.Eq{commentFieldID: id}).
		RunWith(repo.db)

	comment, err := scanComment(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, discuss.CommentNotFoundError{ID: id}
		}

		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	return comment, nil
}

func (repo *CommentRepository) ListPage(ctx context.Context, confessionID string, limit, offset int) ([]*discuss.Comment, error) {
	q := sq.Select(commentColumns()...).
		From(tableComments).
		Where(sq.Eq{commentFieldConfessionID: confessionID}).
		OrderBy(commentFieldCreatedAt+" ASC", commentFieldID+" ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close comment rows", "error", err)
		}
	}()

	comments := make([]*discuss.Comment, 0)

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}

		comments = append(comments, comment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate comment rows: %w", err)
	}

	return comments, nil
}

func (repo *CommentRepository) Count(ctx context.Context, confessionID string) (int, error) {
	var total int

	err := sq.Select("COUNT(*)").
		From(tableComments).
		Where(sq.Eq{commentFieldConfessionID: confessionID}).
		RunWith(repo.db).
		QueryRowContext(ctx).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return total, nil
}

// Rank is a rank query over creation order (id as tie-break), independent
// of pagination.
func (repo *CommentRepository) Rank(ctx context.Context, confessionID, commentID string) (int, error) {
	target, err := repo.Find(ctx, commentID)
	if err != nil {
		return 0, err
	}

	if target.ConfessionID != confessionID {
		return 0, discuss.CommentNotFoundError{ID: commentID}
	}

	var ordinal int

	err = repo.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM comments
WHERE confession_id = ?
  AND (created_at < ? OR (created_at = ? AND id <= ?))
`, confessionID, target.CreatedAt, target.CreatedAt, target.ID).Scan(&ordinal)
	if err != nil {
		return 0, fmt.Errorf("failed to rank comment: %w", err)
	}

	return ordinal, nil
}

// Delete removes the comment and applies the author penalty in one
// transaction. Replies are untouched and keep their parent reference.
func (repo *CommentRepository) Delete(ctx context.Context, id string, authorPenalty int) error {
	return runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		var authorID int64

		err := sq.Select(commentFieldAuthorID).
			From(tableComments).
			Where(sq.Eq{commentFieldID: id}).
			RunWith(tx).
			QueryRowContext(ctx).
			Scan(&authorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return discuss.CommentNotFoundError{ID: id}
			}

			return fmt.Errorf("failed to read comment author: %w", err)
		}

		_, err = sq.Delete(tableComments).
			Where(sq.Eq{commentFieldID: id}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}

		_, err = sq.Delete(tableReactions).
			Where(sq.Eq{reactionFieldCommentID: id}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete comment reactions: %w", err)
		}

		if authorPenalty != 0 {
			err = addPoints(ctx, tx, authorID, authorPenalty)
			if err != nil {
				return fmt.Errorf("failed to apply author penalty: %w", err)
			}
		}

		return nil
	})
}
