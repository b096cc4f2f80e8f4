package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/whisperwall/whisperwall/confessions"
)

const tableConfessions = "confessions"

type ConfessionRepository struct {
	db *sql.DB
}

var _ confessions.Repository = (*ConfessionRepository)(nil)

func NewConfessionRepository(db *sql.DB) *ConfessionRepository {
	return &ConfessionRepository{db: db}
}

const (
	confessionFieldID               = "id"
	confessionFieldAuthorID         = "author_id"
	confessionFieldText             = "text"
	confessionFieldCategories       = "categories"
	confessionFieldStatus           = "status"
	confessionFieldChannelMessageID = "channel_message_id"
	confessionFieldRejectionReason  = "rejection_reason"
	confessionFieldCreatedAt        = "created_at"
)

// Category labels never contain a comma, so a joined TEXT column keeps the
// ordered set without a join table.
const categorySeparator = ","

func confessionColumns() []string {
	return []string{
		confessionFieldID,
		confessionFieldAuthorID,
		confessionFieldText,
		confessionFieldCategories,
		confessionFieldStatus,
		confessionFieldChannelMessageID,
		confessionFieldRejectionReason,
		confessionFieldCreatedAt,
	}
}

func scanConfession(row sq.RowScanner) (*confessions.Confession, error) {
	var (
		confession confessions.Confession
		categories string
	)

	err := row.Scan(
		&confession.ID,
		&confession.AuthorID,
		&confession.Text,
		&categories,
		&confession.Status,
		&confession.ChannelMessageID,
		&confession.RejectionReason,
		&confession.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan confession row: %w", err)
	}

	if categories != "" {
		confession.Categories = strings.Split(categories, categorySeparator)
	}

	return &confession, nil
}

func (repo *ConfessionRepository) Insert(ctx context.Context, confession *confessions.Confession) error {
	q := sq.Insert(tableConfessions).
		Columns(confessionColumns()...).
		Values(
			confession.ID,
			confession.AuthorID,
			confession.Text,
			strings.Join(confession.Categories, categorySeparator),
			confession.Status,
			confession.ChannelMessageID,
			confession.RejectionReason,
			confession.CreatedAt,
		).
		RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *ConfessionRepository) Find(ctx context.Context, id string) (*confessions.Confession, error) {
	q := sq.Select(confessionColumns()...).
		From(tableConfessions).
		Where(sq.Eq{confessionFieldID: id}).
		RunWith(repo.db)

	confession, err := scanConfession(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, confessions.ConfessionNotFoundError{ID: id}
		}

		return nil, fmt.Errorf("failed to find confession: %w", err)
	}

	return confession, nil
}

func (repo *ConfessionRepository) MarkDecided(ctx context.Context, id string, status confessions.Status, reason *string) (bool, error) {
	q := sq.Update(tableConfessions).
		Set(confessionFieldStatus, status).
		Set(confessionFieldRejectionReason, reason).
		Where(sq.Eq{
			confessionFieldID:     id,
			confessionFieldStatus: confessions.StatusPending,
		}).
		RunWith(repo.db)

	res, err := q.ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to exec conditional status update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected == 1, nil
}

func (repo *ConfessionRepository) MarkPublished(ctx context.Context, id string, messageID int64, credit int) (bool, error) {
	var published bool

	err := runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		res, err := sq.Update(tableConfessions).
			Set(confessionFieldChannelMessageID, messageID).
			Where(sq.Eq{
				confessionFieldID:               id,
				confessionFieldChannelMessageID: nil,
			}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to set channel message: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}

		if affected == 0 {
			return nil
		}

		published = true

		var authorID int64

		err = sq.Select(confessionFieldAuthorID).
			From(tableConfessions).
			Where(sq.Eq{confessionFieldID: id}).
			RunWith(tx).
			QueryRowContext(ctx).
			Scan(&authorID)
		if err != nil {
			return fmt.Errorf("failed to read author: %w", err)
		}

		err = addPoints(ctx, tx, authorID, credit)
		if err != nil {
			return fmt.Errorf("failed to credit author: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return published, nil
}

// Delete removes the confession, its comments and their reactions in one
// transaction.
func (repo *ConfessionRepository) Delete(ctx context.Context, id string) error {
	return runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
DELETE FROM reactions
WHERE comment_id IN (SELECT id FROM comments WHERE confession_id = ?)
`, id)
		if err != nil {
			return fmt.Errorf("failed to delete reactions: %w", err)
		}

		_, err = sq.Delete(tableComments).
			Where(sq.Eq{commentFieldConfessionID: id}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}

		_, err = sq.Delete(tableConfessions).
			Where(sq.Eq{confessionFieldID: id}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete confession: %w", err)
		}

		return nil
	})
}
