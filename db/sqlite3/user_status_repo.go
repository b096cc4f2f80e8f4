package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/whisperwall/whisperwall/gate"
)

const tableUserStatus = "user_status"

const (
	userStatusFieldUserID        = "user_id"
	userStatusFieldAcceptedRules = "accepted_rules"
	userStatusFieldBlocked       = "blocked"
	userStatusFieldBlockedUntil  = "blocked_until"
	userStatusFieldBlockReason   = "block_reason"
)

type UserStatusRepository struct {
	db *sql.DB
}

var _ gate.Repository = (*UserStatusRepository)(nil)

func NewUserStatusRepository(db *sql.DB) *UserStatusRepository {
	return &UserStatusRepository{db: db}
}

func (repo *UserStatusRepository) Find(ctx context.Context, userID int64) (*gate.UserStatus, error) {
	var status gate.UserStatus

	err := sq.Select(
		userStatusFieldUserID,
		userStatusFieldAcceptedRules,
		userStatusFieldBlocked,
		userStatusFieldBlockedUntil,
		userStatusFieldBlockReason,
	).
		From(tableUserStatus).
		Where(sq.Eq{userStatusFieldUserID: userID}).
		RunWith(repo.db).
		QueryRowContext(ctx).
		Scan(&status.UserID, &status.AcceptedRules, &status.Blocked, &status.BlockedUntil, &status.BlockReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gate.UserStatusNotFoundError{UserID: userID}
		}

		return nil, fmt.Errorf("failed to find user status: %w", err)
	}

	return &status, nil
}

func (repo *UserStatusRepository) Upsert(ctx context.Context, status *gate.UserStatus) error {
	_, err := repo.db.ExecContext(ctx, `
INSERT INTO user_status (user_id, accepted_rules, blocked, blocked_until, block_reason)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  accepted_rules = excluded.accepted_rules,
  blocked = excluded.blocked,
  blocked_until = excluded.blocked_until,
  block_reason = excluded.block_reason
`, status.UserID, status.AcceptedRules, status.Blocked, status.BlockedUntil, status.BlockReason)
	if err != nil {
		return fmt.Errorf("failed to upsert user status: %w", err)
	}

	return nil
}

func (repo *UserStatusRepository) SetBlock(ctx context.Context, userID int64, until *time.Time, reason string) error {
	_, err := repo.db.ExecContext(ctx, `
INSERT INTO user_status (user_id, accepted_rules, blocked, blocked_until, block_reason)
VALUES (?, FALSE, TRUE, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  blocked = TRUE,
  blocked_until = excluded.blocked_until,
  block_reason = excluded.block_reason
`, userID, until, reason)
	if err != nil {
		return fmt.Errorf("failed to set block: %w", err)
	}

	return nil
}

func (repo *UserStatusRepository) ClearBlock(ctx context.Context, userID int64) error {
	_, err := sq.Update(tableUserStatus).
		Set(userStatusFieldBlocked, false).
		Set(userStatusFieldBlockedUntil, nil).
		Set(userStatusFieldBlockReason, nil).
		Where(sq.Eq{userStatusFieldUserID: userID}).
		RunWith(repo.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear block: %w", err)
	}

	return nil
}
