// Package gate decides whether an inbound event from a user may reach any
// handler at all.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type UserStatus struct {
	UserID        int64
	AcceptedRules bool
	Blocked       bool
	BlockedUntil  *time.Time
	BlockReason   *string
}

type Repository interface {
	Find(ctx context.Context, userID int64) (status *UserStatus, err error)
	Upsert(ctx context.Context, status *UserStatus) (err error)
	SetBlock(ctx context.Context, userID int64, until *time.Time, reason string) (err error)
	ClearBlock(ctx context.Context, userID int64) (err error)
}

type UserStatusNotFoundError struct {
	UserID int64
}

func (err UserStatusNotFoundError) Error() string {
	return fmt.Sprintf("user status for %d not found", err.UserID)
}

type BlockedError struct {
	Until  *time.Time
	Reason *string
}

func (err BlockedError) Error() string {
	if err.Until != nil {
		return fmt.Sprintf("user is blocked until %s", err.Until.Format(time.RFC3339))
	}

	return "user is blocked"
}

type RulesNotAcceptedError struct{}

func (err RulesNotAcceptedError) Error() string {
	return "user has not accepted the community rules"
}

type Gate struct {
	statusRepo Repository
}

func NewGate(statusRepo Repository) *Gate {
	return &Gate{statusRepo: statusRepo}
}

// Check is consulted before any handler runs. A block whose expiry has
// passed is cleared on this read rather than by a background sweep.
func (g *Gate) Check(ctx context.Context, userID int64) error {
	status, err := g.statusRepo.Find(ctx, userID)
	if err != nil {
		var notFoundErr UserStatusNotFoundError
		if errors.As(err, &notFoundErr) {
			return RulesNotAcceptedError{}
		}

		return fmt.Errorf("failed to find user status: %w", err)
	}

	if status.Blocked {
		if status.BlockedUntil != nil && time.Now().After(*status.BlockedUntil) {
			err := g.statusRepo.ClearBlock(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to clear expired block: %w", err)
			}

			slog.InfoContext(ctx, "expired block cleared", "user_id", userID)
		} else {
			return BlockedError{Until: status.BlockedUntil, Reason: status.BlockReason}
		}
	}

	if !status.AcceptedRules {
		return RulesNotAcceptedError{}
	}

	return nil
}

// AcceptRules records the user's acceptance, creating the status row on
// first contact.
func (g *Gate) AcceptRules(ctx context.Context, userID int64) error {
	err := g.statusRepo.Upsert(ctx, &UserStatus{UserID: userID, AcceptedRules: true})
	if err != nil {
		return fmt.Errorf("failed to upsert user status: %w", err)
	}

	return nil
}
