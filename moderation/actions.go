package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/whisperwall/whisperwall/aura"
)

type Severity string

const (
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
)

func (s Severity) Penalty() int {
	if s == SeverityMajor {
		return aura.DeltaDeletionMajor
	}

	return aura.DeltaDeletionMinor
}

// Warn applies the warning penalty and tells the target. It does not block.
func (svc *Service) Warn(ctx context.Context, moderatorID, targetID int64, reason string) error {
	err := svc.authorize(ctx, moderatorID, ActionWarn)
	if err != nil {
		return err
	}

	err = svc.auraRepo.Add(ctx, targetID, aura.DeltaWarning)
	if err != nil {
		return fmt.Errorf("failed to apply warning penalty: %w", err)
	}

	svc.notify(ctx, targetID,
		fmt.Sprintf("⚠️ You received a warning (%d aura).\n\nReason: %s", aura.DeltaWarning, reason))

	return nil
}

// Block sets the target's block status. Zero durationDays means permanent.
func (svc *Service) Block(ctx context.Context, moderatorID, targetID int64, durationDays int, reason string) error {
	err := svc.authorize(ctx, moderatorID, ActionBlock)
	if err != nil {
		return err
	}

	var until *time.Time

	if durationDays > 0 {
		t := time.Now().Add(time.Duration(durationDays) * 24 * time.Hour)
		until = &t
	}

	err = svc.statusRepo.SetBlock(ctx, targetID, until, reason)
	if err != nil {
		return fmt.Errorf("failed to set block: %w", err)
	}

	text := "🚫 You have been blocked permanently.\n\nReason: " + reason
	if until != nil {
		text = fmt.Sprintf("🚫 You have been blocked until %s.\n\nReason: %s",
			until.Format("2006-01-02"), reason)
	}

	svc.notify(ctx, targetID, text)

	return nil
}

func (svc *Service) Unblock(ctx context.Context, moderatorID, targetID int64) error {
	err := svc.authorize(ctx, moderatorID, ActionBlock)
	if err != nil {
		return err
	}

	err = svc.statusRepo.ClearBlock(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to clear block: %w", err)
	}

	svc.notify(ctx, targetID, "You have been unblocked.")

	return nil
}

// DeleteComment removes the comment and applies the severity-scaled
// penalty to its author in one transaction. Replies are left in place and
// keep their dangling parent reference.
func (svc *Service) DeleteComment(ctx context.Context, moderatorID int64, commentID string, severity Severity) error {
	err := svc.authorize(ctx, moderatorID, ActionDeleteComment)
	if err != nil {
		return err
	}

	comment, err := svc.commentRepo.Find(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to find comment: %w", err)
	}

	err = svc.commentRepo.Delete(ctx, commentID, severity.Penalty())
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	svc.notify(ctx, comment.AuthorID,
		fmt.Sprintf("One of your comments was removed by a moderator (%d aura).", severity.Penalty()))

	return nil
}

// DeleteConfession is a hard removal, cascading to the confession's
// comments.
func (svc *Service) DeleteConfession(ctx context.Context, moderatorID int64, confessionID string) error {
	err := svc.authorize(ctx, moderatorID, ActionDeleteConfession)
	if err != nil {
		return err
	}

	_, err = svc.confessionRepo.Find(ctx, confessionID)
	if err != nil {
		return fmt.Errorf("failed to find confession: %w", err)
	}

	err = svc.confessionRepo.Delete(ctx, confessionID)
	if err != nil {
		return fmt.Errorf("failed to delete confession: %w", err)
	}

	return nil
}
