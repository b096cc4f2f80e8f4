package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/whisperwall/whisperwall/aura"
	"github.com/whisperwall/whisperwall/authz"
	"github.com/whisperwall/whisperwall/chat"
	"github.com/whisperwall/whisperwall/chat/callback"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/discuss"
	"github.com/whisperwall/whisperwall/gate"
	"github.com/whisperwall/whisperwall/publish"
)

type Service struct {
	registry       *Registry
	authzSvc       *authz.Service
	confessionRepo confessions.Repository
	commentRepo    discuss.CommentRepository
	auraRepo       aura.Repository
	statusRepo     gate.Repository
	publisher      *publish.Service
	messenger      chat.Messenger
}

func NewService(
	registry *Registry,
	authzSvc *authz.Service,
	confessionRepo confessions.Repository,
	commentRepo discuss.CommentRepository,
	auraRepo aura.Repository,
	statusRepo gate.Repository,
	publisher *publish.Service,
	messenger chat.Messenger,
) *Service {
	return &Service{
		registry:       registry,
		authzSvc:       authzSvc,
		confessionRepo: confessionRepo,
		commentRepo:    commentRepo,
		auraRepo:       auraRepo,
		statusRepo:     statusRepo,
		publisher:      publisher,
		messenger:      messenger,
	}
}

func (svc *Service) Registry() *Registry {
	return svc.registry
}

// authorize logs a denied attempt as a security event, distinct from the
// not-found outcomes ordinary handlers produce.
func (svc *Service) authorize(ctx context.Context, userID int64, action string) error {
	err := svc.authzSvc.Check(ctx, authz.UserSubject(userID), Object, action)
	if err != nil {
		var deniedErr *authz.AccessDeniedError
		if errors.As(err, &deniedErr) {
			slog.WarnContext(ctx, "unauthorized moderation action attempted",
				"user_id", userID, "action", action)
		}

		return err
	}

	return nil
}

// notify is a best-effort direct message; in this transport a user's
// private chat id equals the user id.
func (svc *Service) notify(ctx context.Context, userID int64, text string) {
	err := chat.SendWithRetry(ctx, chat.DefaultMaxAttempts, chat.DefaultWaitCeiling, func() error {
		_, sendErr := svc.messenger.SendText(ctx, userID, text, nil)

		return sendErr
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to notify user", "user_id", userID, "error", err)
	}
}

type DeliveryReport struct {
	Delivered int
	Failed    int
}

type NoModeratorsReachableError struct {
	Failed int
}

func (err NoModeratorsReachableError) Error() string {
	return fmt.Sprintf("no moderators reachable (%d deliveries failed)", err.Failed)
}

// NotifyModerators fans a pending confession out to every moderator with
// independent approve/reject affordances. One moderator's failure never
// blocks the others; only reaching nobody is an error.
func (svc *Service) NotifyModerators(ctx context.Context, confession *confessions.Confession) (*DeliveryReport, error) {
	moderators, err := svc.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read moderator registry: %w", err)
	}

	text := composeReviewCard(confession)
	keyboard := chat.Keyboard{{
		{Label: "✅ Approve", Data: callback.Encode(callback.Approve{ConfessionID: confession.ID})},
		{Label: "❌ Reject", Data: callback.Encode(callback.Reject{ConfessionID: confession.ID})},
	}}

	report := &DeliveryReport{}

	for _, moderatorID := range moderators {
		err := chat.SendWithRetry(ctx, chat.DefaultMaxAttempts, chat.DefaultWaitCeiling, func() error {
			_, sendErr := svc.messenger.SendText(ctx, moderatorID, text, keyboard)

			return sendErr
		})
		if err != nil {
			report.Failed++

			slog.WarnContext(ctx, "failed to deliver confession to moderator",
				"confession_id", confession.ID, "moderator_id", moderatorID, "error", err)

			continue
		}

		report.Delivered++
	}

	if report.Delivered == 0 {
		return report, NoModeratorsReachableError{Failed: report.Failed}
	}

	return report, nil
}

func composeReviewCard(confession *confessions.Confession) string {
	return fmt.Sprintf("New confession pending review\n\nCategories: %v\nAuthor: %d\n\n%s",
		confession.Categories, confession.AuthorID, confession.Text)
}

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

type AlreadyDecidedError struct {
	ConfessionID string
}

func (err AlreadyDecidedError) Error() string {
	return fmt.Sprintf("confession %q was already decided", err.ConfessionID)
}

type EmptyReasonError struct{}

func (err EmptyReasonError) Error() string {
	return "a rejection requires a non-empty reason"
}

// Decide applies a moderator's verdict. The status transition is a single
// conditional update, so when two moderators race the first decision wins
// and the loser gets AlreadyDecidedError; a retried approval never
// publishes or credits twice.
func (svc *Service) Decide(ctx context.Context, confessionID string, moderatorID int64, verdict Verdict, reason string) error {
	err := svc.authorize(ctx, moderatorID, ActionDecide)
	if err != nil {
		return err
	}

	confession, err := svc.confessionRepo.Find(ctx, confessionID)
	if err != nil {
		return fmt.Errorf("failed to find confession: %w", err)
	}

	switch verdict {
	case VerdictApprove:
		return svc.approve(ctx, confession)
	case VerdictReject:
		return svc.reject(ctx, confession, reason)
	default:
		return fmt.Errorf("unknown verdict %q", verdict)
	}
}

func (svc *Service) approve(ctx context.Context, confession *confessions.Confession) error {
	decided, err := svc.confessionRepo.MarkDecided(ctx, confession.ID, confessions.StatusApproved, nil)
	if err != nil {
		return fmt.Errorf("failed to mark confession approved: %w", err)
	}

	if !decided {
		return svc.republish(ctx, confession.ID)
	}

	confession.Status = confessions.StatusApproved

	_, err = svc.publisher.Publish(ctx, confession)
	if err != nil {
		// Approved but unpublished is a distinct, retryable anomaly.
		return err
	}

	svc.notify(ctx, confession.AuthorID, "Your confession was approved and published. 🎉")

	return nil
}

// republish retries the channel post for a confession that was approved
// but never reached the channel, so a repeated approval recovers it instead
// of dead-ending. A decided confession that is already published keeps the
// first-decision-wins answer.
func (svc *Service) republish(ctx context.Context, confessionID string) error {
	confession, err := svc.confessionRepo.Find(ctx, confessionID)
	if err != nil {
		return fmt.Errorf("failed to find confession: %w", err)
	}

	if confession.Status != confessions.StatusApproved || confession.ChannelMessageID != nil {
		return AlreadyDecidedError{ConfessionID: confessionID}
	}

	_, err = svc.publisher.Publish(ctx, confession)
	if err != nil {
		return err
	}

	svc.notify(ctx, confession.AuthorID, "Your confession was approved and published. 🎉")

	return nil
}

func (svc *Service) reject(ctx context.Context, confession *confessions.Confession, reason string) error {
	if reason == "" {
		return EmptyReasonError{}
	}

	decided, err := svc.confessionRepo.MarkDecided(ctx, confession.ID, confessions.StatusRejected, &reason)
	if err != nil {
		return fmt.Errorf("failed to mark confession rejected: %w", err)
	}

	if !decided {
		return AlreadyDecidedError{ConfessionID: confession.ID}
	}

	svc.notify(ctx, confession.AuthorID, "Your confession was rejected.\n\nReason: "+reason)

	return nil
}
