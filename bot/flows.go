package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/whisperwall/whisperwall/chat"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/dialog"
	"github.com/whisperwall/whisperwall/discuss"
	"github.com/whisperwall/whisperwall/moderation"
)

// HandleText routes a free-form message by the sender's dialog state. A
// message outside any flow gets a gentle hint instead of silence.
func (h *Handler) HandleText(ctx context.Context, msg chat.Text) {
	if !h.checkGate(ctx, msg.UserID, msg.ChatID) {
		return
	}

	switch state := h.dialogs.Get(msg.UserID).(type) {
	case dialog.AwaitingText:
		h.finishConfession(ctx, msg, state)
	case dialog.AwaitingComment:
		h.finishComment(ctx, msg, state)
	case dialog.AwaitingReply:
		h.finishReply(ctx, msg, state)
	case dialog.AwaitingRejectReason:
		h.finishRejection(ctx, msg, state)
	case dialog.AwaitingContact:
		h.finishContact(ctx, msg)
	case dialog.SelectingCategories:
		h.reply(ctx, msg.ChatID, "Pick your categories with the buttons first, then confirm.", nil)
	default:
		h.reply(ctx, msg.ChatID, "Use /confess to share something anonymously.", nil)
	}
}

func (h *Handler) finishConfession(ctx context.Context, msg chat.Text, state dialog.AwaitingText) {
	if msg.Body == "" {
		h.reply(ctx, msg.ChatID, "A confession has to be text. Write it as a single message.", nil)

		return
	}

	confession, err := h.confessionSvc.Submit(ctx, msg.UserID, msg.Body, state.Chosen)
	if err != nil {
		h.replySubmissionError(ctx, msg.ChatID, err)

		return
	}

	h.dialogs.Clear(msg.UserID)

	_, err = h.moderationSvc.NotifyModerators(ctx, confession)
	if err != nil {
		var unreachableErr moderation.NoModeratorsReachableError
		if errors.As(err, &unreachableErr) {
			slog.ErrorContext(ctx, "confession submitted but no moderator reached",
				"confession_id", confession.ID, "failed", unreachableErr.Failed)
			h.reply(ctx, msg.ChatID, "Your confession is saved, but no moderator could be reached right now. Review will take longer than usual.", nil)

			return
		}

		slog.ErrorContext(ctx, "failed to notify moderators", "confession_id", confession.ID, "error", err)
	}

	h.reply(ctx, msg.ChatID, "Thank you. Your confession is in the moderation queue; you will hear back once it is reviewed.", nil)
}

// replySubmissionError keeps the user inside the flow on a soft rejection
// so they can fix the text and resend.
func (h *Handler) replySubmissionError(ctx context.Context, chatID int64, err error) {
	var (
		tooShortErr   confessions.TextTooShortError
		prohibitedErr confessions.ProhibitedContentError
	)

	switch {
	case errors.As(err, &tooShortErr):
		h.reply(ctx, chatID, fmt.Sprintf("That's too short. Write at least %d characters.", tooShortErr.Min), nil)
	case errors.As(err, &prohibitedErr):
		h.reply(ctx, chatID, "Links, handles and promotions are not allowed in confessions. Rewrite it without them.", nil)
	default:
		slog.ErrorContext(ctx, "failed to submit confession", "error", err)
		h.reply(ctx, chatID, "Something went wrong, please try again.", nil)
	}
}

func (h *Handler) finishComment(ctx context.Context, msg chat.Text, state dialog.AwaitingComment) {
	comment, err := h.discussSvc.AddComment(ctx, state.ConfessionID, msg.UserID, bodyFrom(msg))
	if err != nil {
		h.replyCommentError(ctx, msg.ChatID, err)

		return
	}

	h.dialogs.Clear(msg.UserID)
	h.afterComment(ctx, msg, comment)
}

func (h *Handler) finishReply(ctx context.Context, msg chat.Text, state dialog.AwaitingReply) {
	comment, err := h.discussSvc.Reply(ctx, state.CommentID, msg.UserID, bodyFrom(msg))
	if err != nil {
		var parentErr discuss.ParentNotFoundError
		if errors.As(err, &parentErr) {
			h.dialogs.Clear(msg.UserID)
			h.reply(ctx, msg.ChatID, "The comment you were replying to is gone.", nil)

			return
		}

		h.replyCommentError(ctx, msg.ChatID, err)

		return
	}

	h.dialogs.Clear(msg.UserID)
	h.afterComment(ctx, msg, comment)
}

// afterComment refreshes the channel post's comment counter and drops the
// commenter onto the page their comment landed on.
func (h *Handler) afterComment(ctx context.Context, msg chat.Text, comment *discuss.Comment) {
	confession, err := h.confessionSvc.Get(ctx, comment.ConfessionID)
	if err == nil {
		total, countErr := h.discussSvc.CountComments(ctx, comment.ConfessionID)
		if countErr == nil {
			h.publishSvc.RefreshCommentCount(ctx, confession, total)
		}
	}

	_, page, err := h.discussSvc.Locate(ctx, comment.ID)
	if err != nil {
		page = 1
	}

	h.showCommentsPage(ctx, msg.UserID, msg.ChatID, comment.ConfessionID, page, nil)
}

func (h *Handler) replyCommentError(ctx context.Context, chatID int64, err error) {
	var (
		invalidErr      discuss.InvalidBodyError
		notAvailableErr discuss.NotAvailableError
	)

	switch {
	case errors.As(err, &invalidErr):
		h.reply(ctx, chatID, "Send exactly one thing: text, a sticker, or a GIF.", nil)
	case errors.As(err, &notAvailableErr):
		h.reply(ctx, chatID, "This confession is not available.", nil)
	default:
		slog.ErrorContext(ctx, "failed to add comment", "error", err)
		h.reply(ctx, chatID, "Something went wrong, please try again.", nil)
	}
}

func (h *Handler) finishRejection(ctx context.Context, msg chat.Text, state dialog.AwaitingRejectReason) {
	if msg.Body == "" {
		h.reply(ctx, msg.ChatID, "The rejection reason has to be text.", nil)

		return
	}

	err := h.moderationSvc.Decide(ctx, state.ConfessionID, msg.UserID, moderation.VerdictReject, msg.Body)
	if err != nil {
		h.dialogs.Clear(msg.UserID)

		var alreadyErr moderation.AlreadyDecidedError
		if errors.As(err, &alreadyErr) {
			h.reply(ctx, msg.ChatID, "Another moderator already decided this one.", nil)

			return
		}

		slog.ErrorContext(ctx, "failed to reject confession", "error", err)
		h.reply(ctx, msg.ChatID, "That didn't work: "+err.Error(), nil)

		return
	}

	h.dialogs.Clear(msg.UserID)
	h.reply(ctx, msg.ChatID, "Rejected; the author has been told why.", nil)
}

func (h *Handler) finishContact(ctx context.Context, msg chat.Text) {
	if msg.Body == "" {
		h.reply(ctx, msg.ChatID, "A message to the moderators has to be text.", nil)

		return
	}

	h.dialogs.Clear(msg.UserID)

	primary := h.moderationSvc.Registry().Primary()
	text := fmt.Sprintf("📨 Message from user %d:\n\n%s", msg.UserID, msg.Body)

	err := chat.SendWithRetry(ctx, chat.DefaultMaxAttempts, chat.DefaultWaitCeiling, func() error {
		_, sendErr := h.messenger.SendText(ctx, primary, text, nil)

		return sendErr
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to forward contact message", "user_id", msg.UserID, "error", err)
		h.reply(ctx, msg.ChatID, "Could not deliver your message right now, please try again later.", nil)

		return
	}

	h.reply(ctx, msg.ChatID, "Delivered. Thank you.", nil)
}

func bodyFrom(msg chat.Text) discuss.Body {
	return discuss.Body{
		Text:        msg.Body,
		StickerID:   msg.StickerID,
		AnimationID: msg.AnimationID,
	}
}
