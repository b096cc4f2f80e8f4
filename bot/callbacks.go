package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/whisperwall/whisperwall/authz"
	"github.com/whisperwall/whisperwall/chat"
	"github.com/whisperwall/whisperwall/chat/callback"
	"github.com/whisperwall/whisperwall/dialog"
	"github.com/whisperwall/whisperwall/discuss"
	"github.com/whisperwall/whisperwall/gate"
	"github.com/whisperwall/whisperwall/moderation"
	"github.com/whisperwall/whisperwall/reactions"
)

// HandleCallback dispatches a button press. Payloads the engine never
// produced, and payloads whose subject has since disappeared, both resolve
// to a user notice rather than an error.
func (h *Handler) HandleCallback(ctx context.Context, cb chat.Callback) {
	action, err := callback.Decode(cb.Data)
	if err != nil {
		slog.WarnContext(ctx, "malformed callback payload", "user_id", cb.UserID, "data", cb.Data)
		h.reply(ctx, cb.ChatID, "That button is no longer valid.", nil)

		return
	}

	if _, ok := action.(callback.AcceptRules); ok {
		h.handleAcceptRules(ctx, cb)

		return
	}

	if !h.checkGate(ctx, cb.UserID, cb.ChatID) {
		return
	}

	switch a := action.(type) {
	case callback.ToggleCategory:
		h.handleToggleCategory(ctx, cb, a.Label)
	case callback.ConfirmCategories:
		h.handleConfirmCategories(ctx, cb)
	case callback.CancelFlow:
		h.dialogs.Clear(cb.UserID)
		h.editOrReply(ctx, cb, "Cancelled.", nil)
	case callback.Approve:
		h.handleDecision(ctx, cb, a.ConfessionID, moderation.VerdictApprove)
	case callback.Reject:
		h.handleReject(ctx, cb, a.ConfessionID)
	case callback.ViewComments:
		ref := chat.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
		h.showCommentsPage(ctx, cb.UserID, cb.ChatID, a.ConfessionID, a.Page, &ref)
	case callback.AddComment:
		h.dialogs.Set(cb.UserID, dialog.AwaitingComment{ConfessionID: a.ConfessionID, Page: 1})
		h.reply(ctx, cb.ChatID, "Send your comment: text, a sticker, or a GIF. /cancel to abort.", nil)
	case callback.Reply:
		h.dialogs.Set(cb.UserID, dialog.AwaitingReply{CommentID: a.CommentID})
		h.reply(ctx, cb.ChatID, "Send your reply: text, a sticker, or a GIF. /cancel to abort.", nil)
	case callback.React:
		h.handleReact(ctx, cb, a)
	case callback.DeleteComment:
		h.handleDeleteComment(ctx, cb, a)
	default:
		h.reply(ctx, cb.ChatID, "That button is no longer valid.", nil)
	}
}

func (h *Handler) handleAcceptRules(ctx context.Context, cb chat.Callback) {
	err := h.gate.Check(ctx, cb.UserID)
	if err == nil {
		h.editOrReply(ctx, cb, "You're all set. Use /confess to share something anonymously.", nil)

		return
	}

	if !errors.As(err, &gate.RulesNotAcceptedError{}) {
		h.checkGate(ctx, cb.UserID, cb.ChatID)

		return
	}

	err = h.gate.AcceptRules(ctx, cb.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept rules", "user_id", cb.UserID, "error", err)
		h.reply(ctx, cb.ChatID, "Something went wrong, please try again.", nil)

		return
	}

	h.editOrReply(ctx, cb, "Rules accepted. Use /confess to share something anonymously.", nil)
}

func (h *Handler) handleToggleCategory(ctx context.Context, cb chat.Callback, label string) {
	state, ok := h.dialogs.Get(cb.UserID).(dialog.SelectingCategories)
	if !ok {
		h.reply(ctx, cb.ChatID, "That button is no longer valid. Start over with /confess.", nil)

		return
	}

	next, err := state.Toggle(label)
	if err != nil {
		// Limit reached; keep the selection as it is.
		return
	}

	h.dialogs.Set(cb.UserID, next)

	ref := chat.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	err = h.messenger.EditKeyboard(ctx, ref, categoryKeyboard(next.Chosen))
	if err != nil {
		slog.WarnContext(ctx, "failed to update category keyboard", "user_id", cb.UserID, "error", err)
	}
}

func (h *Handler) handleConfirmCategories(ctx context.Context, cb chat.Callback) {
	state, ok := h.dialogs.Get(cb.UserID).(dialog.SelectingCategories)
	if !ok {
		h.reply(ctx, cb.ChatID, "That button is no longer valid. Start over with /confess.", nil)

		return
	}

	next, err := state.Finalize()
	if err != nil {
		h.reply(ctx, cb.ChatID, "Pick at least one category first.", nil)

		return
	}

	h.dialogs.Set(cb.UserID, next)
	h.editOrReply(ctx, cb, "Now write your confession as a single message. /cancel to abort.", nil)
}

func (h *Handler) handleDecision(ctx context.Context, cb chat.Callback, confessionID string, verdict moderation.Verdict) {
	err := h.moderationSvc.Decide(ctx, confessionID, cb.UserID, verdict, "")
	if err != nil {
		h.replyDecisionError(ctx, cb, err)

		return
	}

	h.editOrReply(ctx, cb, "Approved and published.", nil)
}

// handleReject only collects the reason; the decision itself happens when
// the reason text arrives.
func (h *Handler) handleReject(ctx context.Context, cb chat.Callback, confessionID string) {
	if !h.moderationSvc.Registry().IsModerator(ctx, cb.UserID) {
		slog.WarnContext(ctx, "unauthorized moderation action attempted",
			"user_id", cb.UserID, "action", moderation.ActionDecide)

		return
	}

	h.dialogs.Set(cb.UserID, dialog.AwaitingRejectReason{ConfessionID: confessionID})
	h.reply(ctx, cb.ChatID, "Send the rejection reason as a message. /cancel to abort.", nil)
}

func (h *Handler) replyDecisionError(ctx context.Context, cb chat.Callback, err error) {
	var alreadyErr moderation.AlreadyDecidedError

	switch {
	case errors.As(err, &alreadyErr):
		h.editOrReply(ctx, cb, "Another moderator already decided this one.", nil)
	case authzDenied(err):
		// The denial is already in the security log; the caller gets nothing.
	default:
		slog.ErrorContext(ctx, "failed to decide confession", "error", err)
		h.reply(ctx, cb.ChatID, "That didn't work: "+err.Error(), nil)
	}
}

func (h *Handler) handleReact(ctx context.Context, cb chat.Callback, a callback.React) {
	_, err := h.reactionSvc.React(ctx, a.CommentID, cb.UserID, a.Kind)
	if err != nil {
		h.replyCommentGone(ctx, cb.ChatID, err)

		return
	}

	confessionID, page, err := h.discussSvc.Locate(ctx, a.CommentID)
	if err != nil {
		h.replyCommentGone(ctx, cb.ChatID, err)

		return
	}

	ref := chat.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	h.showCommentsPage(ctx, cb.UserID, cb.ChatID, confessionID, page, &ref)
}

func (h *Handler) handleDeleteComment(ctx context.Context, cb chat.Callback, a callback.DeleteComment) {
	err := h.moderationSvc.DeleteComment(ctx, cb.UserID, a.CommentID, moderation.Severity(a.Severity))
	if err != nil {
		if authzDenied(err) {
			return
		}

		h.replyCommentGone(ctx, cb.ChatID, err)

		return
	}

	h.reply(ctx, cb.ChatID, "Comment removed.", nil)
}

func (h *Handler) replyCommentGone(ctx context.Context, chatID int64, err error) {
	var (
		commentErr  discuss.CommentNotFoundError
		reactionErr reactions.CommentNotFoundError
	)

	if errors.As(err, &commentErr) || errors.As(err, &reactionErr) {
		h.reply(ctx, chatID, "That comment is gone.", nil)

		return
	}

	slog.ErrorContext(ctx, "comment operation failed", "error", err)
	h.reply(ctx, chatID, "Something went wrong, please try again.", nil)
}

// editOrReply prefers editing the message the button lives on, falling
// back to a fresh message when the edit fails.
func (h *Handler) editOrReply(ctx context.Context, cb chat.Callback, text string, keyboard chat.Keyboard) {
	ref := chat.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	err := h.messenger.EditText(ctx, ref, text, keyboard)
	if err != nil {
		h.reply(ctx, cb.ChatID, text, keyboard)
	}
}

func authzDenied(err error) bool {
	var deniedErr *authz.AccessDeniedError

	return errors.As(err, &deniedErr)
}
