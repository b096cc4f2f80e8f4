// Package bot turns inbound chat events into engine operations. The
// transport adapter feeds Commands, Callbacks and Texts in; everything the
// user sees goes back out through the chat.Messenger.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/whisperwall/whisperwall/aura"
	"github.com/whisperwall/whisperwall/chat"
	"github.com/whisperwall/whisperwall/chat/callback"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/dialog"
	"github.com/whisperwall/whisperwall/discuss"
	"github.com/whisperwall/whisperwall/gate"
	"github.com/whisperwall/whisperwall/moderation"
	"github.com/whisperwall/whisperwall/publish"
	"github.com/whisperwall/whisperwall/reactions"
)

const rulesText = `Welcome to Whisperwall.

1. Confessions are anonymous. Keep them that way: no names, no handles, no links.
2. Be honest, not cruel. Harassment gets you blocked.
3. Moderators review every confession before it reaches the channel.

Tap the button below to accept the rules and start.`

type Handler struct {
	gate          *gate.Gate
	dialogs       *dialog.Manager
	confessionSvc *confessions.Service
	discussSvc    *discuss.Service
	reactionSvc   *reactions.Service
	moderationSvc *moderation.Service
	publishSvc    *publish.Service
	auraRepo      aura.Repository
	messenger     chat.Messenger
}

func NewHandler(
	gt *gate.Gate,
	dialogs *dialog.Manager,
	confessionSvc *confessions.Service,
	discussSvc *discuss.Service,
	reactionSvc *reactions.Service,
	moderationSvc *moderation.Service,
	publishSvc *publish.Service,
	auraRepo aura.Repository,
	messenger chat.Messenger,
) *Handler {
	return &Handler{
		gate:          gt,
		dialogs:       dialogs,
		confessionSvc: confessionSvc,
		discussSvc:    discussSvc,
		reactionSvc:   reactionSvc,
		moderationSvc: moderationSvc,
		publishSvc:    publishSvc,
		auraRepo:      auraRepo,
		messenger:     messenger,
	}
}

// reply is a best-effort send back to the chat the event came from.
func (h *Handler) reply(ctx context.Context, chatID int64, text string, keyboard chat.Keyboard) {
	err := chat.SendWithRetry(ctx, chat.DefaultMaxAttempts, chat.DefaultWaitCeiling, func() error {
		_, sendErr := h.messenger.SendText(ctx, chatID, text, keyboard)

		return sendErr
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) sendRulesPrompt(ctx context.Context, chatID int64) {
	keyboard := chat.Keyboard{{
		{Label: "✅ I accept the rules", Data: callback.Encode(callback.AcceptRules{})},
	}}

	h.reply(ctx, chatID, rulesText, keyboard)
}

// checkGate runs the access gate and, when the user is not allowed through,
// sends the matching notice itself. It reports whether the caller should
// proceed.
func (h *Handler) checkGate(ctx context.Context, userID, chatID int64) bool {
	err := h.gate.Check(ctx, userID)
	if err == nil {
		return true
	}

	var blockedErr gate.BlockedError

	switch {
	case errors.As(err, &blockedErr):
		text := "You are blocked from using this bot."
		if blockedErr.Until != nil {
			text = fmt.Sprintf("You are blocked until %s.", blockedErr.Until.Format("2006-01-02 15:04 MST"))
		}

		if blockedErr.Reason != nil && *blockedErr.Reason != "" {
			text += "\nReason: " + *blockedErr.Reason
		}

		h.reply(ctx, chatID, text, nil)
	case errors.As(err, &gate.RulesNotAcceptedError{}):
		h.sendRulesPrompt(ctx, chatID)
	default:
		slog.ErrorContext(ctx, "failed to check access gate", "user_id", userID, "error", err)
		h.reply(ctx, chatID, "Something went wrong, please try again.", nil)
	}

	return false
}

func (h *Handler) HandleCommand(ctx context.Context, cmd chat.Command) {
	switch cmd.Name {
	case "start":
		h.handleStart(ctx, cmd)
	case "rules":
		h.sendRulesPrompt(ctx, cmd.ChatID)
	case "confess":
		h.handleConfess(ctx, cmd)
	case "cancel":
		h.handleCancel(ctx, cmd)
	case "aura":
		h.handleAura(ctx, cmd)
	case "contact":
		h.handleContact(ctx, cmd)
	case "warn", "block", "unblock", "delconf", "addmod", "delmod", "mods":
		h.handleModeratorCommand(ctx, cmd)
	default:
		h.reply(ctx, cmd.ChatID, "Unknown command. Try /confess to share something.", nil)
	}
}

func (h *Handler) handleStart(ctx context.Context, cmd chat.Command) {
	if confessionID, ok := publish.ParseViewPayload(strings.TrimSpace(cmd.Args)); ok {
		if !h.checkGate(ctx, cmd.UserID, cmd.ChatID) {
			return
		}

		h.showCommentsPage(ctx, cmd.UserID, cmd.ChatID, confessionID, 1, nil)

		return
	}

	err := h.gate.Check(ctx, cmd.UserID)
	if err != nil {
		h.sendRulesPrompt(ctx, cmd.ChatID)

		return
	}

	h.reply(ctx, cmd.ChatID, "Welcome back. Use /confess to share something anonymously.", nil)
}

func (h *Handler) handleConfess(ctx context.Context, cmd chat.Command) {
	if !h.checkGate(ctx, cmd.UserID, cmd.ChatID) {
		return
	}

	state := dialog.SelectingCategories{}
	h.dialogs.Set(cmd.UserID, state)

	h.reply(ctx, cmd.ChatID,
		fmt.Sprintf("Pick up to %d categories for your confession, then confirm.", confessions.MaxCategories),
		categoryKeyboard(state.Chosen),
	)
}

func (h *Handler) handleCancel(ctx context.Context, cmd chat.Command) {
	h.dialogs.Clear(cmd.UserID)
	h.reply(ctx, cmd.ChatID, "Cancelled.", nil)
}

func (h *Handler) handleAura(ctx context.Context, cmd chat.Command) {
	if !h.checkGate(ctx, cmd.UserID, cmd.ChatID) {
		return
	}

	points, err := h.auraRepo.Balance(ctx, cmd.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read balance", "user_id", cmd.UserID, "error", err)
		h.reply(ctx, cmd.ChatID, "Something went wrong, please try again.", nil)

		return
	}

	h.reply(ctx, cmd.ChatID, fmt.Sprintf("🏅 %d Aura · %s", points, aura.TitleFor(points)), nil)
}

func (h *Handler) handleContact(ctx context.Context, cmd chat.Command) {
	if !h.checkGate(ctx, cmd.UserID, cmd.ChatID) {
		return
	}

	h.dialogs.Set(cmd.UserID, dialog.AwaitingContact{})
	h.reply(ctx, cmd.ChatID, "Write your message and I will pass it on to the moderators. /cancel to abort.", nil)
}

func (h *Handler) handleModeratorCommand(ctx context.Context, cmd chat.Command) {
	args := strings.Fields(cmd.Args)

	parseTarget := func() (int64, bool) {
		if len(args) == 0 {
			h.reply(ctx, cmd.ChatID, fmt.Sprintf("Usage: /%s <user id> ...", cmd.Name), nil)

			return 0, false
		}

		targetID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			h.reply(ctx, cmd.ChatID, "The first argument must be a numeric user id.", nil)

			return 0, false
		}

		return targetID, true
	}

	var err error

	switch cmd.Name {
	case "warn":
		targetID, ok := parseTarget()
		if !ok {
			return
		}

		err = h.moderationSvc.Warn(ctx, cmd.UserID, targetID, strings.Join(args[1:], " "))
	case "block":
		targetID, ok := parseTarget()
		if !ok {
			return
		}

		days := 0
		reasonArgs := args[1:]

		if len(reasonArgs) > 0 {
			if d, convErr := strconv.Atoi(reasonArgs[0]); convErr == nil {
				days = d
				reasonArgs = reasonArgs[1:]
			}
		}

		err = h.moderationSvc.Block(ctx, cmd.UserID, targetID, days, strings.Join(reasonArgs, " "))
	case "unblock":
		targetID, ok := parseTarget()
		if !ok {
			return
		}

		err = h.moderationSvc.Unblock(ctx, cmd.UserID, targetID)
	case "delconf":
		if len(args) == 0 {
			h.reply(ctx, cmd.ChatID, "Usage: /delconf <confession id>", nil)

			return
		}

		err = h.moderationSvc.DeleteConfession(ctx, cmd.UserID, args[0])
	case "addmod":
		targetID, ok := parseTarget()
		if !ok {
			return
		}

		err = h.moderationSvc.Registry().Add(ctx, cmd.UserID, targetID)
	case "delmod":
		targetID, ok := parseTarget()
		if !ok {
			return
		}

		err = h.moderationSvc.Registry().Remove(ctx, cmd.UserID, targetID)
	case "mods":
		var moderators []int64

		moderators, err = h.moderationSvc.Registry().List(ctx)
		if err == nil {
			lines := make([]string, 0, len(moderators))
			for _, id := range moderators {
				line := strconv.FormatInt(id, 10)
				if id == h.moderationSvc.Registry().Primary() {
					line += " (primary)"
				}

				lines = append(lines, line)
			}

			h.reply(ctx, cmd.ChatID, "Moderators:\n"+strings.Join(lines, "\n"), nil)

			return
		}
	}

	if err != nil {
		h.replyModerationError(ctx, cmd.ChatID, err)

		return
	}

	h.reply(ctx, cmd.ChatID, "Done.", nil)
}

// replyModerationError stays silent on a denied caller; the denial is
// already in the security log.
func (h *Handler) replyModerationError(ctx context.Context, chatID int64, err error) {
	if authzDenied(err) {
		return
	}

	slog.ErrorContext(ctx, "moderation command failed", "error", err)
	h.reply(ctx, chatID, "That didn't work: "+err.Error(), nil)
}
