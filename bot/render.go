package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/whisperwall/whisperwall/chat"
	"github.com/whisperwall/whisperwall/chat/callback"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/discuss"
	"github.com/whisperwall/whisperwall/reactions"
)

func categoryKeyboard(chosen []string) chat.Keyboard {
	var keyboard chat.Keyboard

	for _, label := range confessions.Categories() {
		text := label
		if slices.Contains(chosen, label) {
			text = "✅ " + label
		}

		keyboard = append(keyboard, []chat.Button{{
			Label: text,
			Data:  callback.Encode(callback.ToggleCategory{Label: label}),
		}})
	}

	keyboard = append(keyboard, []chat.Button{
		{Label: "Done", Data: callback.Encode(callback.ConfirmCategories{})},
		{Label: "Cancel", Data: callback.Encode(callback.CancelFlow{})},
	})

	return keyboard
}

// showCommentsPage renders one page of a confession's discussion. With a
// ref it edits that message in place (paging, reacting); without one it
// sends a fresh message.
func (h *Handler) showCommentsPage(ctx context.Context, viewerID, chatID int64, confessionID string, pageNum int, ref *chat.MessageRef) {
	isModerator := h.moderationSvc.Registry().IsModerator(ctx, viewerID)

	page, err := h.discussSvc.ListPage(ctx, discuss.ListPageRequest{
		ConfessionID:      confessionID,
		ViewerID:          viewerID,
		Page:              pageNum,
		ViewerIsModerator: isModerator,
	})
	if err != nil {
		var notAvailableErr discuss.NotAvailableError
		if errors.As(err, &notAvailableErr) {
			h.reply(ctx, chatID, "This confession is not available.", nil)

			return
		}

		slog.ErrorContext(ctx, "failed to list comments", "confession_id", confessionID, "error", err)
		h.reply(ctx, chatID, "Something went wrong, please try again.", nil)

		return
	}

	text := renderPage(page)
	keyboard := h.pageKeyboard(page, isModerator)

	if ref != nil {
		err := h.messenger.EditText(ctx, *ref, text, keyboard)
		if err == nil {
			return
		}
	}

	h.reply(ctx, chatID, text, keyboard)
}

func renderPage(page *discuss.Page) string {
	var b strings.Builder

	if page.Total == 0 {
		b.WriteString("No comments yet. Be the first!")

		return b.String()
	}

	fmt.Fprintf(&b, "Comments · page %d/%d · %d total\n", page.Number, page.PageCount, page.Total)

	for _, view := range page.Comments {
		b.WriteString("\n")
		b.WriteString(renderComment(view))
		b.WriteString("\n")
	}

	return b.String()
}

func renderComment(view discuss.CommentView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#%d %s 🏅%d Aura · %s", view.Ordinal, displayTag(view.Tag), view.Points, view.Title)

	if view.RawAuthorID != nil {
		fmt.Fprintf(&b, " [%d]", *view.RawAuthorID)
	}

	if view.ReplyTo != nil {
		switch {
		case view.ReplyTo.Removed:
			b.WriteString("\n↪ in reply to a removed comment")
		case view.ReplyTo.OnPage:
			fmt.Fprintf(&b, "\n↪ in reply to #%d", view.ReplyTo.Ordinal)
		default:
			fmt.Fprintf(&b, "\n↪ in reply to #%d (another page)", view.ReplyTo.Ordinal)
		}
	}

	b.WriteString("\n")

	switch {
	case view.Body.Text != "":
		b.WriteString(view.Body.Text)
	case view.Body.StickerID != "":
		b.WriteString("[sticker]")
	case view.Body.AnimationID != "":
		b.WriteString("[GIF]")
	}

	return b.String()
}

func displayTag(tag discuss.Tag) string {
	switch tag {
	case discuss.TagAuthor:
		return "(Author)"
	case discuss.TagSelf:
		return "(You)"
	default:
		return "Anonymous"
	}
}

func (h *Handler) pageKeyboard(page *discuss.Page, isModerator bool) chat.Keyboard {
	var keyboard chat.Keyboard

	for _, view := range page.Comments {
		row := []chat.Button{
			{
				Label: fmt.Sprintf("👍 %d · #%d", view.Likes, view.Ordinal),
				Data:  callback.Encode(callback.React{CommentID: view.ID, Kind: reactions.KindLike}),
			},
			{
				Label: fmt.Sprintf("👎 %d", view.Dislikes),
				Data:  callback.Encode(callback.React{CommentID: view.ID, Kind: reactions.KindDislike}),
			},
			{
				Label: "↩️",
				Data:  callback.Encode(callback.Reply{CommentID: view.ID}),
			},
		}

		if isModerator {
			row = append(row,
				chat.Button{
					Label: "🗑",
					Data:  callback.Encode(callback.DeleteComment{CommentID: view.ID, Severity: callback.SeverityMinor}),
				},
				chat.Button{
					Label: "🗑❗",
					Data:  callback.Encode(callback.DeleteComment{CommentID: view.ID, Severity: callback.SeverityMajor}),
				},
			)
		}

		keyboard = append(keyboard, row)
	}

	if page.PageCount > 1 {
		var nav []chat.Button

		if page.Number > 1 {
			nav = append(nav, chat.Button{
				Label: "⬅️",
				Data:  callback.Encode(callback.ViewComments{ConfessionID: page.ConfessionID, Page: page.Number - 1}),
			})
		}

		nav = append(nav, chat.Button{
			Label: strconv.Itoa(page.Number) + "/" + strconv.Itoa(page.PageCount),
			Data:  callback.Encode(callback.ViewComments{ConfessionID: page.ConfessionID, Page: page.Number}),
		})

		if page.Number < page.PageCount {
			nav = append(nav, chat.Button{
				Label: "➡️",
				Data:  callback.Encode(callback.ViewComments{ConfessionID: page.ConfessionID, Page: page.Number + 1}),
			})
		}

		keyboard = append(keyboard, nav)
	}

	keyboard = append(keyboard, []chat.Button{{
		Label: "✍️ Add comment",
		Data:  callback.Encode(callback.AddComment{ConfessionID: page.ConfessionID}),
	}})

	return keyboard
}
