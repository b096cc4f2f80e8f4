// Package publish posts approved confessions to the public channel.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/whisperwall/whisperwall/aura"
	"github.com/whisperwall/whisperwall/chat"
	"github.com/whisperwall/whisperwall/confessions"
)

type Service struct {
	confessionRepo confessions.Repository
	messenger      chat.Messenger
	channelID      int64
	deepLinkBase   string
}

func NewService(confessionRepo confessions.Repository, messenger chat.Messenger, channelID int64, deepLinkBase string) *Service {
	return &Service{
		confessionRepo: confessionRepo,
		messenger:      messenger,
		channelID:      channelID,
		deepLinkBase:   deepLinkBase,
	}
}

// Publish posts the confession to the public channel and, on success,
// records the channel message and credits the author in one transaction.
// On transport failure the confession stays approved without a channel
// message, which is a reportable anomaly rather than a pending item.
func (svc *Service) Publish(ctx context.Context, confession *confessions.Confession) (chat.MessageRef, error) {
	text := composePost(confession)
	keyboard := svc.commentKeyboard(confession.ID, 0)

	var ref chat.MessageRef

	err := chat.SendWithRetry(ctx, chat.DefaultMaxAttempts, chat.DefaultWaitCeiling, func() error {
		var sendErr error
		ref, sendErr = svc.messenger.SendText(ctx, svc.channelID, text, keyboard)

		return sendErr
	})
	if err != nil {
		return chat.MessageRef{}, PublicationFailedError{ConfessionID: confession.ID, Err: err}
	}

	published, err := svc.confessionRepo.MarkPublished(ctx, confession.ID, ref.MessageID, aura.DeltaConfessionPublished)
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("failed to mark confession published: %w", err)
	}

	if !published {
		slog.WarnContext(ctx, "confession already had a channel message, author not credited again",
			"confession_id", confession.ID)
	}

	return ref, nil
}

// RefreshCommentCount updates the channel post's comment-count affordance.
// Best-effort: a failed edit is not worth failing the comment that caused it.
func (svc *Service) RefreshCommentCount(ctx context.Context, confession *confessions.Confession, total int) {
	if confession.ChannelMessageID == nil {
		return
	}

	ref := chat.MessageRef{ChatID: svc.channelID, MessageID: *confession.ChannelMessageID}

	err := svc.messenger.EditKeyboard(ctx, ref, svc.commentKeyboard(confession.ID, total))
	if err != nil {
		slog.WarnContext(ctx, "failed to refresh comment count", "confession_id", confession.ID, "error", err)
	}
}

func (svc *Service) commentKeyboard(confessionID string, total int) chat.Keyboard {
	label := "💬 Comments"
	if total > 0 {
		label = fmt.Sprintf("💬 %d Comments", total)
	}

	return chat.Keyboard{{{Label: label, URL: svc.deepLinkBase + ViewPayload(confessionID)}}}
}

func composePost(confession *confessions.Confession) string {
	tags := make([]string, 0, len(confession.Categories))
	for _, category := range confession.Categories {
		tags = append(tags, "#"+strings.ReplaceAll(category, " ", ""))
	}

	return confession.Text + "\n\n" + strings.Join(tags, " ")
}

const viewPayloadPrefix = "view_"

// ViewPayload is the deep-link start payload that jumps a reader into the
// confession's discussion.
func ViewPayload(confessionID string) string {
	return viewPayloadPrefix + confessionID
}

func ParseViewPayload(payload string) (string, bool) {
	id, ok := strings.CutPrefix(payload, viewPayloadPrefix)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

type PublicationFailedError struct {
	ConfessionID string
	Err          error
}

func (err PublicationFailedError) Error() string {
	return fmt.Sprintf("failed to publish confession %q: %v", err.ConfessionID, err.Err)
}

func (err PublicationFailedError) Unwrap() error {
	return err.Err
}
