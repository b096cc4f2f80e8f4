package chat

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// LoggingMessenger writes outbound traffic to the log instead of a real
// transport. It backs dry runs and local development, where wiring a chat
// platform is not worth it.
type LoggingMessenger struct {
	nextID atomic.Int64
}

var _ Messenger = (*LoggingMessenger)(nil)

func NewLoggingMessenger() *LoggingMessenger {
	return &LoggingMessenger{}
}

func (m *LoggingMessenger) send(ctx context.Context, chatID int64, kind, payload string, keyboard Keyboard) (MessageRef, error) {
	ref := MessageRef{ChatID: chatID, MessageID: m.nextID.Add(1)}

	slog.InfoContext(ctx, "outbound message",
		"kind", kind, "chat_id", chatID, "message_id", ref.MessageID,
		"payload", payload, "buttons", len(keyboard))

	return ref, nil
}

func (m *LoggingMessenger) SendText(ctx context.Context, chatID int64, text string, keyboard Keyboard) (MessageRef, error) {
	return m.send(ctx, chatID, "text", text, keyboard)
}

func (m *LoggingMessenger) SendSticker(ctx context.Context, chatID int64, stickerID string, keyboard Keyboard) (MessageRef, error) {
	return m.send(ctx, chatID, "sticker", stickerID, keyboard)
}

func (m *LoggingMessenger) SendAnimation(ctx context.Context, chatID int64, animationID string, keyboard Keyboard) (MessageRef, error) {
	return m.send(ctx, chatID, "animation", animationID, keyboard)
}

func (m *LoggingMessenger) EditText(ctx context.Context, ref MessageRef, text string, keyboard Keyboard) error {
	slog.InfoContext(ctx, "outbound edit",
		"chat_id", ref.ChatID, "message_id", ref.MessageID, "payload", text, "buttons", len(keyboard))

	return nil
}

func (m *LoggingMessenger) EditKeyboard(ctx context.Context, ref MessageRef, keyboard Keyboard) error {
	slog.InfoContext(ctx, "outbound keyboard edit",
		"chat_id", ref.ChatID, "message_id", ref.MessageID, "buttons", len(keyboard))

	return nil
}
