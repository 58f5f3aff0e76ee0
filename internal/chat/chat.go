// Package chat is the boundary to the messaging platform. The core consumes
// only the Client interface; the concrete SDK adapter lives outside this
// repository's scope.
package chat

import "context"

// Message is the bounded shape the ingress adaptor produces from a raw
// platform update.
type Message struct {
	ID               int64
	ChatID           int64
	FromUserID       int64
	FromUsername     string
	Text             string
	ReplyToMessageID int64
	ReplyText        string
}

// SentMessage is what the platform reports back after a send.
type SentMessage struct {
	ID     int64
	ChatID int64
	// FileID is the platform-side media handle, reusable for later sends.
	FileID string
}

// MediaRef addresses media for a send: either a local file path or a
// platform-side file id from an earlier upload.
type MediaRef struct {
	Path   string
	FileID string
}

// Client is the outbound surface the gateway needs. All calls are
// suspendable network I/O and honor ctx.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (*SentMessage, error)
	SendVideo(ctx context.Context, chatID int64, media MediaRef, caption string, replyTo int64) (*SentMessage, error)
	SendAudio(ctx context.Context, chatID int64, media MediaRef, caption string, replyTo int64) (*SentMessage, error)
	EditCaption(ctx context.Context, chatID, messageID int64, caption string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	React(ctx context.Context, chatID, messageID int64, emoji string) error
}

// Source is the inbound surface: the gateway ingress drains Updates until the
// channel closes or ctx is done.
type Source interface {
	Updates(ctx context.Context) (<-chan Message, error)
}
