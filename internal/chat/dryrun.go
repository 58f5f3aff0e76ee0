package chat

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DryRun implements Client without a platform connection: every outbound call
// is logged and succeeds with a synthetic message id. It is the default
// client wired by the gateway binary until a platform SDK adapter is
// configured, and doubles as a manual smoke-test target.
type DryRun struct {
	log    zerolog.Logger
	nextID atomic.Int64
}

func NewDryRun(log zerolog.Logger) *DryRun {
	return &DryRun{log: log.With().Str("component", "chat-dryrun").Logger()}
}

func (c *DryRun) sent(chatID int64) *SentMessage {
	return &SentMessage{ID: c.nextID.Add(1), ChatID: chatID}
}

func (c *DryRun) SendMessage(_ context.Context, chatID int64, text string, replyTo int64) (*SentMessage, error) {
	c.log.Info().Int64("chat_id", chatID).Int64("reply_to", replyTo).Str("text", text).Msg("send message")
	return c.sent(chatID), nil
}

func (c *DryRun) SendVideo(_ context.Context, chatID int64, media MediaRef, caption string, replyTo int64) (*SentMessage, error) {
	c.log.Info().Int64("chat_id", chatID).Str("path", media.Path).Str("file_id", media.FileID).Str("caption", caption).Int64("reply_to", replyTo).Msg("send video")
	return c.sent(chatID), nil
}

func (c *DryRun) SendAudio(_ context.Context, chatID int64, media MediaRef, caption string, replyTo int64) (*SentMessage, error) {
	c.log.Info().Int64("chat_id", chatID).Str("path", media.Path).Str("file_id", media.FileID).Str("caption", caption).Int64("reply_to", replyTo).Msg("send audio")
	return c.sent(chatID), nil
}

func (c *DryRun) EditCaption(_ context.Context, chatID, messageID int64, caption string) error {
	c.log.Info().Int64("chat_id", chatID).Int64("message_id", messageID).Str("caption", caption).Msg("edit caption")
	return nil
}

func (c *DryRun) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	c.log.Info().Int64("chat_id", chatID).Int64("message_id", messageID).Msg("delete message")
	return nil
}

func (c *DryRun) React(_ context.Context, chatID, messageID int64, emoji string) error {
	c.log.Info().Int64("chat_id", chatID).Int64("message_id", messageID).Str("emoji", emoji).Msg("react")
	return nil
}

// IdleSource implements Source with a stream that never produces updates.
// The gateway's egress role still works fully; ingress stays idle until a
// platform SDK adapter replaces this.
type IdleSource struct{}

func (IdleSource) Updates(ctx context.Context) (<-chan Message, error) {
	ch := make(chan Message)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
