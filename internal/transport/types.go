package transport

import "context"

// ChatTarget identifies a destination chat (optionally a forum topic thread).
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef identifies a message the adapter has sent.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the outbound chat contract. forumpulse only posts (reports and
// log fanout); it never consumes inbound updates.
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)

	// Ping verifies the chat API is reachable with the configured credentials.
	Ping(ctx context.Context) error
}
