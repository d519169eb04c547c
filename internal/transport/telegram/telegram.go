package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"forumpulse/internal/transport"
	"forumpulse/pkg/logx"
)

type Config struct {
	Token string
	// Timeout bounds each outbound API call. Default 10s.
	Timeout time.Duration
}

// Adapter posts messages to Telegram via telebot. Construction is offline
// (no getMe round-trip) so the orchestrator's pre-flight Ping is the single
// place connectivity is checked.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Ping performs a getMe round-trip. Used as the orchestrator's pre-flight
// collaborator check.
func (a *Adapter) Ping(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { _, err := a.bot.Raw("getMe", nil); done <- err }()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if to.ChatID == 0 {
		return transport.MessageRef{}, errors.New("chat id is required")
	}

	sendOpt := &tele.SendOptions{ThreadID: to.ThreadID}
	if opt != nil {
		sendOpt.ParseMode = opt.ParseMode
		sendOpt.DisableWebPagePreview = opt.DisablePreview
	}

	type result struct {
		msg *tele.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOpt)
		done <- result{msg: m, err: err}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	select {
	case r := <-done:
		if r.err != nil {
			return transport.MessageRef{}, r.err
		}
		ref := transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID}
		if r.msg != nil {
			ref.MessageID = r.msg.ID
		}
		return ref, nil
	case <-ctx.Done():
		// The send may still land; only the caller stops waiting.
		a.log.Warn("telegram send timed out", logx.Int64("chat_id", to.ChatID))
		return transport.MessageRef{}, ctx.Err()
	}
}
