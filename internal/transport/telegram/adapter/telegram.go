package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

// Config configures the telegram sender.
type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (tests, local bot API servers).
	APIURL string
	// Timeout bounds one Bot API HTTP call, including calls whose caller
	// already gave up on ctx. 0 means 15s.
	Timeout time.Duration
}

// Adapter sends messages through telebot. It never polls for updates: the bot
// is built offline, so construction does no network I/O.
type Adapter struct {
	log logx.Logger
	bot *tele.Bot
}

var _ kit.Sender = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{log: log, bot: b}, nil
}

// chatRecipient passes the configured chat id to the Bot API untouched,
// so both numeric ids and @channel usernames work.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// SendText sends text to a chat. Text longer than one Telegram message is split;
// the returned ref points at the first part.
//
// telebot calls take no context, so each call runs in its own goroutine and
// SendText returns as soon as ctx is done. The abandoned request is still
// bounded by Config.Timeout.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if strings.TrimSpace(to.ChatID) == "" {
		return kit.MessageRef{}, errors.New("telegram chat id is empty")
	}

	chunks := splitText(text, textLimit, opt.ParseMode)
	chat := chatRecipient(strings.TrimSpace(to.ChatID))

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.send(ctx, chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
		if len(chunks) > 1 {
			a.log.Trace("message part sent", logx.Int("part", i+1), logx.Int("parts", len(chunks)))
		}
	}
	return first, nil
}

type sendResult struct {
	msg *tele.Message
	err error
}

func (a *Adapter) send(ctx context.Context, to tele.Recipient, text string, opt *tele.SendOptions) (*tele.Message, error) {
	done := make(chan sendResult, 1)
	go func() {
		msg, err := a.bot.Send(to, text, opt)
		done <- sendResult{msg: msg, err: err}
	}()
	select {
	case <-ctx.Done():
		a.log.Debug("send abandoned", logx.Err(ctx.Err()))
		return nil, ctx.Err()
	case r := <-done:
		return r.msg, r.err
	}
}
