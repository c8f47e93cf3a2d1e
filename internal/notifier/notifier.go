package notifier

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"homeworkbot/internal/failure"
	"homeworkbot/internal/storage"
	"homeworkbot/internal/transport"
	logx "homeworkbot/pkg/logx"
)

var ErrEmptyText = errors.New("empty notification text")

// Notifier sends texts to a single chat. It is safe for concurrent use.
type Notifier struct {
	sender transport.Sender
	target transport.ChatTarget
	log    logx.Logger
	audit  storage.Store

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a notifier for chatID. audit may be nil.
func New(cfg Config, sender transport.Sender, chatID string, log logx.Logger, audit storage.Store) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{
		sender: sender,
		target: transport.ChatTarget{ChatID: chatID},
		log:    log.With(logx.String("comp", "notifier")),
		audit:  audit,
		sleep:  sleepCtx,
	}
	n.applyLocked(cfg)
	return n
}

// Apply swaps delivery settings. In-flight sends keep the old limiter.
func (n *Notifier) Apply(cfg Config) {
	n.mu.Lock()
	n.applyLocked(cfg)
	n.mu.Unlock()
}

func (n *Notifier) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	n.cfg = cfg
	n.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Notify delivers msg and reports whether it reached the chat.
// Failures are logged here and returned as failure.KindNotify; callers must not crash on them.
func (n *Notifier) Notify(ctx context.Context, msg Notification) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return failure.Notify(ErrEmptyText)
	}

	n.mu.Lock()
	cfg := n.cfg
	lim := n.limiter
	n.mu.Unlock()

	maxAttempts := 1 + cfg.RetryMax
	started := time.Now()

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		if err := lim.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := n.sender.SendText(callCtx, n.target, msg.Text, nil)
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		n.log.Debug("send attempt failed",
			logx.Int("attempt", attempt),
			logx.Int("max", maxAttempts),
			logx.Err(err),
		)
		if attempt >= maxAttempts || ctx.Err() != nil {
			break
		}
		// The request may have reached Telegram before the deadline hit; a retry could post twice.
		if errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if err := n.sleep(ctx, retryDelay(cfg, attempt)); err != nil {
			lastErr = err
			break
		}
	}

	n.record(ctx, msg, attempts, time.Since(started), lastErr)

	if lastErr != nil {
		n.log.Error("failed to send message",
			logx.String("kind", msg.Kind),
			logx.Int("attempts", attempts),
			logx.Err(lastErr),
		)
		return failure.Notify(lastErr)
	}
	n.log.Debug("message sent", logx.String("kind", msg.Kind), logx.String("text", msg.Text))
	return nil
}

func (n *Notifier) record(ctx context.Context, msg Notification, attempts int, took time.Duration, sendErr error) {
	now := time.Now()
	if sendErr == nil {
		n.hmu.Lock()
		n.history = append(n.history, HistoryItem{At: now, Kind: msg.Kind, Text: msg.Text})
		if len(n.history) > historyMax {
			n.history = append([]HistoryItem(nil), n.history[len(n.history)-historyMax:]...)
		}
		n.hmu.Unlock()
	}

	if n.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:       now,
		ChatID:   n.target.ChatID,
		Kind:     msg.Kind,
		Text:     msg.Text,
		OK:       sendErr == nil,
		Attempts: attempts,
		TookMS:   took.Milliseconds(),
	}
	if sendErr != nil {
		e.Error = sendErr.Error()
	}
	// The audit write must not be cut short by the caller's shutdown.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := n.audit.AppendAudit(actx, e); err != nil {
		n.log.Warn("audit append failed", logx.Err(err))
	}
}

// History returns a copy of recently delivered texts.
func (n *Notifier) History() []HistoryItem {
	n.hmu.Lock()
	defer n.hmu.Unlock()
	return append([]HistoryItem(nil), n.history...)
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1; the delay is for the NEXT attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
