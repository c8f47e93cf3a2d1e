package poller

import (
	"context"
	"sync/atomic"
	"time"

	"homeworkbot/internal/homework"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/storage"
	logx "homeworkbot/pkg/logx"
)

// Sink delivers one notification. *notifier.Notifier satisfies it.
type Sink interface {
	Notify(ctx context.Context, msg notifier.Notification) error
}

// CycleReport describes what one cycle did.
type CycleReport struct {
	Window     homework.Window // window the request used
	Next       homework.Window // window for the next request
	Records    int
	Message    string // status message built this cycle, if any
	Notified   bool   // status message delivered
	Duplicate  bool   // status message equal to the last one sent
	Err        error  // cycle failure, nil on success
	Diagnostic bool   // diagnostic delivered for Err
}

// Options configures a Poller.
type Options struct {
	Fetcher  homework.Fetcher
	Sink     Sink
	Log      logx.Logger
	Schedule Schedule
	// FromDate is the initial window; 0 means now.
	FromDate int64
	// Heartbeat runs after every cycle (watchdog ping).
	Heartbeat func()
}

// Poller owns the loop state. Run it from a single goroutine.
type Poller struct {
	fetch     homework.Fetcher
	sink      Sink
	log       logx.Logger
	heartbeat func()

	schedule atomic.Pointer[Schedule]

	window         homework.Window
	lastStatus     string
	lastDiagnostic string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opt Options) *Poller {
	log := opt.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	sched := opt.Schedule
	if sched.Kind == KindInterval && sched.Every <= 0 {
		sched = MustInterval(10 * time.Minute)
	}
	p := &Poller{
		fetch:     opt.Fetcher,
		sink:      opt.Sink,
		log:       log.With(logx.String("comp", "poller")),
		heartbeat: opt.Heartbeat,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	p.schedule.Store(&sched)
	p.window.FromDate = opt.FromDate
	if p.window.FromDate <= 0 {
		p.window.FromDate = p.now().Unix()
	}
	return p
}

// SetSchedule replaces the schedule; it takes effect after the current sleep.
func (p *Poller) SetSchedule(s Schedule) {
	p.schedule.Store(&s)
}

func (p *Poller) Schedule() Schedule { return *p.schedule.Load() }

// Window returns the window the next request will use.
func (p *Poller) Window() homework.Window { return p.window }

// Run loops until ctx is cancelled. Cycle failures never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller started",
		logx.Int64("from_date", p.window.FromDate),
		logx.String("schedule", p.Schedule().String()),
	)
	for {
		if ctx.Err() != nil {
			return nil
		}
		p.RunCycle(ctx)
		if p.heartbeat != nil {
			p.heartbeat()
		}

		now := p.now()
		wait := p.Schedule().Next(now).Sub(now)
		if err := p.sleep(ctx, wait); err != nil {
			p.log.Info("poller stopped")
			return nil
		}
	}
}

// RunCycle performs one fetch/validate/notify pass. It never panics on API or delivery errors.
func (p *Poller) RunCycle(ctx context.Context) CycleReport {
	rep := CycleReport{Window: p.window}
	defer func() { rep.Next = p.window }()

	err := p.cycle(ctx, &rep)
	if err == nil {
		return rep
	}
	if ctx.Err() != nil {
		rep.Err = ctx.Err()
		return rep
	}

	rep.Err = err
	msg := homework.DiagnosticMessage(err)
	p.log.Error(msg, logx.Err(err))
	if msg == p.lastDiagnostic {
		p.log.Debug("diagnostic already sent")
		return rep
	}
	if p.sink.Notify(ctx, notifier.Notification{Kind: storage.KindDiagnostic, Text: msg}) == nil {
		p.lastDiagnostic = msg
		rep.Diagnostic = true
	}
	return rep
}

func (p *Poller) cycle(ctx context.Context, rep *CycleReport) error {
	body, err := homework.Get(ctx, p.fetch, p.window)
	if err != nil {
		return err
	}
	batch, err := homework.CheckResponse(body)
	if err != nil {
		return err
	}
	rep.Records = len(batch.Homeworks)

	if len(batch.Homeworks) == 0 {
		p.log.Debug("no change: homework list is empty")
		p.advance(batch)
		return nil
	}

	msg, err := homework.ParseStatus(batch.Homeworks)
	if err != nil {
		return err
	}
	rep.Message = msg

	if msg == p.lastStatus {
		rep.Duplicate = true
		p.log.Debug("status unchanged", logx.String("message", msg))
		p.advance(batch)
		return nil
	}

	if err := p.sink.Notify(ctx, notifier.Notification{Kind: storage.KindStatus, Text: msg}); err != nil {
		// Keep the window so the record comes back next cycle.
		return nil
	}
	p.lastStatus = msg
	rep.Notified = true
	p.advance(batch)
	return nil
}

func (p *Poller) advance(b homework.Batch) {
	if !b.HasCursor {
		return
	}
	if b.CurrentDate != p.window.FromDate {
		p.log.Debug("poll window advanced",
			logx.Int64("from", p.window.FromDate),
			logx.Int64("to", b.CurrentDate),
		)
	}
	p.window.FromDate = b.CurrentDate
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
