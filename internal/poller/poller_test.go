package poller

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"homeworkbot/internal/failure"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/storage"
	logx "homeworkbot/pkg/logx"
)

type scriptedFetcher struct {
	bodies []string
	errs   []error
	calls  []homework.Window
}

func (f *scriptedFetcher) Fetch(_ context.Context, w homework.Window) ([]byte, error) {
	i := len(f.calls)
	f.calls = append(f.calls, w)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.bodies) {
		i = len(f.bodies) - 1
	}
	return []byte(f.bodies[i]), nil
}

type recordingSink struct {
	sent []notifier.Notification
	fail bool
}

func (s *recordingSink) Notify(_ context.Context, msg notifier.Notification) error {
	if s.fail {
		return failure.Notify(errors.New("telegram down"))
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestPoller(f homework.Fetcher, s Sink) *Poller {
	return New(Options{Fetcher: f, Sink: s, Schedule: MustInterval(time.Minute), FromDate: 100})
}

const approved = `{"homeworks":[{"homework_name":"X","status":"approved"}],"current_date":200}`

func TestIdenticalStatusSentOnce(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{approved, approved}}
	s := &recordingSink{}
	p := newTestPoller(f, s)

	first := p.RunCycle(context.Background())
	second := p.RunCycle(context.Background())

	if len(s.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(s.sent))
	}
	if !first.Notified || !second.Duplicate || second.Notified {
		t.Fatalf("unexpected reports %+v / %+v", first, second)
	}
	want := `Изменился статус проверки работы "X". Работа проверена: ревьюеру всё понравилось. Ура!`
	if s.sent[0].Text != want || s.sent[0].Kind != storage.KindStatus {
		t.Fatalf("unexpected notification %+v", s.sent[0])
	}
}

func TestStatusChangeIsSent(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{
		`{"homeworks":[{"homework_name":"X","status":"reviewing"}],"current_date":200}`,
		`{"homeworks":[{"homework_name":"X","status":"approved"}],"current_date":300}`,
	}}
	s := &recordingSink{}
	p := newTestPoller(f, s)
	p.RunCycle(context.Background())
	p.RunCycle(context.Background())
	if len(s.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(s.sent))
	}
}

func TestEmptyListSendsNothing(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{`{"homeworks":[],"current_date":150}`}}
	s := &recordingSink{}
	p := newTestPoller(f, s)

	rep := p.RunCycle(context.Background())
	if rep.Err != nil || len(s.sent) != 0 {
		t.Fatalf("expected quiet cycle, got %+v sent=%v", rep, s.sent)
	}
	if p.Window().FromDate != 150 {
		t.Fatalf("window = %d, want 150", p.Window().FromDate)
	}
}

func TestEmptyListLogsNoChange(t *testing.T) {
	var buf bytes.Buffer
	f := &scriptedFetcher{bodies: []string{`{"homeworks":[],"current_date":150}`}}
	p := New(Options{
		Fetcher:  f,
		Sink:     &recordingSink{},
		Log:      logx.NewWriter(&buf, "debug"),
		Schedule: MustInterval(time.Minute),
		FromDate: 100,
	})

	p.RunCycle(context.Background())
	if !strings.Contains(buf.String(), "no change") {
		t.Fatalf("expected a no-change debug line, got %q", buf.String())
	}
}

func TestMissingHomeworksReportsDiagnosticOnly(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{`{"current_date":1}`}}
	s := &recordingSink{}
	p := newTestPoller(f, s)

	rep := p.RunCycle(context.Background())
	if failure.KindOf(rep.Err) != failure.KindMissingKey {
		t.Fatalf("expected missing key, got %v", rep.Err)
	}
	if len(s.sent) != 1 || s.sent[0].Kind != storage.KindDiagnostic {
		t.Fatalf("expected one diagnostic, got %+v", s.sent)
	}
	if !strings.HasPrefix(s.sent[0].Text, "Сбой в работе программы: ") || !strings.Contains(s.sent[0].Text, "homeworks") {
		t.Fatalf("unexpected diagnostic %q", s.sent[0].Text)
	}
	if p.Window().FromDate != 100 {
		t.Fatalf("window must not move on failure, got %d", p.Window().FromDate)
	}
}

func TestRepeatedFailureSendsOneDiagnostic(t *testing.T) {
	down := failure.HTTPStatus(503)
	f := &scriptedFetcher{bodies: []string{approved}, errs: []error{down, down, down}}
	s := &recordingSink{}
	p := newTestPoller(f, s)

	for i := 0; i < 3; i++ {
		rep := p.RunCycle(context.Background())
		if rep.Err == nil {
			t.Fatalf("cycle %d: expected error", i)
		}
	}
	if len(s.sent) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d: %+v", len(s.sent), s.sent)
	}
	if !strings.Contains(s.sent[0].Text, "503") {
		t.Fatalf("diagnostic should mention status, got %q", s.sent[0].Text)
	}

	// A different failure is reported.
	f.errs = append(f.errs, failure.Transport(errors.New("connection refused")))
	p.RunCycle(context.Background())
	if len(s.sent) != 2 {
		t.Fatalf("expected new diagnostic, got %d", len(s.sent))
	}
}

func TestWindowAdvancesToServerCursor(t *testing.T) {
	const t0, t1 = 1700000000, 1700000600
	f := &scriptedFetcher{bodies: []string{
		`{"homeworks":[{"homework_name":"X","status":"reviewing"}],"current_date":` + strconv.Itoa(t1) + `}`,
		`{"homeworks":[]}`,
	}}
	p := New(Options{Fetcher: f, Sink: &recordingSink{}, Schedule: MustInterval(time.Minute), FromDate: t0})

	p.RunCycle(context.Background())
	rep := p.RunCycle(context.Background())

	if f.calls[0].FromDate != t0 || f.calls[1].FromDate != t1 {
		t.Fatalf("request windows = %+v, want %d then %d", f.calls, t0, t1)
	}
	// No cursor in the second response: keep the old one.
	if rep.Next.FromDate != t1 {
		t.Fatalf("next window = %d, want %d", rep.Next.FromDate, t1)
	}
}

func TestNotifyFailureDoesNotStopOrAdvance(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{approved, approved}}
	s := &recordingSink{fail: true}
	p := newTestPoller(f, s)

	rep := p.RunCycle(context.Background())
	if rep.Err != nil || rep.Notified {
		t.Fatalf("unexpected report %+v", rep)
	}
	if p.Window().FromDate != 100 {
		t.Fatalf("window advanced despite failed delivery: %d", p.Window().FromDate)
	}

	s.fail = false
	rep = p.RunCycle(context.Background())
	if !rep.Notified || len(s.sent) != 1 {
		t.Fatalf("status should be delivered on retry, got %+v", rep)
	}
	if p.Window().FromDate != 200 {
		t.Fatalf("window = %d, want 200", p.Window().FromDate)
	}
}

func TestRunSleepsAfterEveryCycle(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{approved}, errs: []error{failure.HTTPStatus(500)}}
	s := &recordingSink{}
	p := newTestPoller(f, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		slept []time.Duration
		beats int
	)
	p.heartbeat = func() { beats++ }
	p.now = func() time.Time { return time.Unix(1000, 0) }
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 3 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.calls) != 3 || len(slept) != 3 || beats != 3 {
		t.Fatalf("calls=%d sleeps=%d beats=%d, want 3 each", len(f.calls), len(slept), beats)
	}
	for _, d := range slept {
		if d != time.Minute {
			t.Fatalf("sleep = %v, want 1m", d)
		}
	}
}

func TestSetScheduleAppliesToNextSleep(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{`{"homeworks":[]}`}}
	p := newTestPoller(f, &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		if len(slept) == 1 {
			p.SetSchedule(MustInterval(5 * time.Second))
			return nil
		}
		return context.Canceled
	}
	_ = p.Run(ctx)
	if len(slept) != 2 || slept[1] != 5*time.Second {
		t.Fatalf("sleeps = %v", slept)
	}
}

func TestCancelledCycleSendsNoDiagnostic(t *testing.T) {
	f := &scriptedFetcher{bodies: []string{approved}, errs: []error{failure.Transport(context.Canceled)}}
	s := &recordingSink{}
	p := newTestPoller(f, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.RunCycle(ctx)
	if len(s.sent) != 0 {
		t.Fatalf("no diagnostic expected during shutdown, got %+v", s.sent)
	}
}
