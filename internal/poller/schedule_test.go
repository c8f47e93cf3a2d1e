package poller

import (
	"testing"
	"time"
)

func TestParseScheduleForms(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		kind   ScheduleKind
		source string
		every  time.Duration
	}{
		{raw: "10m", kind: KindInterval, source: "duration", every: 10 * time.Minute},
		{raw: "00:10", kind: KindInterval, source: "hhmm", every: 10 * time.Minute},
		{raw: "every:1h", kind: KindInterval, source: "duration", every: time.Hour},
		{raw: "interval:01:30", kind: KindInterval, source: "hhmm", every: 90 * time.Minute},
		{raw: "*/10 * * * *", kind: KindCron, source: "cron"},
		{raw: "@hourly", kind: KindCron, source: "cron"},
		{raw: "cron:0 9 * * *", kind: KindCron, source: "cron"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Source != tt.source {
				t.Fatalf("got kind=%v source=%s", got.Kind, got.Source)
			}
			if tt.kind == KindInterval && got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "soon", "0s", "-5m", "00:75", "cron:", "cron:not a cron"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestScheduleNext(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 3, 0, 0, time.UTC)

	iv, _ := ParseSchedule("10m")
	if got := iv.Next(now); !got.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("interval Next = %v", got)
	}

	cr, _ := ParseSchedule("*/10 * * * *")
	want := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)
	if got := cr.Next(now); !got.Equal(want) {
		t.Fatalf("cron Next = %v, want %v", got, want)
	}
}
