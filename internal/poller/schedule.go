package poller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind tells interval schedules from cron ones.
type ScheduleKind int

const (
	KindInterval ScheduleKind = iota
	KindCron
)

// Schedule decides when the next cycle starts.
//
// Accepted forms:
//   - Go duration: "10m", "1h30m"
//   - HH:MM interval: "00:10" (10 minutes)
//   - "interval:" or "every:" prefix forcing interval parsing
//   - cron (5 fields or descriptor): "*/10 * * * *", "@hourly", "cron:0 9 * * *"
type Schedule struct {
	Kind   ScheduleKind
	Every  time.Duration
	Expr   string
	Source string // "duration" | "hhmm" | "cron"

	cron cron.Schedule
}

var hhmmRe = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule parses raw into a Schedule.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	sc, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf(
			"invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')", raw)
	}
	return sc, nil
}

// MustInterval is a fixed-interval schedule. d must be > 0.
func MustInterval(d time.Duration) Schedule {
	if d <= 0 {
		panic("poller: interval must be > 0")
	}
	return Schedule{Kind: KindInterval, Every: d, Source: "duration"}
}

// Next returns when the cycle after one that finished at now should start.
func (s Schedule) Next(now time.Time) time.Time {
	if s.Kind == KindCron && s.cron != nil {
		return s.cron.Next(now)
	}
	return now.Add(s.Every)
}

func (s Schedule) String() string {
	if s.Kind == KindCron {
		return "cron:" + s.Expr
	}
	return s.Every.String()
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron expression required")
	}
	cs, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Schedule{Kind: KindCron, Expr: expr, Source: "cron", cron: cs}, nil
}

func parseInterval(v string) (Schedule, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Schedule{}, fmt.Errorf("interval required")
	}
	var (
		d   time.Duration
		src string
	)
	if m := hhmmRe.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Schedule{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d, src = time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute, "hhmm"
	} else {
		pd, err := time.ParseDuration(v)
		if err != nil {
			return Schedule{}, fmt.Errorf("invalid interval %q", v)
		}
		d, src = pd, "duration"
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval must be > 0")
	}
	return Schedule{Kind: KindInterval, Every: d, Source: src}, nil
}
