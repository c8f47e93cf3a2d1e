package notifier

import "time"

// Config controls delivery. Zero values fall back to defaults in Apply.
type Config struct {
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

// Notification is one outbound text. Kind is recorded in the audit trail only.
type Notification struct {
	Kind string
	Text string
}

// HistoryItem is a recently delivered text, newest last.
type HistoryItem struct {
	At   time.Time
	Kind string
	Text string
}

const historyMax = 50
