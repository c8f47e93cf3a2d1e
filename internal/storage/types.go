package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. Driver "" or "none" disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry kinds.
const (
	KindStatus     = "status"
	KindDiagnostic = "diagnostic"
)

// AuditEntry records one delivery attempt sequence for a notification.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time `json:"at"`
	ChatID   string    `json:"chat_id"`
	Kind     string    `json:"kind"`
	Text     string    `json:"text"`
	OK       bool      `json:"ok"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}
