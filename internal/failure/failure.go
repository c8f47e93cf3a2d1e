// Package failure defines the error kinds raised while polling and notifying.
//
// Every error that crosses the poll loop boundary is (or wraps) an *Error, so the
// loop can match on Kind instead of catching everything the same way.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindTransport
	KindHTTPStatus
	KindMalformedBody
	KindShape
	KindMissingKey
	KindUnknownStatus
	KindNotify
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindConfig:        "config",
	KindTransport:     "transport",
	KindHTTPStatus:    "http_status",
	KindMalformedBody: "malformed_body",
	KindShape:         "shape",
	KindMissingKey:    "missing_key",
	KindUnknownStatus: "unknown_status",
	KindNotify:        "notify",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a tagged failure. Only the payload fields relevant to Kind are set.
type Error struct {
	Kind       Kind
	Key        string // missing/shape key, or comma separated env vars for KindConfig
	Value      string // offending value (unknown status, unexpected type)
	StatusCode int    // KindHTTPStatus
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindConfig:
		b.WriteString("missing configuration")
		if e.Key != "" {
			b.WriteString(": ")
			b.WriteString(e.Key)
		}
	case KindTransport:
		b.WriteString("fetch failed")
	case KindHTTPStatus:
		fmt.Fprintf(&b, "unexpected HTTP status %d", e.StatusCode)
	case KindMalformedBody:
		b.WriteString("malformed response body")
	case KindShape:
		b.WriteString("wrong response shape")
		switch {
		case e.Key != "" && e.Value != "":
			fmt.Fprintf(&b, ": %q is %s", e.Key, e.Value)
		case e.Key != "":
			fmt.Fprintf(&b, ": %q", e.Key)
		case e.Value != "":
			fmt.Fprintf(&b, ": got %s", e.Value)
		}
	case KindMissingKey:
		fmt.Fprintf(&b, "missing required key %q", e.Key)
	case KindUnknownStatus:
		fmt.Fprintf(&b, "unknown homework status %q", e.Value)
	case KindNotify:
		b.WriteString("notification failed")
	default:
		b.WriteString("failure")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: KindShape}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Fatal reports whether err must stop the process instead of being retried.
func Fatal(err error) bool { return KindOf(err) == KindConfig }

func Config(vars ...string) error {
	return &Error{Kind: KindConfig, Key: strings.Join(vars, ", ")}
}

func Transport(err error) error { return &Error{Kind: KindTransport, Err: err} }

func HTTPStatus(code int) error { return &Error{Kind: KindHTTPStatus, StatusCode: code} }

func MalformedBody(err error) error { return &Error{Kind: KindMalformedBody, Err: err} }

// Shape reports a value that is not of the expected type. got describes what arrived.
func Shape(key, got string) error { return &Error{Kind: KindShape, Key: key, Value: got} }

func MissingKey(key string) error { return &Error{Kind: KindMissingKey, Key: key} }

func UnknownStatus(status string) error { return &Error{Kind: KindUnknownStatus, Value: status} }

func Notify(err error) error { return &Error{Kind: KindNotify, Err: err} }
