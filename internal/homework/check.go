package homework

import (
	"encoding/json"
	"fmt"
	"math"

	"homeworkbot/internal/failure"
)

const (
	KeyHomeworks   = "homeworks"
	KeyCurrentDate = "current_date"
	KeyName        = "homework_name"
	KeyStatus      = "status"
)

// Batch is a validated answer.
type Batch struct {
	Homeworks []any
	// CurrentDate is the server cursor; valid only when HasCursor is set.
	CurrentDate int64
	HasCursor   bool
}

// CheckResponse validates a decoded answer and extracts the homework list.
// An empty list is valid and means nothing changed. It has no side effects.
func CheckResponse(body any) (Batch, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return Batch{}, failure.Shape("", typeName(body))
	}
	raw, ok := m[KeyHomeworks]
	if !ok {
		return Batch{}, failure.MissingKey(KeyHomeworks)
	}
	list, ok := raw.([]any)
	if !ok {
		return Batch{}, failure.Shape(KeyHomeworks, typeName(raw))
	}

	b := Batch{Homeworks: list}
	if cur, ok := m[KeyCurrentDate]; ok && cur != nil {
		ts, ok := asInt64(cur)
		if !ok {
			return Batch{}, failure.Shape(KeyCurrentDate, typeName(cur))
		}
		b.CurrentDate = ts
		b.HasCursor = true
	}
	return b, nil
}

// ParseStatus renders the notification for the most recent homework.
// v is either a single record or a list of records, in which case the first
// (most recent) one is used. Callers filter empty lists out beforehand.
func ParseStatus(v any) (string, error) {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return "", failure.Shape(KeyHomeworks, "empty list")
		}
		v = list[0]
	}
	rec, ok := v.(map[string]any)
	if !ok {
		return "", failure.Shape("homework", typeName(v))
	}

	rawName, ok := rec[KeyName]
	if !ok {
		return "", failure.MissingKey(KeyName)
	}
	name, ok := rawName.(string)
	if !ok {
		return "", failure.Shape(KeyName, typeName(rawName))
	}

	rawStatus, ok := rec[KeyStatus]
	if !ok {
		return "", failure.MissingKey(KeyStatus)
	}
	status, ok := rawStatus.(string)
	if !ok {
		return "", failure.UnknownStatus(fmt.Sprint(rawStatus))
	}
	verdict, ok := Verdict(status)
	if !ok {
		return "", failure.UnknownStatus(status)
	}
	return StatusMessage(name, verdict), nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
