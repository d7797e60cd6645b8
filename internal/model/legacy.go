package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// legacyFields maps every field name the old document database used to the
// canonical field it stands for.
var legacyFields = map[string]string{
	"id":             "id",
	"title":          "title",
	"isOpen":         "is_open",
	"isopen":         "is_open",
	"is_open":        "is_open",
	"maxApproved":    "capacity",
	"max_approved":   "capacity",
	"capacity":       "capacity",
	"approvedCount":  "approved_count",
	"approved_count": "approved_count",
	"startAt":        "start_at",
	"start_at":       "start_at",
}

// NormalizeLegacyEvent converts one exported event document into the canonical
// Event shape. It is the only place that knows about the old field spellings.
//
// A document that spells the same field two ways with different values, or
// that carries a field we do not recognise, is rejected.
func NormalizeLegacyEvent(doc map[string]any) (*Event, error) {
	canon := make(map[string]any, len(doc))
	source := make(map[string]string, len(doc))

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		field, ok := legacyFields[k]
		if !ok {
			return nil, NewValidationError(k, "is not a recognised event field")
		}
		v := doc[k]
		if prev, seen := canon[field]; seen {
			if !sameJSON(prev, v) {
				return nil, NewValidationError(field, fmt.Sprintf("has conflicting values in %q and %q", source[field], k))
			}
			continue
		}
		canon[field] = v
		source[field] = k
	}

	e := &Event{}
	if v, ok := canon["id"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, NewValidationError("id", "must be a string")
		}
		e.ID = strings.TrimSpace(s)
	}
	if v, ok := canon["title"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, NewValidationError("title", "must be a string")
		}
		e.Title = strings.TrimSpace(s)
	}
	if e.Title == "" {
		e.Title = "Untitled"
	}
	if v, ok := canon["is_open"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, NewValidationError("is_open", "must be a boolean")
		}
		e.IsOpen = b
	}
	var err error
	if e.Capacity, err = legacyCount(canon, "capacity"); err != nil {
		return nil, err
	}
	if e.ApprovedCount, err = legacyCount(canon, "approved_count"); err != nil {
		return nil, err
	}
	if e.Capacity > 0 && e.ApprovedCount > e.Capacity {
		return nil, NewValidationError("approved_count", "exceeds capacity")
	}
	if v, ok := canon["start_at"]; ok && v != nil {
		t, err := legacyTime(v)
		if err != nil {
			return nil, err
		}
		e.StartAt = &t
	}
	return e, nil
}

func legacyCount(canon map[string]any, field string) (int, error) {
	v, ok := canon[field]
	if !ok || v == nil {
		return 0, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, NewValidationError(field, "must be a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, NewValidationError(field, "must be a number")
		}
		f = float64(parsed)
	default:
		return 0, NewValidationError(field, "must be a number")
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, NewValidationError(field, "must be a non-negative whole number")
	}
	return int(f), nil
}

// legacyTime accepts RFC 3339 strings and exported timestamp objects of the
// form {"seconds": n, "nanoseconds": n} (optionally underscore-prefixed).
func legacyTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(t))
		if err != nil {
			return time.Time{}, NewValidationError("start_at", "must be an RFC 3339 timestamp")
		}
		return parsed.UTC(), nil
	case map[string]any:
		sec, ok := firstNumber(t, "seconds", "_seconds")
		if !ok {
			return time.Time{}, NewValidationError("start_at", "timestamp object has no seconds")
		}
		nsec, _ := firstNumber(t, "nanoseconds", "_nanoseconds")
		return time.Unix(int64(sec), int64(nsec)).UTC(), nil
	}
	return time.Time{}, NewValidationError("start_at", "must be a timestamp")
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}
