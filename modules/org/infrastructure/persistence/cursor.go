package persistence

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/iota-uz/orgtree/pkg/serrors"
)

var ErrInvalidCursor = serrors.NewError("ORG_CURSOR_INVALID", "pagination cursor is malformed", "")

const (
	cursorTimeLayout      = "2006-01-02 15:04:05"
	cursorTimeMicroLayout = "2006-01-02 15:04:05.999999"
)

// decodeCursor unwraps a base64 pagination cursor into the raw sort-key
// value it carries.
func decodeCursor(raw string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrInvalidCursor
	}
	value := strings.TrimSpace(string(decoded))
	if value == "" {
		return "", ErrInvalidCursor
	}
	return value, nil
}

// decodeTimeCursor unwraps a cursor expected to hold a creation
// timestamp, with or without fractional seconds.
func decodeTimeCursor(raw string) (time.Time, error) {
	value, err := decodeCursor(raw)
	if err != nil {
		return time.Time{}, err
	}
	if t, err := time.Parse(cursorTimeMicroLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(cursorTimeLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidCursor
	}
	return t, nil
}

// EncodeCursor renders the cursor for a row's creation timestamp.
func EncodeCursor(t time.Time) string {
	return base64.StdEncoding.EncodeToString([]byte(t.UTC().Format(cursorTimeMicroLayout)))
}

// EncodeNameCursor renders the cursor for a row's name under name-sorted
// listings.
func EncodeNameCursor(name string) string {
	return base64.StdEncoding.EncodeToString([]byte(name))
}
