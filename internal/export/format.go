// Package export serializes parsed events as plain text, iCalendar or a JSON
// envelope. All encoders are pure functions of their inputs; the current time
// is always passed in.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"owacal/internal/model"
)

// Format selects an encoder. It implements pflag.Value so it can be bound
// directly to a command-line flag.
type Format string

const (
	FormatText Format = "text"
	FormatICal Format = "ical"
	FormatJSON Format = "json"
)

// ParseFormat accepts the format names case-insensitively; "ics" is an alias
// for ical.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "ical", "ics":
		return FormatICal, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("export: unknown format %q (want text, ical or json)", s)
}

func (f Format) String() string { return string(f) }

func (f *Format) Set(s string) error {
	v, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f Format) Type() string { return "format" }

// ContentType is the HTTP media type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatICal:
		return "text/calendar; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render encodes a snapshot in the given format.
func Render(f Format, snap model.Snapshot) ([]byte, error) {
	switch f {
	case FormatText:
		var buf bytes.Buffer
		if err := WriteText(&buf, snap.Events); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatICal:
		return []byte(ICal(snap.Events, snap.FetchedAt)), nil
	case FormatJSON:
		return JSON(snap.Events, snap.Target, snap.FetchedAt)
	}
	return nil, fmt.Errorf("export: unknown format %q", string(f))
}
