package export

import (
	"encoding/json"
	"fmt"
	"time"

	"owacal/internal/model"
)

// LocalTimeLayout is ISO 8601 without an offset, matching the naive local
// times the events carry.
const LocalTimeLayout = "2006-01-02T15:04:05"

// LocalTime marshals as an offset-free ISO 8601 string and unmarshals into
// time.Local.
type LocalTime struct {
	time.Time
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(LocalTimeLayout))
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(LocalTimeLayout, s, time.Local)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Envelope is the JSON document produced by JSON and posted by deliver.
type Envelope struct {
	Target     *string     `json:"target"`
	FetchedAt  time.Time   `json:"fetched_at"`
	EventCount int         `json:"event_count"`
	Events     []JSONEvent `json:"events"`
}

// JSONEvent is the exported view of an event. The source text is
// deliberately absent.
type JSONEvent struct {
	Title  string    `json:"title"`
	Start  LocalTime `json:"start"`
	End    LocalTime `json:"end"`
	AllDay bool      `json:"all_day"`
}

// NewEnvelope builds the envelope for events. fetchedAt is converted to UTC
// so it serializes with a Z suffix.
func NewEnvelope(events []model.Event, target *string, fetchedAt time.Time) Envelope {
	env := Envelope{
		Target:     target,
		FetchedAt:  fetchedAt.UTC(),
		EventCount: len(events),
		Events:     make([]JSONEvent, 0, len(events)),
	}
	for _, ev := range events {
		env.Events = append(env.Events, JSONEvent{
			Title:  ev.Title,
			Start:  LocalTime{ev.Start},
			End:    LocalTime{ev.End},
			AllDay: ev.AllDay,
		})
	}
	return env
}

// JSON renders the envelope with two-space indentation.
func JSON(events []model.Event, target *string, fetchedAt time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(NewEnvelope(events, target, fetchedAt), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal json: %w", err)
	}
	return data, nil
}

// DecodeJSON parses a document produced by JSON.
func DecodeJSON(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("export: decode json: %w", err)
	}
	return env, nil
}

// ModelEvents converts the envelope back into model events. SourceText is empty
// because the JSON form does not carry it.
func (e Envelope) ModelEvents() []model.Event {
	out := make([]model.Event, 0, len(e.Events))
	for _, je := range e.Events {
		out = append(out, model.Event{
			Title:  je.Title,
			Start:  je.Start.Time,
			End:    je.End.Time,
			AllDay: je.AllDay,
		})
	}
	return out
}
