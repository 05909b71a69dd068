// Package parse recovers structured events from the comma-delimited text a
// web calendar renders into aria-labels, e.g.
//
//	Team Sync, 10:00 AM to 11:00 AM, Tuesday, February 3, 2026, Busy
//	Offsite, all day event, Tuesday, February 3, 2026
//
// The grammar is a title followed by independent markers (time range,
// all-day, date). Candidates that do not fit are rejected with a reason
// rather than filled with defaults.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	appLog "owacal/internal/log"
	"owacal/internal/model"
)

// sentinelPrefixes are titles produced by incidental UI text, not events.
var sentinelPrefixes = []string{
	"calendar view",
	"current time",
}

var weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var months = map[string]time.Month{
	"January":   time.January,
	"February":  time.February,
	"March":     time.March,
	"April":     time.April,
	"May":       time.May,
	"June":      time.June,
	"July":      time.July,
	"August":    time.August,
	"September": time.September,
	"October":   time.October,
	"November":  time.November,
	"December":  time.December,
}

// Rendered times use a plain, no-break or narrow no-break space before AM/PM
// depending on browser locale data.
const sp = `[\s\x{00a0}\x{202f}]`

var (
	dateRe = regexp.MustCompile(`^(\w+day),?` + sp + `+(\w+)` + sp + `+(\d{1,2}),?` + sp + `+(\d{4})`)
	timeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})` + sp + `*(AM|PM)` + sp + `+to` + sp + `+(\d{1,2}):(\d{2})` + sp + `*(AM|PM)`)
)

// Parse converts one candidate into an event. Every failure is a
// *RejectError.
func Parse(raw string) (model.Event, error) {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 {
		return model.Event{}, reject(raw, ReasonTooFewSegments)
	}

	title := parts[0]
	if title == "" {
		return model.Event{}, reject(raw, ReasonEmptyTitle)
	}
	if isSentinel(title) {
		return model.Event{}, reject(raw, ReasonSentinel)
	}

	var (
		timePart string
		datePart string
		allDay   bool
	)
	for i := 1; i < len(parts); i++ {
		part := parts[i]
		switch {
		case isTimeRange(part):
			if timePart == "" {
				timePart = part
			}
		case strings.Contains(strings.ToLower(part), "all day"):
			allDay = true
		case startsWithWeekday(part):
			// "Tuesday", "February 3", "2026" arrive as separate segments.
			end := min(i+3, len(parts))
			datePart = strings.Join(parts[i:end], ", ")
		}
		if datePart != "" {
			break
		}
	}
	if datePart == "" {
		return model.Event{}, reject(raw, ReasonNoDate)
	}

	year, month, day, reason := parseDate(datePart)
	if reason != "" {
		return model.Event{}, reject(raw, reason)
	}

	ev := model.Event{
		Title:      title,
		AllDay:     allDay,
		SourceText: raw,
	}

	switch {
	case allDay:
		ev.Start = time.Date(year, month, day, 0, 0, 0, 0, time.Local)
		ev.End = time.Date(year, month, day, 23, 59, 0, 0, time.Local)
	case timePart != "":
		sh, sm, eh, em, ok := parseTimeRange(timePart)
		if !ok {
			return model.Event{}, reject(raw, ReasonBadTime)
		}
		ev.Start = time.Date(year, month, day, sh, sm, 0, 0, time.Local)
		ev.End = time.Date(year, month, day, eh, em, 0, 0, time.Local)
		if ev.End.Before(ev.Start) {
			// "11:00 PM to 12:30 AM" ends on the following day.
			ev.End = ev.End.AddDate(0, 0, 1)
		}
	default:
		return model.Event{}, reject(raw, ReasonNoTime)
	}

	return ev, nil
}

// Result is the outcome of parsing a batch of candidates.
type Result struct {
	Events   []model.Event
	Rejected int
	// Reasons counts rejects per Reason.
	Reasons map[Reason]int
}

// All parses candidates in order. Rejected candidates are counted and
// logged at debug level; they never stop the batch.
func All(candidates []string) Result {
	res := Result{
		Events:  make([]model.Event, 0, len(candidates)),
		Reasons: make(map[Reason]int),
	}
	for _, c := range candidates {
		ev, err := Parse(c)
		if err != nil {
			res.Rejected++
			reason := ReasonOf(err)
			res.Reasons[reason]++
			appLog.Debug("candidate rejected", "reason", reason, "raw", c)
			continue
		}
		res.Events = append(res.Events, ev)
	}
	return res
}

func isSentinel(title string) bool {
	for _, p := range sentinelPrefixes {
		if strings.HasPrefix(title, p) {
			return true
		}
	}
	return false
}

func isTimeRange(part string) bool {
	return strings.Contains(part, " to ") &&
		(strings.Contains(part, "AM") || strings.Contains(part, "PM"))
}

func startsWithWeekday(part string) bool {
	for _, d := range weekdays {
		if strings.HasPrefix(part, d) {
			return true
		}
	}
	return false
}

func parseDate(s string) (year int, month time.Month, day int, reason Reason) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, ReasonBadDate
	}

	month, ok := months[m[2]]
	if !ok {
		return 0, 0, 0, ReasonUnknownMonth
	}
	day, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, 0, 0, ReasonBadDate
	}
	year, err = strconv.Atoi(m[4])
	if err != nil {
		return 0, 0, 0, ReasonBadDate
	}

	// time.Date normalizes February 30 into March; reject instead.
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return 0, 0, 0, ReasonBadDate
	}
	return year, month, day, ""
}

func parseTimeRange(s string) (startH, startM, endH, endM int, ok bool) {
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, 0, 0, false
	}
	if startH, startM, ok = clock(m[1], m[2], m[3]); !ok {
		return 0, 0, 0, 0, false
	}
	if endH, endM, ok = clock(m[4], m[5], m[6]); !ok {
		return 0, 0, 0, 0, false
	}
	return startH, startM, endH, endM, true
}

// clock converts a 12-hour reading to 24-hour hour and minute.
func clock(hour, minute, meridiem string) (int, int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(minute)
	if err != nil {
		return 0, 0, false
	}

	switch {
	case meridiem == "PM" && h != 12:
		h += 12
	case meridiem == "AM" && h == 12:
		h = 0
	}

	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
