package export

import (
	"bufio"
	"io"

	"owacal/internal/model"
)

const (
	textDayLayout   = "Mon Jan 02"
	textStartLayout = "Mon Jan 02 15:04"
	textEndLayout   = "15:04"
)

// WriteText writes one human-readable line per event, in the given order:
//
//	Tue Feb 03 (all day) - Offsite
//	Tue Feb 03 10:00 - 11:00 - Team Sync
func WriteText(w io.Writer, events []model.Event) error {
	bw := bufio.NewWriter(w)
	for _, ev := range events {
		if ev.AllDay {
			bw.WriteString(ev.Start.Format(textDayLayout))
			bw.WriteString(" (all day) - ")
		} else {
			bw.WriteString(ev.Start.Format(textStartLayout))
			bw.WriteString(" - ")
			bw.WriteString(ev.End.Format(textEndLayout))
			bw.WriteString(" - ")
		}
		bw.WriteString(ev.Title)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
