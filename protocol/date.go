package protocol

import (
	"fmt"
	"time"
)

var weekdayAbbr = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
var monthAbbr = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatHTTPDate renders t in the RFC-style format spec.md 6 requires:
// "Day, DD Mon YYYY HH:MM:SS GMT", always in UTC with English abbreviations
// regardless of the host locale.
func FormatHTTPDate(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%s, %02d %s %04d %02d:%02d:%02d GMT",
		weekdayAbbr[u.Weekday()], u.Day(), monthAbbr[u.Month()], u.Year(),
		u.Hour(), u.Minute(), u.Second())
}
