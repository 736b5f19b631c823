// Package format renders timestamps and durations for display.
package format

import (
	"fmt"
	"strings"
	"time"
)

// TimeAgo formats how long ago t was, relative to now.
func TimeAgo(t, now time.Time) string {
	seconds := now.Sub(t).Seconds()

	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(int(seconds/60), "minute")
	case seconds < 86400:
		return plural(int(seconds/3600), "hour")
	case seconds < 604800:
		return plural(int(seconds/86400), "day")
	case seconds < 2592000:
		return plural(int(seconds/604800), "week")
	default:
		return plural(int(seconds/2592000), "month")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Duration formats the span between start and end as a compact label
// like "45s", "12m" or "2h 5m".
func Duration(start, end time.Time) string {
	return Span(end.Sub(start))
}

// Span formats an elapsed duration with the same labels as Duration.
func Span(d time.Duration) string {
	total := int(d.Seconds())

	switch {
	case total < 60:
		return fmt.Sprintf("%ds", total)
	case total < 3600:
		return fmt.Sprintf("%dm", total/60)
	default:
		hours := total / 3600
		minutes := (total % 3600) / 60
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
}

// FileList renders a bounded bullet list of paths, marking how many
// entries were omitted.
func FileList(files []string, maxDisplay int) string {
	if len(files) == 0 {
		return "None"
	}

	n := len(files)
	if maxDisplay > 0 && n > maxDisplay {
		n = maxDisplay
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("  - " + files[i])
	}
	if remaining := len(files) - n; remaining > 0 {
		b.WriteString(fmt.Sprintf("\n  ... and %d more", remaining))
	}
	return b.String()
}
