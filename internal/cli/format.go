package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fpang/tripstory/internal/journey"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// WriteRouteSummary prints one line per stop with its coordinates and stay.
func WriteRouteSummary(w io.Writer, r *journey.Route) {
	if r == nil {
		fmt.Fprintln(w, "(no route)")
		return
	}
	fmt.Fprintf(w, "%s -> %s, %d stops\n", r.Start, r.End, len(r.Waypoints))
	for i, wp := range r.Waypoints {
		fmt.Fprintf(w, "  %d. %-16s %9.5f,%10.5f  stay %s\n",
			i+1, wp.Name, wp.Lat, wp.Lng, FormatDurationShort(time.Duration(wp.Stay)*time.Second))
	}
}
