package console

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/campusd/internal/chat"
	"github.com/fyrsmithlabs/campusd/internal/retrieval"
)

// FormatLatency formats latency in seconds as "X.Xms" or "X.Xs"
func FormatLatency(latencySeconds float64) string {
	if latencySeconds < 1.0 {
		return fmt.Sprintf("%.1fms", latencySeconds*1000)
	}
	return fmt.Sprintf("%.1fs", latencySeconds)
}

// FormatStats summarizes the served index.
func FormatStats(s *retrieval.Stats) string {
	switch {
	case s == nil:
		return "retrieval disabled"
	case s.Absent:
		return "no index loaded"
	default:
		return fmt.Sprintf("%d chunks, dim %d", s.Chunks, s.Dimension)
	}
}

// FormatResponse renders a chat reply as plain text: the answer, then one
// line per attached record.
func FormatResponse(resp *chat.Response) string {
	if resp == nil {
		return ""
	}
	lines := []string{resp.Answer}
	for _, e := range resp.Timetable {
		line := fmt.Sprintf("  %s %s-%s  %s %s", e.DayOfWeek, e.StartTime, e.EndTime, e.CourseCode, e.CourseTitle)
		if e.Room != "" {
			line += " (" + e.Room + ")"
		}
		lines = append(lines, line)
	}
	for _, r := range resp.BusRoutes {
		lines = append(lines, fmt.Sprintf("  %s: %s -> %s  %s-%s  [%s]",
			r.RouteName, r.Origin, r.Destination, r.DepartureTime, r.ArrivalTime, r.DaysOfWeek))
	}
	for _, e := range resp.Events {
		line := fmt.Sprintf("  %s  %s", e.StartDate, e.Title)
		if e.Location != "" {
			line += " @ " + e.Location
		}
		lines = append(lines, line)
	}
	for _, e := range resp.Exams {
		lines = append(lines, fmt.Sprintf("  %s %s-%s  %s %s", e.ExamDate, e.StartTime, e.EndTime, e.CourseCode, e.CourseTitle))
	}
	for _, f := range resp.FAQs {
		lines = append(lines, fmt.Sprintf("  Q: %s\n  A: %s", f.Question, f.Answer))
	}
	return strings.Join(lines, "\n")
}
