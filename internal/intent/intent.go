// Package intent classifies chat messages with an ordered keyword table.
package intent

import "strings"

// Intent labels what a chat message asks about.
type Intent string

const (
	Timetable   Intent = "timetable_query"
	BusSchedule Intent = "bus_schedule_query"
	Events      Intent = "events_query"
	Exams       Intent = "exam_schedule_query"
	Faculty     Intent = "faculty_directory_query"
	FAQ         Intent = "faq_query"
	General     Intent = "general_query"
)

// String implements fmt.Stringer.
func (i Intent) String() string {
	return string(i)
}

// Rule maps any of its keywords, found as a substring of the lowercased
// message, to an intent.
type Rule struct {
	Keywords []string
	Intent   Intent
}

// Matches reports whether lowered contains any keyword. lowered must already
// be lowercased.
func (r Rule) Matches(lowered string) bool {
	for _, k := range r.Keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// DefaultRules is the built-in table. Rules are evaluated in order and the
// first match wins, so "exam schedule" is a timetable query.
var DefaultRules = []Rule{
	{Keywords: []string{"timetable", "class time", "schedule"}, Intent: Timetable},
	{Keywords: []string{"bus", "shuttle"}, Intent: BusSchedule},
	{Keywords: []string{"event", "fest", "hackathon"}, Intent: Events},
	{Keywords: []string{"exam", "midterm", "final"}, Intent: Exams},
	{Keywords: []string{"faculty", "professor", "teacher", "hod"}, Intent: Faculty},
	{Keywords: []string{"faq", "how do i", "where can i"}, Intent: FAQ},
}

// Classifier evaluates an ordered rule table.
// Safe for concurrent use; rules are never modified after construction.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules. Nil rules select DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the intent of the first matching rule, or General.
func (c *Classifier) Classify(message string) Intent {
	lowered := strings.ToLower(message)
	for _, r := range c.rules {
		if r.Matches(lowered) {
			return r.Intent
		}
	}
	return General
}
