package campus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFilter is returned when a filter holds values no record can match.
var ErrInvalidFilter = errors.New("invalid filter")

// ChatLimit caps the rows the chat router attaches to a reply.
const ChatLimit = 20

// FAQChatLimit caps the FAQ rows attached to FAQ replies.
const FAQChatLimit = 5

// TimetableFilter selects timetable entries. Zero fields match everything;
// a non-nil Semester always filters, so semester 0 matches no rows.
type TimetableFilter struct {
	Program   string
	Semester  *int
	Section   string
	DayOfWeek string
	Limit     int
}

// Validate checks the filter.
func (f TimetableFilter) Validate() error {
	if err := validateSemester(f.Semester); err != nil {
		return err
	}
	if f.DayOfWeek != "" && !ValidWeekdayCode(f.DayOfWeek) {
		return fmt.Errorf("%w: day_of_week must be one of MON..SUN, got %q", ErrInvalidFilter, f.DayOfWeek)
	}
	return validateLimit(f.Limit)
}

// BusFilter selects bus routes.
type BusFilter struct {
	RouteName string
	Limit     int
}

// Validate checks the filter.
func (f BusFilter) Validate() error { return validateLimit(f.Limit) }

// EventFilter selects campus events. With UpcomingOnly set, events whose
// last day is before Today are dropped; a zero Today means the current date.
type EventFilter struct {
	UpcomingOnly bool
	Today        Date
	Limit        int
}

// Validate checks the filter.
func (f EventFilter) Validate() error { return validateLimit(f.Limit) }

func (f EventFilter) today() Date {
	if f.Today.IsZero() {
		return DateOf(time.Now())
	}
	return f.Today
}

// ExamFilter selects exams.
type ExamFilter struct {
	Program  string
	Semester *int
	Limit    int
}

// Validate checks the filter.
func (f ExamFilter) Validate() error {
	if err := validateSemester(f.Semester); err != nil {
		return err
	}
	return validateLimit(f.Limit)
}

func validateSemester(s *int) error {
	if s != nil && *s < 0 {
		return fmt.Errorf("%w: semester must be >= 0, got %d", ErrInvalidFilter, *s)
	}
	return nil
}

// FacultyFilter selects faculty members by department code.
type FacultyFilter struct {
	DepartmentCode string
	Limit          int
}

// Validate checks the filter.
func (f FacultyFilter) Validate() error { return validateLimit(f.Limit) }

// FAQFilter selects FAQs.
type FAQFilter struct {
	Category string
	Limit    int
}

// Validate checks the filter.
func (f FAQFilter) Validate() error { return validateLimit(f.Limit) }

func validateLimit(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: limit must be >= 0, got %d", ErrInvalidFilter, n)
	}
	return nil
}

// Source reads structured campus records. Results are in insertion order;
// a zero Limit returns every match.
type Source interface {
	Timetable(ctx context.Context, f TimetableFilter) ([]TimetableEntry, error)
	BusRoutes(ctx context.Context, f BusFilter) ([]BusRoute, error)
	Events(ctx context.Context, f EventFilter) ([]CampusEvent, error)
	Exams(ctx context.Context, f ExamFilter) ([]ExamSchedule, error)
	Faculty(ctx context.Context, f FacultyFilter) ([]FacultyMember, error)
	FAQs(ctx context.Context, f FAQFilter) ([]FAQ, error)
}

// Sink receives imported records. Added records get their IDs assigned.
type Sink interface {
	// EnsureDepartment returns the department with d.Code, creating it if needed.
	EnsureDepartment(ctx context.Context, d *Department) (*Department, error)
	AddFaculty(ctx context.Context, rows []FacultyMember) error
	AddTimetable(ctx context.Context, rows []TimetableEntry) error
	AddBusRoutes(ctx context.Context, rows []BusRoute) error
	AddEvents(ctx context.Context, rows []CampusEvent) error
	AddExams(ctx context.Context, rows []ExamSchedule) error
	AddFAQs(ctx context.Context, rows []FAQ) error
}
