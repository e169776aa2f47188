// Package campus holds the structured campus records served by the chat
// fast paths and list endpoints: timetables, bus routes, events, exams,
// the faculty directory and FAQs.
//
// Records are read through a Source. MemorySource keeps them in process and
// BunSource reads them from Postgres. Both also implement Sink, which the CSV
// and workbook importers write to.
package campus

import "github.com/uptrace/bun"

// Department groups faculty members.
type Department struct {
	bun.BaseModel `bun:"table:departments,alias:dep"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`
	Code string `bun:"code,notnull,unique" json:"code"`
}

// FacultyMember is one entry of the faculty directory.
type FacultyMember struct {
	bun.BaseModel `bun:"table:faculty_members,alias:fm"`

	ID           int64       `bun:"id,pk,autoincrement" json:"id"`
	Name         string      `bun:"name,notnull" json:"name"`
	Email        string      `bun:"email,nullzero,unique" json:"email,omitempty"`
	Phone        string      `bun:"phone,nullzero" json:"phone,omitempty"`
	Room         string      `bun:"room,nullzero" json:"room,omitempty"`
	Designation  string      `bun:"designation,nullzero" json:"designation,omitempty"`
	DepartmentID int64       `bun:"department_id,nullzero" json:"-"`
	Department   *Department `bun:"rel:belongs-to,join:department_id=id" json:"department,omitempty"`
}

// TimetableEntry is one weekly class slot.
type TimetableEntry struct {
	bun.BaseModel `bun:"table:timetable_entries,alias:tt"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Program     string `bun:"program,notnull" json:"program"`
	Semester    int    `bun:"semester,notnull" json:"semester"`
	Section     string `bun:"section,notnull" json:"section"`
	DayOfWeek   string `bun:"day_of_week,notnull" json:"day_of_week"`
	StartTime   Clock  `bun:"start_time,type:time,notnull" json:"start_time"`
	EndTime     Clock  `bun:"end_time,type:time,notnull" json:"end_time"`
	CourseCode  string `bun:"course_code,notnull" json:"course_code"`
	CourseTitle string `bun:"course_title,notnull" json:"course_title"`
	Room        string `bun:"room,nullzero" json:"room,omitempty"`
	FacultyName string `bun:"faculty_name,nullzero" json:"faculty_name,omitempty"`
}

// BusRoute is one scheduled shuttle run.
type BusRoute struct {
	bun.BaseModel `bun:"table:bus_routes,alias:br"`

	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	RouteName     string `bun:"route_name,notnull" json:"route_name"`
	Origin        string `bun:"origin,notnull" json:"origin"`
	Destination   string `bun:"destination,notnull" json:"destination"`
	DepartureTime Clock  `bun:"departure_time,type:time,notnull" json:"departure_time"`
	ArrivalTime   Clock  `bun:"arrival_time,type:time,notnull" json:"arrival_time"`
	// DaysOfWeek is free text such as "MON-FRI" or "SAT".
	DaysOfWeek    string `bun:"days_of_week,notnull" json:"days_of_week"`
}

// CampusEvent is an event or notice with a date range.
type CampusEvent struct {
	bun.BaseModel `bun:"table:campus_events,alias:ev"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Title       string `bun:"title,notnull" json:"title"`
	Description string `bun:"description,nullzero" json:"description,omitempty"`
	Location    string `bun:"location,nullzero" json:"location,omitempty"`
	StartDate   Date   `bun:"start_date,type:date,notnull" json:"start_date"`
	EndDate     Date   `bun:"end_date,type:date,nullzero" json:"end_date"`
	IsAllDay    bool   `bun:"is_all_day,notnull,default:false" json:"is_all_day"`
}

// LastDay is the end date, or the start date for single-day events.
func (e CampusEvent) LastDay() Date {
	if e.EndDate.IsZero() {
		return e.StartDate
	}
	return e.EndDate
}

// ExamSchedule is one scheduled exam.
type ExamSchedule struct {
	bun.BaseModel `bun:"table:exam_schedules,alias:ex"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Program     string `bun:"program,notnull" json:"program"`
	Semester    int    `bun:"semester,notnull" json:"semester"`
	CourseCode  string `bun:"course_code,notnull" json:"course_code"`
	CourseTitle string `bun:"course_title,notnull" json:"course_title"`
	ExamDate    Date   `bun:"exam_date,type:date,notnull" json:"exam_date"`
	StartTime   Clock  `bun:"start_time,type:time,notnull" json:"start_time"`
	EndTime     Clock  `bun:"end_time,type:time,notnull" json:"end_time"`
	Room        string `bun:"room,nullzero" json:"room,omitempty"`
}

// FAQ is a curated question and answer.
type FAQ struct {
	bun.BaseModel `bun:"table:faqs,alias:faq"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Question string `bun:"question,notnull" json:"question"`
	Answer   string `bun:"answer,notnull" json:"answer"`
	Category string `bun:"category,nullzero" json:"category,omitempty"`
}

// models lists every table in creation order.
var models = []any{
	(*Department)(nil),
	(*FacultyMember)(nil),
	(*TimetableEntry)(nil),
	(*BusRoute)(nil),
	(*CampusEvent)(nil),
	(*ExamSchedule)(nil),
	(*FAQ)(nil),
}
