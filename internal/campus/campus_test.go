package campus

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/xuri/excelize/v2"
)

func TestDate(t *testing.T) {
	d, err := ParseDate("2025-03-15")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", d.String())

	raw, err := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-03-15","z":null}`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-15"`), &back))
	assert.Equal(t, d, back)

	_, err = ParseDate("15/03/2025")
	assert.Error(t, err)

	t.Run("scan", func(t *testing.T) {
		var s Date
		require.NoError(t, s.Scan("2024-12-01T00:00:00Z"))
		assert.Equal(t, "2024-12-01", s.String())
		require.NoError(t, s.Scan([]byte("2024-12-02")))
		assert.Equal(t, "2024-12-02", s.String())
		require.NoError(t, s.Scan(time.Date(2024, 12, 3, 15, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2024-12-03", s.String())
		require.NoError(t, s.Scan(nil))
		assert.True(t, s.IsZero())
		assert.Error(t, s.Scan(42))
	})

	t.Run("value", func(t *testing.T) {
		v, err := Date{}.Value()
		require.NoError(t, err)
		assert.Nil(t, v)
		v, err = d.Value()
		require.NoError(t, err)
		assert.Equal(t, "2025-03-15", v)
	})
}

func TestClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", "09:00:00", false},
		{"9:30", "09:30:00", false},
		{"13:45:10", "13:45:10", false},
		{" 08:15 ", "08:15:00", false},
		{"25:00", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var c Clock
	require.NoError(t, c.Scan("10:30:00.000000"))
	assert.Equal(t, Clock("10:30:00"), c)
}

func TestWeekdayCode(t *testing.T) {
	monday := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "MON", WeekdayCode(monday))
	assert.Equal(t, "SUN", WeekdayCode(monday.AddDate(0, 0, 6)))
	assert.True(t, ValidWeekdayCode("WED"))
	assert.False(t, ValidWeekdayCode("wed"))
}

func TestFilters_Validate(t *testing.T) {
	assert.ErrorIs(t, TimetableFilter{Semester: intp(-1)}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, TimetableFilter{DayOfWeek: "MONDAY"}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, BusFilter{Limit: -1}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, ExamFilter{Semester: intp(-2)}.Validate(), ErrInvalidFilter)
	assert.NoError(t, ExamFilter{Semester: intp(0)}.Validate())
	assert.NoError(t, TimetableFilter{DayOfWeek: "FRI", Limit: 20}.Validate())
	assert.NoError(t, EventFilter{}.Validate())
}

func intp(n int) *int { return &n }

func seeded(t *testing.T) *MemorySource {
	t.Helper()
	ctx := context.Background()
	m := NewMemorySource()
	cse, err := m.EnsureDepartment(ctx, &Department{Name: "Computer Science", Code: "CSE"})
	require.NoError(t, err)
	ece, err := m.EnsureDepartment(ctx, &Department{Name: "Electronics", Code: "ECE"})
	require.NoError(t, err)

	require.NoError(t, m.AddFaculty(ctx, []FacultyMember{
		{Name: "Dr. Rao", DepartmentID: cse.ID, Designation: "HOD"},
		{Name: "Dr. Iyer", DepartmentID: ece.ID},
		{Name: "Ms. Das"},
	}))
	require.NoError(t, m.AddTimetable(ctx, []TimetableEntry{
		{Program: "BTech", Semester: 3, Section: "A", DayOfWeek: "MON", StartTime: "09:00:00", EndTime: "10:00:00", CourseCode: "CS201", CourseTitle: "Data Structures"},
		{Program: "BTech", Semester: 3, Section: "B", DayOfWeek: "TUE", StartTime: "09:00:00", EndTime: "10:00:00", CourseCode: "CS202", CourseTitle: "Algorithms"},
		{Program: "MTech", Semester: 1, Section: "A", DayOfWeek: "MON", StartTime: "11:00:00", EndTime: "12:00:00", CourseCode: "CS501", CourseTitle: "Distributed Systems"},
	}))
	require.NoError(t, m.AddBusRoutes(ctx, []BusRoute{
		{RouteName: "R1", Origin: "City", Destination: "Campus", DepartureTime: "07:30:00", ArrivalTime: "08:15:00", DaysOfWeek: "MON-FRI"},
		{RouteName: "R2", Origin: "Station", Destination: "Campus", DepartureTime: "08:00:00", ArrivalTime: "08:40:00", DaysOfWeek: "MON-SAT"},
	}))
	require.NoError(t, m.AddEvents(ctx, []CampusEvent{
		{Title: "Past Fest", StartDate: NewDate(2025, 1, 1), EndDate: NewDate(2025, 1, 2)},
		{Title: "Hackathon", StartDate: NewDate(2025, 3, 1), EndDate: NewDate(2025, 3, 2)},
		{Title: "Talk", StartDate: NewDate(2025, 2, 10)},
	}))
	require.NoError(t, m.AddExams(ctx, []ExamSchedule{
		{Program: "BTech", Semester: 3, CourseCode: "CS201", CourseTitle: "Data Structures", ExamDate: NewDate(2025, 4, 1), StartTime: "10:00:00", EndTime: "13:00:00"},
		{Program: "MTech", Semester: 1, CourseCode: "CS501", CourseTitle: "Distributed Systems", ExamDate: NewDate(2025, 4, 2), StartTime: "10:00:00", EndTime: "13:00:00"},
	}))
	require.NoError(t, m.AddFAQs(ctx, []FAQ{
		{Question: "Library hours?", Answer: "9am-9pm.", Category: "library"},
		{Question: "Fee deadline?", Answer: "Jan 31.", Category: "accounts"},
	}))
	return m
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	t.Run("timetable filters", func(t *testing.T) {
		all, err := m.Timetable(ctx, TimetableFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		mon, err := m.Timetable(ctx, TimetableFilter{DayOfWeek: "MON"})
		require.NoError(t, err)
		require.Len(t, mon, 2)
		assert.Equal(t, "CS201", mon[0].CourseCode)

		got, err := m.Timetable(ctx, TimetableFilter{Program: "BTech", Semester: intp(3), Section: "B"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Algorithms", got[0].CourseTitle)

		none, err := m.Timetable(ctx, TimetableFilter{Semester: intp(0)})
		require.NoError(t, err)
		assert.Empty(t, none, "semester 0 filters rather than matching everything")

		limited, err := m.Timetable(ctx, TimetableFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		_, err = m.Timetable(ctx, TimetableFilter{DayOfWeek: "XYZ"})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("empty results are non-nil", func(t *testing.T) {
		got, err := m.BusRoutes(ctx, BusFilter{RouteName: "R9"})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("bus routes", func(t *testing.T) {
		got, err := m.BusRoutes(ctx, BusFilter{RouteName: "R2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Station", got[0].Origin)
	})

	t.Run("upcoming events", func(t *testing.T) {
		got, err := m.Events(ctx, EventFilter{UpcomingOnly: true, Today: NewDate(2025, 2, 10)})
		require.NoError(t, err)
		var titles []string
		for _, e := range got {
			titles = append(titles, e.Title)
		}
		assert.Equal(t, []string{"Hackathon", "Talk"}, titles)

		all, err := m.Events(ctx, EventFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("exams", func(t *testing.T) {
		got, err := m.Exams(ctx, ExamFilter{Program: "MTech"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "CS501", got[0].CourseCode)
	})

	t.Run("faculty joins departments", func(t *testing.T) {
		all, err := m.Faculty(ctx, FacultyFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.NotNil(t, all[0].Department)
		assert.Equal(t, "CSE", all[0].Department.Code)
		assert.Nil(t, all[2].Department)

		ece, err := m.Faculty(ctx, FacultyFilter{DepartmentCode: "ECE"})
		require.NoError(t, err)
		require.Len(t, ece, 1)
		assert.Equal(t, "Dr. Iyer", ece[0].Name)
	})

	t.Run("faqs", func(t *testing.T) {
		got, err := m.FAQs(ctx, FAQFilter{Limit: FAQChatLimit})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		lib, err := m.FAQs(ctx, FAQFilter{Category: "library"})
		require.NoError(t, err)
		require.Len(t, lib, 1)
	})

	t.Run("ensure department is idempotent", func(t *testing.T) {
		a, err := m.EnsureDepartment(ctx, &Department{Name: "Other name", Code: "CSE"})
		require.NoError(t, err)
		assert.Equal(t, "Computer Science", a.Name)
	})

	t.Run("results are copies", func(t *testing.T) {
		got, err := m.BusRoutes(ctx, BusFilter{})
		require.NoError(t, err)
		got[0].Origin = "changed"
		again, err := m.BusRoutes(ctx, BusFilter{})
		require.NoError(t, err)
		assert.Equal(t, "City", again[0].Origin)
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestImportDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "faculty.csv", "name,email,department_code,department_name,designation\n"+
		"Dr. Rao,rao@campus.edu,CSE,Computer Science,HOD\n"+
		"Dr. Mehta,,CSE,Computer Science,Professor\n"+
		"Ms. Das,,,,\n")
	writeFile(t, dir, "timetable.csv", "program,semester,section,day_of_week,start_time,end_time,course_code,course_title,room,faculty_name\n"+
		"BTech,3,A,mon,09:00,10:00,CS201,Data Structures,LH1,Dr. Rao\n")
	writeFile(t, dir, "faqs.csv", "\ufeffquestion,answer,category\n"+
		"\"Where is the library, exactly?\",Block C.,library\n\n")
	writeFile(t, dir, "events.csv", "title,description,location,start_date,end_date,is_all_day\n"+
		"Hackathon,24 hour contest,Main Hall,2025-03-01,2025-03-02,TRUE\n"+
		"Talk,,,2025-02-10,,false\n")

	m := NewMemorySource()
	stats, err := ImportDir(ctx, dir, m)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{"faculty": 3, "timetable": 1, "faqs": 1, "events": 2}, stats)

	fac, err := m.Faculty(ctx, FacultyFilter{DepartmentCode: "CSE"})
	require.NoError(t, err)
	assert.Len(t, fac, 2)
	assert.Equal(t, fac[0].DepartmentID, fac[1].DepartmentID)

	tt, err := m.Timetable(ctx, TimetableFilter{DayOfWeek: "MON"})
	require.NoError(t, err)
	require.Len(t, tt, 1)
	assert.Equal(t, Clock("09:00:00"), tt[0].StartTime)

	faqs, err := m.FAQs(ctx, FAQFilter{})
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, "Where is the library, exactly?", faqs[0].Question)

	ev, err := m.Events(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, ev, 2)
	assert.True(t, ev[0].IsAllDay)
	assert.True(t, ev[1].EndDate.IsZero())
}

func TestImportDir_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing column", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "faqs.csv", "\ufeffquestion\nwhat?\n")
		_, err := ImportDir(ctx, dir, NewMemorySource())
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("bad row names the row", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "exam_schedule.csv", "program,semester,course_code,course_title,exam_date,start_time,end_time\n"+
			"BTech,3,CS201,DS,2025-04-01,10:00,13:00\n"+
			"BTech,three,CS202,Algo,2025-04-02,10:00,13:00\n")
		_, err := ImportDir(ctx, dir, NewMemorySource())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exam_schedule row 2")
	})

	t.Run("empty dir imports nothing", func(t *testing.T) {
		stats, err := ImportDir(ctx, t.TempDir(), NewMemorySource())
		require.NoError(t, err)
		assert.Empty(t, stats)
	})
}

func TestImportWorkbook(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "campus.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "bus_routes"))
	require.NoError(t, f.SetSheetRow("bus_routes", "A1", &[]any{"route_name", "origin", "destination", "departure_time", "arrival_time", "days_of_week"}))
	require.NoError(t, f.SetSheetRow("bus_routes", "A2", &[]any{"R1", "City", "Campus", "07:30", "08:15", "MON-FRI"}))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Notes", "A1", "ignored"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	m := NewMemorySource()
	stats, err := ImportWorkbook(ctx, path, m)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{"bus_routes": 1}, stats)

	routes, err := m.BusRoutes(ctx, BusFilter{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, Clock("08:15:00"), routes[0].ArrivalTime)
}

func TestReadCSV_Ragged(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("question,answer,category\nq1,a1\n"))
	require.NoError(t, err)
	rows, err := FAQRows(tbl)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Category)
}

// offlineDB builds a bun.DB that never connects; it is only used to render SQL.
func offlineDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN("postgres://campusd@localhost:5432/campusd?sslmode=disable")))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBunSource_Queries(t *testing.T) {
	s := NewBunSource(offlineDB(t))

	t.Run("timetable", func(t *testing.T) {
		var rows []TimetableEntry
		q := s.timetableQuery(&rows, TimetableFilter{Program: "BTech", DayOfWeek: "MON", Limit: 20}).String()
		assert.Contains(t, q, `FROM "timetable_entries" AS "tt"`)
		assert.Contains(t, q, `tt.program = 'BTech'`)
		assert.Contains(t, q, `tt.day_of_week = 'MON'`)
		assert.NotContains(t, q, "tt.semester")
		assert.Contains(t, q, "LIMIT 20")
	})

	t.Run("upcoming events", func(t *testing.T) {
		var rows []CampusEvent
		q := s.eventsQuery(&rows, EventFilter{UpcomingOnly: true, Today: NewDate(2025, 2, 10)}).String()
		assert.Contains(t, q, `COALESCE(ev.end_date, ev.start_date) >= '2025-02-10'`)
		assert.NotContains(t, q, "LIMIT")
	})

	t.Run("faculty by department", func(t *testing.T) {
		var rows []FacultyMember
		q := s.facultyQuery(&rows, FacultyFilter{DepartmentCode: "CSE"}).String()
		assert.Contains(t, q, `LEFT JOIN "departments" AS "department"`)
		assert.Contains(t, q, `department.code = 'CSE'`)
	})

	t.Run("invalid filter never reaches the database", func(t *testing.T) {
		_, err := s.Timetable(context.Background(), TimetableFilter{Limit: -1})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

// TestBunSource_Postgres runs against a real database when CAMPUSD_TEST_DSN is set.
func TestBunSource_Postgres(t *testing.T) {
	dsn := os.Getenv("CAMPUSD_TEST_DSN")
	if dsn == "" {
		t.Skip("CAMPUSD_TEST_DSN not set")
	}
	ctx := context.Background()
	db := OpenDB(dsn, "", false)
	defer db.Close()
	s := NewBunSource(db)
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx))

	dep, err := s.EnsureDepartment(ctx, &Department{Name: "Test Dept", Code: "TST" + time.Now().Format("150405")})
	require.NoError(t, err)
	again, err := s.EnsureDepartment(ctx, &Department{Code: dep.Code})
	require.NoError(t, err)
	assert.Equal(t, dep.ID, again.ID)

	rows := []FAQ{{Question: "q?", Answer: "a.", Category: dep.Code}}
	require.NoError(t, s.AddFAQs(ctx, rows))
	assert.NotZero(t, rows[0].ID)

	got, err := s.FAQs(ctx, FAQFilter{Category: dep.Code})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.", got[0].Answer)
}
