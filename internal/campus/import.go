package campus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Dataset names. Each is a CSV file stem in an import directory and a sheet
// name in an import workbook.
const (
	DatasetFaculty   = "faculty"
	DatasetTimetable = "timetable"
	DatasetBusRoutes = "bus_routes"
	DatasetEvents    = "events"
	DatasetExams     = "exam_schedule"
	DatasetFAQs      = "faqs"
)

// Datasets lists the datasets in import order. Faculty comes first so
// departments exist before anything references them.
var Datasets = []string{DatasetFaculty, DatasetTimetable, DatasetBusRoutes, DatasetEvents, DatasetExams, DatasetFAQs}

// ErrMissingColumn is returned when a dataset lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// ImportStats counts imported rows per dataset.
type ImportStats map[string]int

// Table is a header row plus data rows.
type Table struct {
	header map[string]int
	rows   [][]string
}

// NewTable builds a table from raw records whose first record is the header.
func NewTable(records [][]string) *Table {
	t := &Table{header: map[string]int{}}
	if len(records) == 0 {
		return t
	}
	for i, h := range records[0] {
		t.header[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, r := range records[1:] {
		if isBlankRecord(r) {
			continue
		}
		t.rows = append(t.rows, r)
	}
	return t
}

func isBlankRecord(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// require checks that every named column is present.
func (t *Table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// get returns the trimmed cell for col in row i, or "" when absent.
func (t *Table) get(i int, col string) string {
	j, ok := t.header[col]
	if !ok || j >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][j])
}

// ReadCSV reads a CSV stream into a Table.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return NewTable(records), nil
}

func readCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// rowError annotates err with the 1-based data row number.
func rowError(dataset string, i int, err error) error {
	return fmt.Errorf("%s row %d: %w", dataset, i+1, err)
}

// FAQRows converts a faqs table. Requires question and answer columns.
func FAQRows(t *Table) ([]FAQ, error) {
	if err := t.require("question", "answer"); err != nil {
		return nil, fmt.Errorf("%s: %w", DatasetFAQs, err)
	}
	out := make([]FAQ, 0, t.Len())
	for i := range t.rows {
		out = append(out, FAQ{
			Question: t.get(i, "question"),
			Answer:   t.get(i, "answer"),
			Category: t.get(i, "category"),
		})
	}
	return out, nil
}

// EventRows converts an events table. Requires title and start_date columns.
func EventRows(t *Table) ([]CampusEvent, error) {
	if err := t.require("title", "start_date"); err != nil {
		return nil, fmt.Errorf("%s: %w", DatasetEvents, err)
	}
	out := make([]CampusEvent, 0, t.Len())
	for i := range t.rows {
		start, err := ParseDate(t.get(i, "start_date"))
		if err != nil {
			return nil, rowError(DatasetEvents, i, err)
		}
		var end Date
		if v := t.get(i, "end_date"); v != "" {
			if end, err = ParseDate(v); err != nil {
				return nil, rowError(DatasetEvents, i, err)
			}
		}
		out = append(out, CampusEvent{
			Title:       t.get(i, "title"),
			Description: t.get(i, "description"),
			Location:    t.get(i, "location"),
			StartDate:   start,
			EndDate:     end,
			IsAllDay:    strings.EqualFold(t.get(i, "is_all_day"), "true"),
		})
	}
	return out, nil
}

// TimetableRows converts a timetable table.
func TimetableRows(t *Table) ([]TimetableEntry, error) {
	if err := t.require("program", "semester", "section", "day_of_week", "start_time", "end_time", "course_code", "course_title"); err != nil {
		return nil, fmt.Errorf("%s: %w", DatasetTimetable, err)
	}
	out := make([]TimetableEntry, 0, t.Len())
	for i := range t.rows {
		sem, err := strconv.Atoi(t.get(i, "semester"))
		if err != nil {
			return nil, rowError(DatasetTimetable, i, fmt.Errorf("invalid semester: %w", err))
		}
		start, err := ParseClock(t.get(i, "start_time"))
		if err != nil {
			return nil, rowError(DatasetTimetable, i, err)
		}
		end, err := ParseClock(t.get(i, "end_time"))
		if err != nil {
			return nil, rowError(DatasetTimetable, i, err)
		}
		out = append(out, TimetableEntry{
			Program:     t.get(i, "program"),
			Semester:    sem,
			Section:     t.get(i, "section"),
			DayOfWeek:   strings.ToUpper(t.get(i, "day_of_week")),
			StartTime:   start,
			EndTime:     end,
			CourseCode:  t.get(i, "course_code"),
			CourseTitle: t.get(i, "course_title"),
			Room:        t.get(i, "room"),
			FacultyName: t.get(i, "faculty_name"),
		})
	}
	return out, nil
}

// BusRouteRows converts a bus_routes table.
func BusRouteRows(t *Table) ([]BusRoute, error) {
	if err := t.require("route_name", "origin", "destination", "departure_time", "arrival_time", "days_of_week"); err != nil {
		return nil, fmt.Errorf("%s: %w", DatasetBusRoutes, err)
	}
	out := make([]BusRoute, 0, t.Len())
	for i := range t.rows {
		dep, err := ParseClock(t.get(i, "departure_time"))
		if err != nil {
			return nil, rowError(DatasetBusRoutes, i, err)
		}
		arr, err := ParseClock(t.get(i, "arrival_time"))
		if err != nil {
			return nil, rowError(DatasetBusRoutes, i, err)
		}
		out = append(out, BusRoute{
			RouteName:     t.get(i, "route_name"),
			Origin:        t.get(i, "origin"),
			Destination:   t.get(i, "destination"),
			DepartureTime: dep,
			ArrivalTime:   arr,
			DaysOfWeek:    t.get(i, "days_of_week"),
		})
	}
	return out, nil
}

// ExamRows converts an exam_schedule table.
func ExamRows(t *Table) ([]ExamSchedule, error) {
	if err := t.require("program", "semester", "course_code", "course_title", "exam_date", "start_time", "end_time"); err != nil {
		return nil, fmt.Errorf("%s: %w", DatasetExams, err)
	}
	out := make([]ExamSchedule, 0, t.Len())
	for i := range t.rows {
		sem, err := strconv.Atoi(t.get(i, "semester"))
		if err != nil {
			return nil, rowError(DatasetExams, i, fmt.Errorf("invalid semester: %w", err))
		}
		date, err := ParseDate(t.get(i, "exam_date"))
		if err != nil {
			return nil, rowError(DatasetExams, i, err)
		}
		start, err := ParseClock(t.get(i, "start_time"))
		if err != nil {
			return nil, rowError(DatasetExams, i, err)
		}
		end, err := ParseClock(t.get(i, "end_time"))
		if err != nil {
			return nil, rowError(DatasetExams, i, err)
		}
		out = append(out, ExamSchedule{
			Program:     t.get(i, "program"),
			Semester:    sem,
			CourseCode:  t.get(i, "course_code"),
			CourseTitle: t.get(i, "course_title"),
			ExamDate:    date,
			StartTime:   start,
			EndTime:     end,
			Room:        t.get(i, "room"),
		})
	}
	return out, nil
}

// importFaculty resolves each row's department by code, creating missing
// departments, then adds the faculty rows.
func importFaculty(ctx context.Context, t *Table, sink Sink) (int, error) {
	if err := t.require("name"); err != nil {
		return 0, fmt.Errorf("%s: %w", DatasetFaculty, err)
	}
	rows := make([]FacultyMember, 0, t.Len())
	for i := range t.rows {
		fm := FacultyMember{
			Name:        t.get(i, "name"),
			Email:       t.get(i, "email"),
			Phone:       t.get(i, "phone"),
			Room:        t.get(i, "room"),
			Designation: t.get(i, "designation"),
		}
		if code := t.get(i, "department_code"); code != "" {
			name := t.get(i, "department_name")
			if name == "" {
				name = code
			}
			dep, err := sink.EnsureDepartment(ctx, &Department{Name: name, Code: code})
			if err != nil {
				return 0, rowError(DatasetFaculty, i, err)
			}
			fm.DepartmentID = dep.ID
		}
		rows = append(rows, fm)
	}
	return len(rows), sink.AddFaculty(ctx, rows)
}

// ImportTable converts t as dataset and writes the rows to sink.
func ImportTable(ctx context.Context, dataset string, t *Table, sink Sink) (int, error) {
	switch dataset {
	case DatasetFaculty:
		return importFaculty(ctx, t, sink)
	case DatasetTimetable:
		return add(ctx, t, TimetableRows, sink.AddTimetable)
	case DatasetBusRoutes:
		return add(ctx, t, BusRouteRows, sink.AddBusRoutes)
	case DatasetEvents:
		return add(ctx, t, EventRows, sink.AddEvents)
	case DatasetExams:
		return add(ctx, t, ExamRows, sink.AddExams)
	case DatasetFAQs:
		return add(ctx, t, FAQRows, sink.AddFAQs)
	default:
		return 0, fmt.Errorf("unknown dataset %q", dataset)
	}
}

func add[T any](ctx context.Context, t *Table, convert func(*Table) ([]T, error), store func(context.Context, []T) error) (int, error) {
	rows, err := convert(t)
	if err != nil {
		return 0, err
	}
	if err := store(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ImportDir imports every {dataset}.csv present in dir. Missing files are skipped.
func ImportDir(ctx context.Context, dir string, sink Sink) (ImportStats, error) {
	stats := ImportStats{}
	for _, ds := range Datasets {
		path := filepath.Join(dir, ds+".csv")
		t, err := readCSVFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("%s: %w", path, err)
		}
		n, err := ImportTable(ctx, ds, t, sink)
		if err != nil {
			return stats, err
		}
		stats[ds] = n
	}
	return stats, nil
}

// ImportWorkbook imports every sheet of an .xlsx workbook whose name matches
// a dataset. Other sheets are ignored.
func ImportWorkbook(ctx context.Context, path string, sink Sink) (ImportStats, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := map[string]string{}
	for _, name := range f.GetSheetList() {
		sheets[strings.ToLower(strings.TrimSpace(name))] = name
	}

	stats := ImportStats{}
	for _, ds := range Datasets {
		sheet, ok := sheets[ds]
		if !ok {
			continue
		}
		records, err := f.GetRows(sheet)
		if err != nil {
			return stats, fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		n, err := ImportTable(ctx, ds, NewTable(records), sink)
		if err != nil {
			return stats, err
		}
		stats[ds] = n
	}
	return stats, nil
}
