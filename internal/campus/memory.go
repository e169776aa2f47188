package campus

import (
	"context"
	"sync"
)

// MemorySource keeps campus records in memory. It backs tests and
// deployments without a database. Safe for concurrent use.
type MemorySource struct {
	mu          sync.RWMutex
	nextID      int64
	departments []Department
	faculty     []FacultyMember
	timetable   []TimetableEntry
	busRoutes   []BusRoute
	events      []CampusEvent
	exams       []ExamSchedule
	faqs        []FAQ
}

// NewMemorySource returns an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

var (
	_ Source = (*MemorySource)(nil)
	_ Sink   = (*MemorySource)(nil)
)

// filterRows returns copies of rows matching keep, at most limit when limit > 0.
func filterRows[T any](rows []T, limit int, keep func(*T) bool) []T {
	out := make([]T, 0, min(len(rows), max(limit, 0)))
	for i := range rows {
		if !keep(&rows[i]) {
			continue
		}
		out = append(out, rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (m *MemorySource) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemorySource) Timetable(_ context.Context, f TimetableFilter) ([]TimetableEntry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRows(m.timetable, f.Limit, func(e *TimetableEntry) bool {
		return (f.Program == "" || e.Program == f.Program) &&
			(f.Semester == nil || e.Semester == *f.Semester) &&
			(f.Section == "" || e.Section == f.Section) &&
			(f.DayOfWeek == "" || e.DayOfWeek == f.DayOfWeek)
	}), nil
}

func (m *MemorySource) BusRoutes(_ context.Context, f BusFilter) ([]BusRoute, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRows(m.busRoutes, f.Limit, func(r *BusRoute) bool {
		return f.RouteName == "" || r.RouteName == f.RouteName
	}), nil
}

func (m *MemorySource) Events(_ context.Context, f EventFilter) ([]CampusEvent, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	today := f.today()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRows(m.events, f.Limit, func(e *CampusEvent) bool {
		return !f.UpcomingOnly || !e.LastDay().Before(today)
	}), nil
}

func (m *MemorySource) Exams(_ context.Context, f ExamFilter) ([]ExamSchedule, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRows(m.exams, f.Limit, func(e *ExamSchedule) bool {
		return (f.Program == "" || e.Program == f.Program) &&
			(f.Semester == nil || e.Semester == *f.Semester)
	}), nil
}

func (m *MemorySource) Faculty(_ context.Context, f FacultyFilter) ([]FacultyMember, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := filterRows(m.faculty, f.Limit, func(fm *FacultyMember) bool {
		if f.DepartmentCode == "" {
			return true
		}
		d := m.departmentByID(fm.DepartmentID)
		return d != nil && d.Code == f.DepartmentCode
	})
	for i := range out {
		if d := m.departmentByID(out[i].DepartmentID); d != nil {
			dep := *d
			out[i].Department = &dep
		}
	}
	return out, nil
}

func (m *MemorySource) FAQs(_ context.Context, f FAQFilter) ([]FAQ, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRows(m.faqs, f.Limit, func(q *FAQ) bool {
		return f.Category == "" || q.Category == f.Category
	}), nil
}

func (m *MemorySource) departmentByID(id int64) *Department {
	if id == 0 {
		return nil
	}
	for i := range m.departments {
		if m.departments[i].ID == id {
			return &m.departments[i]
		}
	}
	return nil
}

func (m *MemorySource) EnsureDepartment(_ context.Context, d *Department) (*Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.departments {
		if m.departments[i].Code == d.Code {
			existing := m.departments[i]
			return &existing, nil
		}
	}
	created := *d
	created.ID = m.id()
	m.departments = append(m.departments, created)
	return &created, nil
}

func (m *MemorySource) AddFaculty(_ context.Context, rows []FacultyMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range rows {
		rows[i].ID = m.id()
		row := rows[i]
		row.Department = nil
		m.faculty = append(m.faculty, row)
	}
	return nil
}

func (m *MemorySource) AddTimetable(_ context.Context, rows []TimetableEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timetable = appendWithIDs(m, m.timetable, rows, func(r *TimetableEntry, id int64) { r.ID = id })
	return nil
}

func (m *MemorySource) AddBusRoutes(_ context.Context, rows []BusRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busRoutes = appendWithIDs(m, m.busRoutes, rows, func(r *BusRoute, id int64) { r.ID = id })
	return nil
}

func (m *MemorySource) AddEvents(_ context.Context, rows []CampusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = appendWithIDs(m, m.events, rows, func(r *CampusEvent, id int64) { r.ID = id })
	return nil
}

func (m *MemorySource) AddExams(_ context.Context, rows []ExamSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams = appendWithIDs(m, m.exams, rows, func(r *ExamSchedule, id int64) { r.ID = id })
	return nil
}

func (m *MemorySource) AddFAQs(_ context.Context, rows []FAQ) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faqs = appendWithIDs(m, m.faqs, rows, func(r *FAQ, id int64) { r.ID = id })
	return nil
}

// appendWithIDs assigns ids to rows in place and appends them to dst.
// The caller holds m.mu.
func appendWithIDs[T any](m *MemorySource, dst, rows []T, setID func(*T, int64)) []T {
	for i := range rows {
		setID(&rows[i], m.id())
	}
	return append(dst, rows...)
}
