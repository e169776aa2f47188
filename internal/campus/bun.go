package campus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// OpenDB opens a Postgres connection pool through pgdriver. A non-empty
// password overrides the one in dsn. With debug set every query is logged.
func OpenDB(dsn, password string, debug bool) *bun.DB {
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if password != "" {
		opts = append(opts, pgdriver.WithPassword(password))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// BunSource reads and writes campus records in Postgres.
type BunSource struct {
	db *bun.DB
}

// NewBunSource wraps db.
func NewBunSource(db *bun.DB) *BunSource {
	return &BunSource{db: db}
}

var (
	_ Source = (*BunSource)(nil)
	_ Sink   = (*BunSource)(nil)
)

// Migrate creates the campus tables when they do not exist.
func (s *BunSource) Migrate(ctx context.Context) error {
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", m, err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *BunSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func limit(q *bun.SelectQuery, n int) *bun.SelectQuery {
	if n > 0 {
		q = q.Limit(n)
	}
	return q
}

func (s *BunSource) Timetable(ctx context.Context, f TimetableFilter) ([]TimetableEntry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows := []TimetableEntry{}
	if err := s.timetableQuery(&rows, f).Scan(ctx); err != nil {
		return nil, fmt.Errorf("querying timetable: %w", err)
	}
	return rows, nil
}

func (s *BunSource) timetableQuery(rows *[]TimetableEntry, f TimetableFilter) *bun.SelectQuery {
	q := s.db.NewSelect().Model(rows).OrderExpr("tt.id ASC")
	if f.Program != "" {
		q = q.Where("tt.program = ?", f.Program)
	}
	if f.Semester != nil {
		q = q.Where("tt.semester = ?", *f.Semester)
	}
	if f.Section != "" {
		q = q.Where("tt.section = ?", f.Section)
	}
	if f.DayOfWeek != "" {
		q = q.Where("tt.day_of_week = ?", f.DayOfWeek)
	}
	return limit(q, f.Limit)
}

func (s *BunSource) BusRoutes(ctx context.Context, f BusFilter) ([]BusRoute, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows := []BusRoute{}
	q := s.db.NewSelect().Model(&rows).OrderExpr("br.id ASC")
	if f.RouteName != "" {
		q = q.Where("br.route_name = ?", f.RouteName)
	}
	if err := limit(q, f.Limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("querying bus routes: %w", err)
	}
	return rows, nil
}

func (s *BunSource) Events(ctx context.Context, f EventFilter) ([]CampusEvent, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows := []CampusEvent{}
	if err := s.eventsQuery(&rows, f).Scan(ctx); err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return rows, nil
}

func (s *BunSource) eventsQuery(rows *[]CampusEvent, f EventFilter) *bun.SelectQuery {
	q := s.db.NewSelect().Model(rows).OrderExpr("ev.id ASC")
	if f.UpcomingOnly {
		q = q.Where("COALESCE(ev.end_date, ev.start_date) >= ?", f.today())
	}
	return limit(q, f.Limit)
}

func (s *BunSource) Exams(ctx context.Context, f ExamFilter) ([]ExamSchedule, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows := []ExamSchedule{}
	q := s.db.NewSelect().Model(&rows).OrderExpr("ex.id ASC")
	if f.Program != "" {
		q = q.Where("ex.program = ?", f.Program)
	}
	if f.Semester != nil {
		q = q.Where("ex.semester = ?", *f.Semester)
	}
	if err := limit(q, f.Limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("querying exams: %w", err)
	}
	return rows, nil
}

func (s *BunSource) Faculty(ctx context.Context, f FacultyFilter) ([]FacultyMember, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows := []FacultyMember{}
	if err := s.facultyQuery(&rows, f).Scan(ctx); err != nil {
		return nil, fmt.Errorf("querying faculty: %w", err)
	}
	return rows, nil
}

func (s *BunSource) facultyQuery(rows *[]FacultyMember, f FacultyFilter) *bun.SelectQuery {
	q := s.db.NewSelect().Model(rows).Relation("Department").OrderExpr("fm.id ASC")
	if f.DepartmentCode != "" {
		q = q.Where("department.code = ?", f.DepartmentCode)
	}
	return limit(q, f.Limit)
}

func (s *BunSource) FAQs(ctx context.Context, f FAQFilter) ([]FAQ, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rows := []FAQ{}
	q := s.db.NewSelect().Model(&rows).OrderExpr("faq.id ASC")
	if f.Category != "" {
		q = q.Where("faq.category = ?", f.Category)
	}
	if err := limit(q, f.Limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("querying faqs: %w", err)
	}
	return rows, nil
}

func (s *BunSource) EnsureDepartment(ctx context.Context, d *Department) (*Department, error) {
	existing := new(Department)
	err := s.db.NewSelect().Model(existing).Where("dep.code = ?", d.Code).Limit(1).Scan(ctx)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up department %s: %w", d.Code, err)
	}
	created := &Department{Name: d.Name, Code: d.Code}
	if _, err := s.db.NewInsert().Model(created).Returning("id").Exec(ctx); err != nil {
		return nil, fmt.Errorf("creating department %s: %w", d.Code, err)
	}
	return created, nil
}

// insert writes rows in one statement; bun fills in the generated ids.
func insert[T any](ctx context.Context, db *bun.DB, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&rows).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("inserting %s: %w", table, err)
	}
	return nil
}

func (s *BunSource) AddFaculty(ctx context.Context, rows []FacultyMember) error {
	return insert(ctx, s.db, "faculty", rows)
}

func (s *BunSource) AddTimetable(ctx context.Context, rows []TimetableEntry) error {
	return insert(ctx, s.db, "timetable", rows)
}

func (s *BunSource) AddBusRoutes(ctx context.Context, rows []BusRoute) error {
	return insert(ctx, s.db, "bus routes", rows)
}

func (s *BunSource) AddEvents(ctx context.Context, rows []CampusEvent) error {
	return insert(ctx, s.db, "events", rows)
}

func (s *BunSource) AddExams(ctx context.Context, rows []ExamSchedule) error {
	return insert(ctx, s.db, "exams", rows)
}

func (s *BunSource) AddFAQs(ctx context.Context, rows []FAQ) error {
	return insert(ctx, s.db, "faqs", rows)
}
