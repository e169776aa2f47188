package http

import (
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/campusd/internal/campus"
	"github.com/fyrsmithlabs/campusd/internal/chat"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleHealth returns a simple health check response with the index state.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.services.Index != nil {
		stats := s.services.Index.Stats()
		resp.Index = &stats
	}
	return c.JSON(http.StatusOK, resp)
}

// handleChat answers a chat message.
func (s *Server) handleChat(c echo.Context) error {
	var req chat.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	resp, err := s.services.Chat.Route(c.Request().Context(), req)
	if err != nil {
		return err
	}
	c.Set(intentKey, string(resp.Intent))
	return c.JSON(http.StatusOK, resp)
}

// handleRetrieve returns the raw nearest chunks for a query.
func (s *Server) handleRetrieve(c echo.Context) error {
	if s.services.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval is not configured")
	}
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	topK := chat.RetrievalTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k must be >= 0")
	}

	chunks, err := s.services.Index.Retrieve(c.Request().Context(), req.Query, topK)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RetrieveResponse{Results: chunks})
}

// handleIndexStats describes the served index.
func (s *Server) handleIndexStats(c echo.Context) error {
	if s.services.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval is not configured")
	}
	return c.JSON(http.StatusOK, s.services.Index.Stats())
}

// handleIndexReload reloads the index artifacts from disk.
func (s *Server) handleIndexReload(c echo.Context) error {
	if s.services.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval is not configured")
	}
	if _, err := s.services.Index.Reload(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.services.Index.Stats())
}

// semesterParam returns the semester query parameter, or nil when absent.
func semesterParam(c echo.Context) (*int, error) {
	if !c.QueryParams().Has("semester") {
		return nil, nil
	}
	var n int
	if err := echo.QueryParamsBinder(c).Int("semester", &n).BindError(); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Server) handleTimetable(c echo.Context) error {
	var f campus.TimetableFilter
	semester, err := semesterParam(c)
	if err != nil {
		return err
	}
	f.Semester = semester
	err = echo.QueryParamsBinder(c).
		String("program", &f.Program).
		String("section", &f.Section).
		String("day_of_week", &f.DayOfWeek).
		Int("limit", &f.Limit).
		BindError()
	if err != nil {
		return err
	}
	f.DayOfWeek = strings.ToUpper(f.DayOfWeek)
	rows, err := s.services.Campus.Timetable(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleBusSchedule(c echo.Context) error {
	var f campus.BusFilter
	err := echo.QueryParamsBinder(c).
		String("route_name", &f.RouteName).
		Int("limit", &f.Limit).
		BindError()
	if err != nil {
		return err
	}
	rows, err := s.services.Campus.BusRoutes(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// handleEvents lists events; upcoming_only defaults to true.
func (s *Server) handleEvents(c echo.Context) error {
	f := campus.EventFilter{UpcomingOnly: true}
	err := echo.QueryParamsBinder(c).
		Bool("upcoming_only", &f.UpcomingOnly).
		Int("limit", &f.Limit).
		BindError()
	if err != nil {
		return err
	}
	rows, err := s.services.Campus.Events(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleExams(c echo.Context) error {
	var f campus.ExamFilter
	semester, err := semesterParam(c)
	if err != nil {
		return err
	}
	f.Semester = semester
	err = echo.QueryParamsBinder(c).
		String("program", &f.Program).
		Int("limit", &f.Limit).
		BindError()
	if err != nil {
		return err
	}
	rows, err := s.services.Campus.Exams(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleFacultyDirectory(c echo.Context) error {
	var f campus.FacultyFilter
	err := echo.QueryParamsBinder(c).
		String("department_code", &f.DepartmentCode).
		Int("limit", &f.Limit).
		BindError()
	if err != nil {
		return err
	}
	rows, err := s.services.Campus.Faculty(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleFAQs(c echo.Context) error {
	var f campus.FAQFilter
	err := echo.QueryParamsBinder(c).
		String("category", &f.Category).
		Int("limit", &f.Limit).
		BindError()
	if err != nil {
		return err
	}
	rows, err := s.services.Campus.FAQs(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}
