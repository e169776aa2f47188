package http

import (
	"net/http"

	"github.com/fyrsmithlabs/campusd/internal/auth"
	"github.com/labstack/echo/v4"
)

// owner returns the authenticated user id. The study group always runs
// behind auth.Middleware, so a missing id is a wiring error.
func owner(c echo.Context) (string, error) {
	id, ok := auth.UserID(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, auth.UnauthorizedMessage)
	}
	return id, nil
}

func documentID(c echo.Context) (int64, error) {
	var id int64
	if err := echo.PathParamsBinder(c).MustInt64("id", &id).BindError(); err != nil {
		return 0, err
	}
	return id, nil
}

// handleUpload stores a multipart "file" upload and returns the new document.
func (s *Server) handleUpload(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file")
	}
	defer f.Close()

	doc, err := s.services.Study.Upload(c.Request().Context(), user, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return err
	}
	docs, err := s.services.Study.List(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleSummarize(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return err
	}
	id, err := documentID(c)
	if err != nil {
		return err
	}
	summary, err := s.services.Study.Summarize(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// handleQuiz generates a quiz; num_questions defaults to the configured size.
func (s *Server) handleQuiz(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return err
	}
	id, err := documentID(c)
	if err != nil {
		return err
	}
	n := s.config.DefaultQuestions
	if err := echo.QueryParamsBinder(c).Int("num_questions", &n).BindError(); err != nil {
		return err
	}
	quiz, err := s.services.Study.Quiz(c.Request().Context(), user, id, n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quiz)
}

func (s *Server) handleQA(c echo.Context) error {
	user, err := owner(c)
	if err != nil {
		return err
	}
	id, err := documentID(c)
	if err != nil {
		return err
	}
	// An empty question is answered with a prompt for a more specific one;
	// only a missing parameter is a bad request.
	if !c.QueryParams().Has("question") {
		return echo.NewHTTPError(http.StatusBadRequest, "question parameter is required")
	}
	answer, err := s.services.Study.Ask(c.Request().Context(), user, id, c.QueryParam("question"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}
