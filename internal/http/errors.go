package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/campusd/internal/campus"
	"github.com/fyrsmithlabs/campusd/internal/documents"
	"github.com/fyrsmithlabs/campusd/internal/retrieval"
	"github.com/fyrsmithlabs/campusd/internal/study"
	"github.com/labstack/echo/v4"
)

// NotFoundMessage is returned for missing or foreign documents.
const NotFoundMessage = "Not found"

// httpError maps err to the response sent to the client. Unrecognised
// errors become a 500 without details.
func httpError(err error) *echo.HTTPError {
	var be *echo.BindingError
	if errors.As(err, &be) {
		return be.HTTPError
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, study.ErrInsufficientContent):
		// The wrapping error carries the user-facing message.
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, documents.ErrExtractionFailed):
		return echo.NewHTTPError(http.StatusBadRequest, documents.ExtractionFailedMessage).SetInternal(err)
	case errors.Is(err, documents.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, NotFoundMessage).SetInternal(err)
	case errors.Is(err, documents.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error()).SetInternal(err)
	case errors.Is(err, documents.ErrInvalidOwner),
		errors.Is(err, documents.ErrInvalidQuestionCount),
		errors.Is(err, campus.ErrInvalidFilter):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, retrieval.ErrNoIndexDir):
		return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
	}
}
