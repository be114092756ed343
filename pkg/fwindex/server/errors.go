package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
)

// Error is an API error rendered as the JSON error envelope.
type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

// errCatalogUnavailable is returned while no catalog has been loaded.
var errCatalogUnavailable = &Error{
	HTTPCode: http.StatusServiceUnavailable,
	Message:  "The catalog could not be loaded.",
	Code:     "catalog_unavailable",
}

func notFound(resource string) error {
	return &Error{http.StatusNotFound, resource + " not found.", "not_found"}
}

func badRequest(code, msg string) error {
	return &Error{http.StatusBadRequest, msg, code}
}

func badParameter(err error) error {
	return &Error{http.StatusBadRequest, err.Error(), "invalid_parameter"}
}

func fetchFailed(p string, err error) error {
	return &Error{http.StatusBadGateway, fmt.Sprintf("Fetching %s failed: %v", p, err), "fetch_failed"}
}

// errorEnvelope is the body of every error response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// handleError is an echo error handler. API errors keep their status, echo
// errors become snake_case codes, and anything else is a 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		s.log.Warn("error after response started", "path", c.Request().URL.Path, "error", err)
		return
	}

	status, body := payload(err)
	if status == http.StatusInternalServerError {
		s.log.Error("server error", "path", c.Request().URL.Path, "error", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, errorEnvelope{Error: body})
	}
	if werr != nil {
		s.log.Error("error handler json error", "error", werr)
	}
}

func payload(err error) (int, errorBody) {
	status := http.StatusInternalServerError
	var code, msg string

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
		code = strcase.ToSnake(msg)
	}

	var e *Error
	if errors.As(err, &e) {
		status = e.HTTPCode
		code = e.Code
		msg = e.Message
	}

	if status == http.StatusInternalServerError && msg == "" {
		code = "internal_server_error"
		msg = "Internal Server Error"
	}

	return status, errorBody{Code: code, Message: msg, StatusCode: status}
}
