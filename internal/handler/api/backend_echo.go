package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	xhttp "SPI/pkg/http"
	xlogger "SPI/pkg/logger"
)

const maxEchoBody = "1M"

// BackendEchoHandler serves the placeholder backend endpoints.
type BackendEchoHandler struct {
	logger *xlogger.Logger
}

func NewBackendEchoHandler(logger *xlogger.Logger) *BackendEchoHandler {
	return &BackendEchoHandler{logger: logger}
}

func (h *BackendEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Home)
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/data", h.Data)
	g.POST("/echo", h.Echo, echomw.BodyLimit(maxEchoBody))
}

func (h *BackendEchoHandler) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Hello, Flask backend is running!",
	})
}

func (h *BackendEchoHandler) Data(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": map[string]string{
			"name": "Shantanu",
			"role": "Developer",
		},
	})
}

// Echo returns the request body untouched under "received". An empty body
// echoes null. Bodies over maxEchoBody are refused with 413.
func (h *BackendEchoHandler) Echo(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		h.logger.Warn("echo read body error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("cannot read request body").WithError(err))
	}

	received := json.RawMessage("null")
	if len(body) > 0 {
		if !json.Valid(body) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("request body must be valid JSON"))
		}
		received = body
	}
	return c.JSON(http.StatusOK, map[string]json.RawMessage{"received": received})
}

func (h *BackendEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
