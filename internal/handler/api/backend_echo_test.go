package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	xhttp "SPI/pkg/http"
	xlogger "SPI/pkg/logger"
)

func backendServer() *echo.Echo {
	return xhttp.NewServer([]xhttp.Handler{NewBackendEchoHandler(xlogger.Nop())}).Echo()
}

func do(e *echo.Echo, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBackendHome(t *testing.T) {
	rec := do(backendServer(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Hello, Flask backend is running!"}`, rec.Body.String())
}

func TestBackendData(t *testing.T) {
	rec := do(backendServer(), http.MethodGet, "/api/data", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"name":"Shantanu","role":"Developer"}}`, rec.Body.String())
}

func TestBackendEcho(t *testing.T) {
	e := backendServer()

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"object", `{"x":1}`, http.StatusOK, `{"received":{"x":1}}`},
		{"nested", `{"a":[1,"two",{"b":null}],"c":true}`, http.StatusOK, `{"received":{"a":[1,"two",{"b":null}],"c":true}}`},
		{"scalar", `42`, http.StatusOK, `{"received":42}`},
		{"empty", ``, http.StatusOK, `{"received":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/echo", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}

	rec := do(e, http.MethodPost, "/api/echo", `{"x":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_BAD_REQUEST")
}

func TestBackendEchoRejectsOversizedBody(t *testing.T) {
	e := backendServer()
	big := `{"pad":"` + strings.Repeat("x", 2<<20) + `"}`

	rec := do(e, http.MethodPost, "/api/echo", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_HTTP_413")

	// unknown length is cut off while reading
	req := httptest.NewRequest(http.MethodPost, "/api/echo", io.MultiReader(strings.NewReader(big)))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	almost := `"` + strings.Repeat("x", 1<<20-3) + `"`
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/api/echo", almost).Code)
}

func TestBackendHealth(t *testing.T) {
	rec := do(backendServer(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
