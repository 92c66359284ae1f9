package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applogger "MoexPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createReq struct {
	Ticker   string  `json:"ticker" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Type     string  `json:"type" default:"stock" validate:"oneof=stock bond etf"`
}

type routeFunc func(e *echo.Echo)

func (f routeFunc) RegisterRoutes(e *echo.Echo) { f(e) }

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "off", r.URL.Query().Get("iss.meta"))
		if r.URL.Path == "/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("moexpull-test"))
	opts := &RequestOptions{
		URL:         srv.URL + "/found",
		Headers:     map[string]string{"Authorization": "secret"},
		QueryParams: map[string][]string{"iss.meta": {"off"}},
	}

	var out struct{ OK bool }
	require.NoError(t, c.SendAndParse(context.Background(), opts, &out))
	assert.True(t, out.OK)

	var raw []byte
	require.NoError(t, c.SendAndParse(context.Background(), opts, &raw))
	assert.JSONEq(t, `{"ok":true}`, string(raw))

	opts.URL = srv.URL + "/missing"
	err := c.SendAndParse(context.Background(), opts, &raw)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	body := `{"ticker":"","quantity":0}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var r createReq
	errs := ReadAndValidateRequest(c, &r)
	require.NotNil(t, errs)
	verrs := errs.([]ValidationError)
	fields := []string{}
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"ticker", "quantity"}, fields)
	assert.Equal(t, "stock", r.Type)
}

func TestServerEnvelopeAndHealth(t *testing.T) {
	h := routeFunc(func(e *echo.Echo) {
		e.GET("/missing", func(c echo.Context) error {
			return AppErrorResponse(c, NotFoundError("holding not found"))
		})
	})
	srv := NewServer(Handlers{h}, applogger.Nop(), WithRegistry(prometheus.NewRegistry()))

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Status int         `json:"status"`
		Data   []*AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ERR_NOT_FOUND", resp.Data[0].Code)

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
