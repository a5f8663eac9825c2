package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	apperrors "github.com/kbukum/extkit/errors"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/observability"
	"github.com/kbukum/extkit/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.Use(handlers...)
	e.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	e.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })
	e.GET("/missing", func(c *gin.Context) { c.String(http.StatusNotFound, "nope") })
	e.GET("/panic", func(*gin.Context) { panic("test panic") })
	return e
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func jsonLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", &buf), &buf
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery_NoPanic(t *testing.T) {
	rr := serve(newEngine(middleware.Recovery(logger.Nop())), httptest.NewRequest("GET", "/ok", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRecovery_Panic(t *testing.T) {
	log, buf := jsonLogger()
	rr := serve(newEngine(middleware.RequestID(), middleware.Recovery(log)), httptest.NewRequest("GET", "/panic", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error.Code != string(apperrors.ErrCodeInternal) {
		t.Errorf("unexpected body %v", body)
	}
	if !strings.Contains(buf.String(), "Panic recovered") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID_GeneratesID(t *testing.T) {
	var seen string
	e := gin.New()
	e.Use(middleware.RequestID())
	e.GET("/", func(c *gin.Context) {
		seen = c.GetString(middleware.RequestIDKey)
		c.Status(http.StatusOK)
	})

	rr := serve(e, httptest.NewRequest("GET", "/", http.NoBody))
	got := rr.Header().Get(middleware.RequestIDHeader)
	if got == "" {
		t.Fatal("expected X-Request-Id in response headers")
	}
	if seen != got {
		t.Errorf("context id %q does not match header %q", seen, got)
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	req := httptest.NewRequest("GET", "/ok", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "custom-id-123")
	rr := serve(newEngine(middleware.RequestID()), req)

	if got := rr.Header().Get(middleware.RequestIDHeader); got != "custom-id-123" {
		t.Fatalf("expected custom-id-123, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORS(t *testing.T) {
	cfg := middleware.CORSConfig{
		AllowedOrigins: []string{"https://example.com"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}
	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{"allowed", "GET", "https://example.com", "https://example.com", http.StatusOK},
		{"disallowed", "GET", "https://evil.com", "", http.StatusOK},
		{"preflight", "OPTIONS", "https://example.com", "https://example.com", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/ok", http.NoBody)
			req.Header.Set("Origin", tc.origin)
			rr := serve(newEngine(middleware.CORS(cfg)), req)

			if rr.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("expected origin %q, got %q", tc.wantOrigin, got)
			}
		})
	}
}

func TestCORS_Wildcard(t *testing.T) {
	req := httptest.NewRequest("GET", "/ok", http.NoBody)
	req.Header.Set("Origin", "https://app.example.com")
	rr := serve(newEngine(middleware.CORS(middleware.CORSConfig{AllowedOrigins: []string{"*"}})), req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected echoed origin, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

func TestRequestLogger_LevelByStatus(t *testing.T) {
	log, buf := jsonLogger()
	e := newEngine(middleware.RequestID(), middleware.RequestLogger(log))
	serve(e, httptest.NewRequest("GET", "/ok", http.NoBody))
	serve(e, httptest.NewRequest("GET", "/missing", http.NoBody))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	var first, second map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &first)
	_ = json.Unmarshal([]byte(lines[1]), &second)
	if first["level"] != "debug" || second["level"] != "warn" {
		t.Errorf("unexpected levels %v / %v", first["level"], second["level"])
	}
	if first[logger.FieldRequestID] == nil {
		t.Error("expected request id field")
	}
}

func TestRequestLogger_SkipsHealth(t *testing.T) {
	log, buf := jsonLogger()
	rr := serve(newEngine(middleware.RequestLogger(log)), httptest.NewRequest("GET", "/health", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func TestMetrics_RecordsRequests(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(middleware.Metrics(m))
	serve(e, httptest.NewRequest("GET", "/ok", http.NoBody))
	serve(e, httptest.NewRequest("GET", "/ok", http.NoBody))
	serve(e, httptest.NewRequest("GET", "/nowhere", http.NoBody))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}

	byRoute := map[string]int64{}
	var active int64 = -1
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch metric.Name {
				case observability.MetricRequestTotal:
					route, _ := dp.Attributes.Value("route")
					byRoute[route.AsString()] += dp.Value
				case observability.MetricRequestActive:
					active = dp.Value
				}
			}
		}
	}
	if byRoute["/ok"] != 2 || byRoute["unmatched"] != 1 {
		t.Errorf("unexpected request counts %v", byRoute)
	}
	if active != 0 {
		t.Errorf("expected no in-flight requests, got %d", active)
	}
}
