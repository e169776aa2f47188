package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/campusd/internal/http"

// intentKey is the echo context key under which the chat handler leaves
// the classified intent for the metrics middleware.
const intentKey = "campusd.intent"

// Route groups used as the route_group attribute.
const (
	groupOps       = "ops"
	groupChat      = "chat"
	groupRetrieval = "retrieval"
	groupIndex     = "index"
	groupCampus    = "campus"
	groupStudy     = "study"
	groupUnmatched = "unmatched"
)

// apiRoute is the metric identity of a registered route.
type apiRoute struct {
	group     string
	operation string
}

var apiRoutes = map[string]apiRoute{
	"/health":                        {groupOps, "health"},
	"/metrics":                       {groupOps, "metrics"},
	"/api/v1/chat":                   {groupChat, "chat"},
	"/api/v1/retrieve":               {groupRetrieval, "retrieve"},
	"/api/v1/index":                  {groupIndex, "stats"},
	"/api/v1/index/reload":           {groupIndex, "reload"},
	"/api/v1/timetable":              {groupCampus, "timetable"},
	"/api/v1/bus_schedule":           {groupCampus, "bus_schedule"},
	"/api/v1/events":                 {groupCampus, "events"},
	"/api/v1/exams":                  {groupCampus, "exams"},
	"/api/v1/faculty_directory":      {groupCampus, "faculty_directory"},
	"/api/v1/faqs":                   {groupCampus, "faqs"},
	"/api/v1/study/documents":        {groupStudy, "list"},
	"/api/v1/study/documents/upload": {groupStudy, "upload"},
}

const studyDocumentPrefix = "/api/v1/study/documents/:id/"

// classifyRoute maps an echo route template to its group and operation.
// Per-document study routes share one group and are told apart by the
// trailing operation (summarize, quiz, qa). Requests that matched no route
// collapse into a single unmatched bucket.
func classifyRoute(path string) apiRoute {
	if r, ok := apiRoutes[path]; ok {
		return r
	}
	if op, ok := strings.CutPrefix(path, studyDocumentPrefix); ok && op != "" && !strings.Contains(op, "/") {
		return apiRoute{groupStudy, op}
	}
	return apiRoute{groupUnmatched, groupUnmatched}
}

// statusClass buckets a status code as "2xx", "4xx", ...
func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// APIMetrics records per-route request counts and latency for the campusd
// API, plus chat traffic by intent and rejected requests by status.
type APIMetrics struct {
	logger   *zap.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
	chats    metric.Int64Counter
	rejected metric.Int64Counter
}

// NewAPIMetrics creates APIMetrics on the meter provider mp. A nil mp uses
// the global provider.
func NewAPIMetrics(mp metric.MeterProvider, logger *zap.Logger) *APIMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := mp.Meter(httpInstrumentationName)
	m := &APIMetrics{logger: logger}

	var err error
	m.requests, err = meter.Int64Counter(
		"campusd.api.requests",
		metric.WithDescription("API requests by route group, operation and status class."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"campusd.api.request_duration_seconds",
		metric.WithDescription("API request latency by route group and operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.chats, err = meter.Int64Counter(
		"campusd.api.chat_replies",
		metric.WithDescription("Answered chat messages by classified intent."),
		metric.WithUnit("{reply}"),
	)
	if err != nil {
		logger.Warn("failed to create chat counter", zap.Error(err))
	}

	m.rejected, err = meter.Int64Counter(
		"campusd.api.rejected_requests",
		metric.WithDescription("Requests answered with a 4xx status, by route group and status."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create rejection counter", zap.Error(err))
	}
	return m
}

// Middleware records one observation per request. It must run outside the
// middleware that hands errors to the error handler, so the status it reads
// is the one written to the client.
func (m *APIMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			ctx := c.Request().Context()
			route := classifyRoute(c.Path())
			status := c.Response().Status
			base := []attribute.KeyValue{
				attribute.String("route_group", route.group),
				attribute.String("operation", route.operation),
			}

			if m.requests != nil {
				attrs := append(base, attribute.String("status_class", statusClass(status)))
				m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(base...))
			}
			if in, ok := c.Get(intentKey).(string); ok && m.chats != nil {
				m.chats.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", in)))
			}
			if status >= 400 && status < 500 && m.rejected != nil {
				m.rejected.Add(ctx, 1, metric.WithAttributes(
					attribute.String("route_group", route.group),
					attribute.Int("status", status),
				))
			}
			return err
		}
	}
}
