// Package chat routes a campus question either to a structured-data lookup
// or to retrieval plus answer synthesis, based on its intent.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/answer"
	"github.com/fyrsmithlabs/campusd/internal/campus"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/intent"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/fyrsmithlabs/campusd/internal/chat"

// RetrievalTopK is how many chunks a retrieval-backed answer considers.
const RetrievalTopK = 3

// Lead sentences for the structured fast paths.
const (
	LeadTimetable      = "Here's your timetable:"
	LeadTimetableToday = "Here's your timetable for today (%s):"
	LeadBus            = "Here are the bus schedules:"
	LeadEvents         = "Here are upcoming events:"
	LeadExams          = "Here's the exam schedule:"
)

// Retriever returns the chunks nearest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, text string, topK int) ([]index.RetrievedChunk, error)
}

// Request is a chat message.
type Request struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// Response is a reply discriminated by Intent. At most one payload field is
// set, the one matching Intent; the rest are nil and encode as null.
type Response struct {
	Answer    string                  `json:"answer"`
	Intent    intent.Intent           `json:"intent"`
	Timetable []campus.TimetableEntry `json:"timetable"`
	BusRoutes []campus.BusRoute       `json:"bus_routes"`
	Events    []campus.CampusEvent    `json:"events"`
	Exams     []campus.ExamSchedule   `json:"exams"`
	FAQs      []campus.FAQ            `json:"faqs"`
}

// Router dispatches chat messages.
type Router struct {
	classifier *intent.Classifier
	source     campus.Source
	retriever  Retriever
	logger     *logging.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithClock overrides the time source used for "today" lookups.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a router over structured data and a retriever.
func NewRouter(source campus.Source, retriever Retriever, opts ...Option) *Router {
	r := &Router{
		classifier: intent.NewClassifier(nil),
		source:     source,
		retriever:  retriever,
		logger:     logging.NewNop(),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route answers a message. Errors come only from the structured data
// source; retrieval failures degrade to the fallback answer.
func (r *Router) Route(ctx context.Context, req Request) (*Response, error) {
	ctx, span := r.tracer.Start(ctx, "chat.Route")
	defer span.End()

	in := r.classifier.Classify(req.Message)
	span.SetAttributes(attribute.String("chat.intent", in.String()))
	requestsTotal.WithLabelValues(in.String()).Inc()

	resp := &Response{Intent: in}
	var err error
	switch in {
	case intent.Timetable:
		err = r.timetable(ctx, req.Message, resp)
	case intent.BusSchedule:
		resp.Answer = LeadBus
		resp.BusRoutes, err = r.source.BusRoutes(ctx, campus.BusFilter{Limit: campus.ChatLimit})
	case intent.Events:
		resp.Answer = LeadEvents
		resp.Events, err = r.source.Events(ctx, campus.EventFilter{Limit: campus.ChatLimit})
	case intent.Exams:
		resp.Answer = LeadExams
		resp.Exams, err = r.source.Exams(ctx, campus.ExamFilter{Limit: campus.ChatLimit})
	case intent.FAQ:
		resp.Answer = r.retrieve(ctx, req.Message)
		resp.FAQs, err = r.source.FAQs(ctx, campus.FAQFilter{Limit: campus.FAQChatLimit})
	default:
		resp.Answer = r.retrieve(ctx, req.Message)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s lookup: %w", in, err)
	}

	r.logger.Debug(ctx, "chat routed",
		zap.String("intent", in.String()),
		zap.Int("answer_len", len(resp.Answer)),
	)
	return resp, nil
}

func (r *Router) timetable(ctx context.Context, message string, resp *Response) error {
	f := campus.TimetableFilter{Limit: campus.ChatLimit}
	resp.Answer = LeadTimetable
	if strings.Contains(strings.ToLower(message), "today") {
		day := campus.WeekdayCode(r.now())
		f.DayOfWeek = day
		resp.Answer = fmt.Sprintf(LeadTimetableToday, day)
	}
	rows, err := r.source.Timetable(ctx, f)
	if err != nil {
		return err
	}
	resp.Timetable = rows
	return nil
}

// retrieve synthesizes an answer from the nearest chunks. A nil retriever or
// a retrieval error yields the fallback answer.
func (r *Router) retrieve(ctx context.Context, message string) string {
	if r.retriever == nil {
		return answer.Fallback
	}
	chunks, err := r.retriever.Retrieve(ctx, message, RetrievalTopK)
	if err != nil {
		retrievalErrorsTotal.Inc()
		r.logger.Warn(ctx, "retrieval failed, answering with fallback", zap.Error(err))
		return answer.Fallback
	}
	return answer.Synthesize(chunks)
}
