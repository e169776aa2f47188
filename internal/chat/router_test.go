package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/campusd/internal/answer"
	"github.com/fyrsmithlabs/campusd/internal/campus"
	"github.com/fyrsmithlabs/campusd/internal/embeddings"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/intent"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"github.com/fyrsmithlabs/campusd/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type stubRetriever struct {
	chunks []index.RetrievedChunk
	err    error
	calls  int
	topK   int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, topK int) ([]index.RetrievedChunk, error) {
	s.calls++
	s.topK = topK
	return s.chunks, s.err
}

// failingSource fails bus route lookups.
type failingSource struct{ campus.MemorySource }

func (*failingSource) BusRoutes(context.Context, campus.BusFilter) ([]campus.BusRoute, error) {
	return nil, errors.New("db down")
}

func source(t *testing.T) *campus.MemorySource {
	t.Helper()
	ctx := context.Background()
	m := campus.NewMemorySource()
	var tt []campus.TimetableEntry
	for i, day := range []string{"MON", "TUE", "MON"} {
		tt = append(tt, campus.TimetableEntry{Program: "BTech", Semester: 1, Section: "A", DayOfWeek: day, StartTime: "09:00:00", EndTime: "10:00:00", CourseCode: "C" + string(rune('0'+i)), CourseTitle: "Course"})
	}
	for i := 0; i < 25; i++ {
		tt = append(tt, campus.TimetableEntry{Program: "BTech", Semester: 2, Section: "B", DayOfWeek: "WED", StartTime: "11:00:00", EndTime: "12:00:00", CourseCode: "W", CourseTitle: "Filler"})
	}
	require.NoError(t, m.AddTimetable(ctx, tt))
	require.NoError(t, m.AddBusRoutes(ctx, []campus.BusRoute{{RouteName: "R1", Origin: "City", Destination: "Campus", DepartureTime: "07:30:00", ArrivalTime: "08:15:00", DaysOfWeek: "MON-FRI"}}))
	require.NoError(t, m.AddEvents(ctx, []campus.CampusEvent{{Title: "Hackathon", StartDate: campus.NewDate(2025, 3, 1)}}))
	require.NoError(t, m.AddExams(ctx, []campus.ExamSchedule{{Program: "BTech", Semester: 1, CourseCode: "C0", CourseTitle: "Course", ExamDate: campus.NewDate(2025, 4, 1), StartTime: "10:00:00", EndTime: "13:00:00"}}))
	var faqs []campus.FAQ
	for i := 0; i < 7; i++ {
		faqs = append(faqs, campus.FAQ{Question: "q", Answer: "a"})
	}
	require.NoError(t, m.AddFAQs(ctx, faqs))
	return m
}

// monday is 2025-01-06.
func monday() time.Time { return time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local) }

func TestRouter_StructuredIntents(t *testing.T) {
	ctx := context.Background()
	ret := &stubRetriever{}
	r := NewRouter(source(t), ret, WithClock(monday))

	t.Run("timetable", func(t *testing.T) {
		resp, err := r.Route(ctx, Request{Message: "show my timetable"})
		require.NoError(t, err)
		assert.Equal(t, intent.Timetable, resp.Intent)
		assert.Equal(t, LeadTimetable, resp.Answer)
		assert.Len(t, resp.Timetable, campus.ChatLimit)
		assert.Nil(t, resp.BusRoutes)
		assert.Nil(t, resp.FAQs)
	})

	t.Run("timetable today", func(t *testing.T) {
		resp, err := r.Route(ctx, Request{Message: "What's my schedule TODAY?"})
		require.NoError(t, err)
		assert.Equal(t, "Here's your timetable for today (MON):", resp.Answer)
		require.Len(t, resp.Timetable, 2)
		for _, e := range resp.Timetable {
			assert.Equal(t, "MON", e.DayOfWeek)
		}
	})

	t.Run("bus", func(t *testing.T) {
		resp, err := r.Route(ctx, Request{Message: "when is the next shuttle"})
		require.NoError(t, err)
		assert.Equal(t, intent.BusSchedule, resp.Intent)
		assert.Equal(t, LeadBus, resp.Answer)
		assert.Len(t, resp.BusRoutes, 1)
		assert.Nil(t, resp.Timetable)
	})

	t.Run("events", func(t *testing.T) {
		resp, err := r.Route(ctx, Request{Message: "any fest coming up"})
		require.NoError(t, err)
		assert.Equal(t, LeadEvents, resp.Answer)
		assert.Len(t, resp.Events, 1)
	})

	t.Run("exams", func(t *testing.T) {
		resp, err := r.Route(ctx, Request{Message: "midterm dates"})
		require.NoError(t, err)
		assert.Equal(t, LeadExams, resp.Answer)
		assert.Len(t, resp.Exams, 1)
	})

	assert.Zero(t, ret.calls, "structured intents never retrieve")
}

func TestRouter_RetrievalIntents(t *testing.T) {
	ctx := context.Background()

	t.Run("faq attaches five rows", func(t *testing.T) {
		ret := &stubRetriever{chunks: []index.RetrievedChunk{{Text: "FAQ: Where can I pay fees? Answer: Accounts office, Block A.", Source: "faq_1"}}}
		r := NewRouter(source(t), ret)
		resp, err := r.Route(ctx, Request{Message: "Where can I pay fees?"})
		require.NoError(t, err)
		assert.Equal(t, intent.FAQ, resp.Intent)
		assert.Equal(t, "Accounts office, Block A.", resp.Answer)
		assert.Len(t, resp.FAQs, campus.FAQChatLimit)
		assert.Equal(t, RetrievalTopK, ret.topK)
	})

	t.Run("faculty uses retrieval only", func(t *testing.T) {
		ret := &stubRetriever{chunks: []index.RetrievedChunk{{Text: "Professor Rao heads CSE. Office in Block B."}}}
		r := NewRouter(source(t), ret)
		resp, err := r.Route(ctx, Request{Message: "who is the professor for CS201"})
		require.NoError(t, err)
		assert.Equal(t, intent.Faculty, resp.Intent)
		assert.Equal(t, "Professor Rao heads CSE.", resp.Answer)
		assert.Nil(t, resp.FAQs)
	})

	t.Run("general with empty retrieval", func(t *testing.T) {
		r := NewRouter(source(t), &stubRetriever{})
		resp, err := r.Route(ctx, Request{Message: "wifi password?"})
		require.NoError(t, err)
		assert.Equal(t, intent.General, resp.Intent)
		assert.Equal(t, answer.Fallback, resp.Answer)
	})

	t.Run("retrieval error degrades to fallback", func(t *testing.T) {
		tl := logging.NewTestLogger()
		r := NewRouter(source(t), &stubRetriever{err: errors.New("embedder offline")}, WithLogger(tl.Logger))
		resp, err := r.Route(ctx, Request{Message: "wifi password?"})
		require.NoError(t, err)
		assert.Equal(t, answer.Fallback, resp.Answer)
		tl.AssertLogged(t, zapcore.WarnLevel, "retrieval failed")
	})

	t.Run("no retriever", func(t *testing.T) {
		r := NewRouter(source(t), nil)
		resp, err := r.Route(ctx, Request{Message: "hello"})
		require.NoError(t, err)
		assert.Equal(t, answer.Fallback, resp.Answer)
	})
}

func TestRouter_AbsentIndex(t *testing.T) {
	engine := retrieval.NewEngine(index.NewStore(nil), embeddings.NewHashProvider(16))
	r := NewRouter(campus.NewMemorySource(), engine)
	resp, err := r.Route(context.Background(), Request{Message: "where is the canteen"})
	require.NoError(t, err)
	assert.Equal(t, answer.Fallback, resp.Answer)
}

func TestRouter_SourceError(t *testing.T) {
	r := NewRouter(&failingSource{}, nil)
	_, err := r.Route(context.Background(), Request{Message: "bus timings"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestResponse_JSONShape(t *testing.T) {
	r := NewRouter(source(t), nil)
	resp, err := r.Route(context.Background(), Request{Message: "bus"})
	require.NoError(t, err)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "bus_schedule_query", m["intent"])
	for _, k := range []string{"timetable", "events", "exams", "faqs"} {
		v, ok := m[k]
		assert.True(t, ok, "field %s present", k)
		assert.Nil(t, v, "field %s null", k)
	}
	assert.NotNil(t, m["bus_routes"])
}
