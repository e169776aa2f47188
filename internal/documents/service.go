package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/campusd/internal/logging"
	"github.com/fyrsmithlabs/campusd/internal/sanitize"
	"github.com/fyrsmithlabs/campusd/internal/study"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for missing documents and for documents owned
	// by someone else.
	ErrNotFound = errors.New("document not found")

	// ErrExtractionFailed is returned when an upload yields no text.
	ErrExtractionFailed = errors.New("could not extract text from the uploaded document")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("document exceeds the upload size limit")

	// ErrInvalidOwner is returned for owner ids that cannot name a directory.
	ErrInvalidOwner = errors.New("invalid owner id")

	// ErrInvalidQuestionCount is returned for quiz requests asking for fewer
	// than one question.
	ErrInvalidQuestionCount = errors.New("num_questions must be at least 1")
)

// ExtractionFailedMessage is shown to users when an upload yields no text.
const ExtractionFailedMessage = "Could not extract text from the uploaded document."

const (
	// DefaultMaxUploadBytes caps uploads when no limit is configured.
	DefaultMaxUploadBytes int64 = 20 << 20

	// DefaultQuestions is the quiz size when the caller does not ask for one.
	DefaultQuestions = 5
)

// Summary is a document's extractive summary.
type Summary struct {
	DocumentID int64  `json:"document_id"`
	Summary    string `json:"summary"`
}

// Quiz holds the questions generated from a document.
type Quiz struct {
	DocumentID int64                `json:"document_id"`
	Questions  []study.QuizQuestion `json:"questions"`
}

// Answer is the best-matching paragraph for a question.
type Answer struct {
	DocumentID int64  `json:"document_id"`
	Answer     string `json:"answer"`
}

// Service uploads documents and runs the study tools over them.
type Service struct {
	store     Store
	uploadDir string
	maxBytes  int64
	seed      func() uint64
	logger    *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxUploadBytes limits the size of uploaded files.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithSeedSource sets where quiz seeds come from. Each quiz draws one seed.
func WithSeedSource(seed func() uint64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService stores uploads under uploadDir.
func NewService(store Store, uploadDir string, opts ...Option) *Service {
	s := &Service{
		store:     store,
		uploadDir: uploadDir,
		maxBytes:  DefaultMaxUploadBytes,
		seed:      rand.Uint64,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload saves the file as {uploadDir}/user_{owner}/{basename}, extracts
// its text and records the document. A later upload with the same name
// replaces the stored file.
func (s *Service) Upload(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (*UserDocument, error) {
	if err := sanitize.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOwner, err)
	}
	name := sanitize.Filename(filename)

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		uploadsTotal.WithLabelValues("too_large").Inc()
		return nil, ErrTooLarge
	}

	dir := filepath.Join(s.uploadDir, "user_"+ownerID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	dest, err := sanitize.ValidatePath(filepath.Join(dir, name), s.uploadDir)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	text, err := ExtractText(dest, contentType)
	if err != nil {
		s.logger.Warn(ctx, "text extraction failed",
			zap.String("file", name),
			zap.String("content_type", contentType),
			zap.Error(err))
		uploadsTotal.WithLabelValues("extraction_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if text == "" {
		uploadsTotal.WithLabelValues("extraction_failed").Inc()
		return nil, ErrExtractionFailed
	}

	doc := &UserDocument{
		OwnerID:          ownerID,
		Title:            name,
		OriginalFilename: name,
		ContentType:      contentType,
		FilePath:         dest,
		TextContent:      text,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}
	uploadsTotal.WithLabelValues("success").Inc()
	s.logger.Info(ctx, "document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.String("format", string(DetectFormat(dest, contentType))),
		zap.Int("bytes", len(data)))
	return doc, nil
}

// List returns the owner's documents.
func (s *Service) List(ctx context.Context, ownerID string) ([]UserDocument, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Get returns the document when ownerID owns it, ErrNotFound otherwise.
func (s *Service) Get(ctx context.Context, ownerID string, id int64) (*UserDocument, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Summarize returns the extractive summary of a document.
func (s *Service) Summarize(ctx context.Context, ownerID string, id int64) (*Summary, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	studyOpsTotal.WithLabelValues("summarize").Inc()
	return &Summary{DocumentID: doc.ID, Summary: study.Summarize(doc.TextContent)}, nil
}

// Quiz generates up to n fill-in-the-blank questions from a document.
// Failures to build a quiz wrap study.ErrInsufficientContent.
func (s *Service) Quiz(ctx context.Context, ownerID string, id int64, n int) (*Quiz, error) {
	if n < 1 {
		return nil, ErrInvalidQuestionCount
	}
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	studyOpsTotal.WithLabelValues("quiz").Inc()
	questions, err := study.GenerateQuiz(doc.TextContent, n, study.NewRand(s.seed()))
	if err != nil {
		return nil, err
	}
	return &Quiz{DocumentID: doc.ID, Questions: questions}, nil
}

// Ask answers question with the best-matching paragraph of a document.
func (s *Service) Ask(ctx context.Context, ownerID string, id int64, question string) (*Answer, error) {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	studyOpsTotal.WithLabelValues("qa").Inc()
	return &Answer{DocumentID: doc.ID, Answer: study.Answer(doc.TextContent, question)}, nil
}
