// Package corpus assembles the documents an index is built from.
//
// A TOML manifest names the FAQ and event datasets, inline documents, and
// files or directories of notices. Relative paths are resolved against the
// manifest's directory.
//
//	faqs = "datasets/faqs.csv"
//	events = "datasets/events.csv"
//
//	[[documents]]
//	text = "Notice: Library closed on March 15th for maintenance."
//	source = "notice_2025_03_15"
//
//	[[files]]
//	path = "datasets/notices"
//	pattern = "*.txt"
package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fyrsmithlabs/campusd/internal/answer"
	"github.com/fyrsmithlabs/campusd/internal/campus"
	"github.com/fyrsmithlabs/campusd/internal/documents"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"go.uber.org/zap"
)

var (
	// ErrInvalidManifest is returned for manifests that do not decode or
	// contain unknown keys.
	ErrInvalidManifest = errors.New("invalid corpus manifest")

	// ErrEmptyDocument is returned for inline documents without text or source.
	ErrEmptyDocument = errors.New("document needs text and source")
)

// Source id prefixes for dataset rows. Rows are numbered from 1.
const (
	FAQSourcePrefix   = "faq_"
	EventSourcePrefix = "event_"
)

// supportedExts are the file types picked up from directories without a pattern.
var supportedExts = []string{".txt", ".md", ".markdown", ".pdf", ".docx"}

// Manifest describes a corpus.
type Manifest struct {
	FAQs      string           `toml:"faqs"`
	Events    string           `toml:"events"`
	Documents []index.Document `toml:"documents"`
	Files     []FileSource     `toml:"files"`

	dir string
}

// FileSource is a file or a directory of files. Each file becomes one
// document whose source is its name without extension, unless Source is set
// on a single-file entry.
type FileSource struct {
	Path    string `toml:"path"`
	Pattern string `toml:"pattern"`
	Source  string `toml:"source"`
}

// Load decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	m := &Manifest{}
	meta, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %s: unknown keys %v", ErrInvalidManifest, path, undecoded)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving manifest dir: %w", err)
	}
	m.dir = abs
	return m, nil
}

// Dir returns the directory relative paths are resolved against.
func (m *Manifest) Dir() string { return m.dir }

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

// Collect loads every document the manifest names: FAQ rows, event rows,
// inline documents, then files in lexical order. Files without text are
// skipped with a warning.
func (m *Manifest) Collect(ctx context.Context, logger *logging.Logger) ([]index.Document, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var docs []index.Document

	if m.FAQs != "" {
		faqs, err := LoadFAQs(m.resolve(m.FAQs))
		if err != nil {
			return nil, err
		}
		docs = append(docs, faqs...)
	}
	if m.Events != "" {
		events, err := LoadEvents(m.resolve(m.Events))
		if err != nil {
			return nil, err
		}
		docs = append(docs, events...)
	}
	for i, d := range m.Documents {
		if strings.TrimSpace(d.Text) == "" || d.Source == "" {
			return nil, fmt.Errorf("documents[%d]: %w", i, ErrEmptyDocument)
		}
		docs = append(docs, d)
	}
	for _, fs := range m.Files {
		files, err := m.expand(fs)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			text, err := documents.ExtractText(f, "")
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			if text == "" {
				logger.Warn(ctx, "skipping file without text", zap.String("path", f))
				continue
			}
			source := Stem(f)
			if fs.Source != "" && len(files) == 1 {
				source = fs.Source
			}
			docs = append(docs, index.Document{Text: text, Source: source})
		}
	}

	logger.Info(ctx, "corpus collected", zap.Int("documents", len(docs)))
	return docs, nil
}

// expand lists the files a FileSource names.
func (m *Manifest) expand(fs FileSource) ([]string, error) {
	path := m.resolve(fs.Path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("corpus files: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	if fs.Pattern != "" {
		if files, err = filepath.Glob(filepath.Join(path, fs.Pattern)); err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidManifest, fs.Pattern, err)
		}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("corpus files: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && slices.Contains(supportedExts, strings.ToLower(filepath.Ext(e.Name()))) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	}
	slices.Sort(files)
	return files, nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FAQDocuments renders FAQ rows as "FAQ: {question} Answer: {answer}".
func FAQDocuments(rows []campus.FAQ) []index.Document {
	out := make([]index.Document, 0, len(rows))
	for i, r := range rows {
		out = append(out, index.Document{
			Text:   fmt.Sprintf("%s %s %s %s", answer.MarkerFAQ, r.Question, answer.MarkerAnswer, r.Answer),
			Source: fmt.Sprintf("%s%d", FAQSourcePrefix, i+1),
		})
	}
	return out
}

// EventDocuments renders event rows as "Event: {title} Description: {description}".
func EventDocuments(rows []campus.CampusEvent) []index.Document {
	out := make([]index.Document, 0, len(rows))
	for i, r := range rows {
		out = append(out, index.Document{
			Text:   fmt.Sprintf("%s %s %s %s", answer.MarkerEvent, r.Title, answer.MarkerDescription, r.Description),
			Source: fmt.Sprintf("%s%d", EventSourcePrefix, i+1),
		})
	}
	return out
}

// LoadFAQs reads a faqs CSV file into documents.
func LoadFAQs(path string) ([]index.Document, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	rows, err := campus.FAQRows(t)
	if err != nil {
		return nil, err
	}
	return FAQDocuments(rows), nil
}

// LoadEvents reads an events CSV file into documents.
func LoadEvents(path string) ([]index.Document, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	rows, err := campus.EventRows(t)
	if err != nil {
		return nil, err
	}
	return EventDocuments(rows), nil
}

func readTable(path string) (*campus.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	t, err := campus.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return t, nil
}
