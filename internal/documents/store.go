// Package documents stores the study material users upload and runs the
// study tools over its extracted text.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// UserDocument is an uploaded study document with its extracted text.
type UserDocument struct {
	bun.BaseModel `bun:"table:user_documents,alias:ud"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	OwnerID          string    `bun:"owner_id,notnull" json:"-"`
	Title            string    `bun:"title,notnull" json:"title"`
	OriginalFilename string    `bun:"original_filename,notnull" json:"original_filename"`
	ContentType      string    `bun:"content_type,nullzero" json:"content_type"`
	FilePath         string    `bun:"file_path,notnull" json:"-"`
	TextContent      string    `bun:"text_content,notnull" json:"-"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Store persists user documents.
type Store interface {
	// Create inserts doc and fills in its ID and CreatedAt.
	Create(ctx context.Context, doc *UserDocument) error
	// Get returns ErrNotFound when no document has id.
	Get(ctx context.Context, id int64) (*UserDocument, error)
	// ListByOwner returns the owner's documents in upload order.
	ListByOwner(ctx context.Context, ownerID string) ([]UserDocument, error)
}

// MemoryStore keeps documents in process. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	docs   []UserDocument
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BunStore)(nil)
)

func (m *MemoryStore) Create(_ context.Context, doc *UserDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	doc.ID = m.nextID
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = m.now().UTC()
	}
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*UserDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.docs {
		if m.docs[i].ID == id {
			doc := m.docs[i]
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]UserDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []UserDocument{}
	for _, d := range m.docs {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

// BunStore keeps documents in Postgres.
type BunStore struct {
	db *bun.DB
}

// NewBunStore wraps db.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// Migrate creates the user_documents table when it does not exist.
func (s *BunStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*UserDocument)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating user_documents: %w", err)
	}
	_, err := s.db.NewCreateIndex().
		Model((*UserDocument)(nil)).
		Index("user_documents_owner_idx").
		Column("owner_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating user_documents owner index: %w", err)
	}
	return nil
}

func (s *BunStore) Create(ctx context.Context, doc *UserDocument) error {
	if _, err := s.db.NewInsert().Model(doc).Returning("id, created_at").Exec(ctx); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, id int64) (*UserDocument, error) {
	doc := new(UserDocument)
	err := s.db.NewSelect().Model(doc).Where("ud.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %d: %w", id, err)
	}
	return doc, nil
}

func (s *BunStore) ListByOwner(ctx context.Context, ownerID string) ([]UserDocument, error) {
	docs := []UserDocument{}
	if err := s.listQuery(&docs, ownerID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

func (s *BunStore) listQuery(docs *[]UserDocument, ownerID string) *bun.SelectQuery {
	return s.db.NewSelect().Model(docs).Where("ud.owner_id = ?", ownerID).OrderExpr("ud.id ASC")
}
