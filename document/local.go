package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const localSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	tenant     TEXT NOT NULL,
	agent      TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	doc_key    TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	metadata   TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_type_key
	ON documents(tenant, agent, doc_type, doc_key) WHERE doc_key <> '';
`

// Local is the in-memory SQLite provider used in local mode. State does not
// survive process restarts.
type Local struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLocal opens the in-memory store and creates the schema.
func NewLocal() (*Local, error) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open local document store: %w", err)
	}
	// A single connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(localSchema); err != nil {
		return nil, fmt.Errorf("create document schema: %w", err)
	}
	return &Local{db: db, now: time.Now}, nil
}

// Close releases the underlying database.
func (l *Local) Close() error { return l.db.Close() }

type docRow struct {
	ID        string         `db:"id"`
	Tenant    string         `db:"tenant"`
	Agent     string         `db:"agent"`
	Type      string         `db:"doc_type"`
	Key       string         `db:"doc_key"`
	Content   string         `db:"content"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	ExpiresAt sql.NullTime   `db:"expires_at"`
}

func (r docRow) document() (*Document, error) {
	doc := &Document{
		ID:        r.ID,
		TenantID:  r.Tenant,
		Agent:     r.Agent,
		Type:      r.Type,
		Key:       r.Key,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Content), &doc.Content); err != nil {
		return nil, fmt.Errorf("decode document content: %w", err)
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		if err := json.Unmarshal([]byte(r.Metadata.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		doc.ExpiresAt = &t
	}
	return doc, nil
}

func (l *Local) Save(ctx context.Context, doc Document, opts SaveOptions) (*Document, error) {
	now := l.now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if opts.TTL > 0 {
		expires := now.Add(opts.TTL)
		doc.ExpiresAt = &expires
	}

	content, err := json.Marshal(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("encode document content: %w", err)
	}
	var metadata any
	if doc.Metadata != nil {
		raw, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode document metadata: %w", err)
		}
		metadata = string(raw)
	}

	var expires any
	if doc.ExpiresAt != nil {
		expires = doc.ExpiresAt.UTC()
	}

	if opts.UseKeyAsIdentifier && doc.Key != "" {
		_, err = l.db.ExecContext(ctx, `
			INSERT INTO documents (id, tenant, agent, doc_type, doc_key, content, metadata, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant, agent, doc_type, doc_key) WHERE doc_key <> '' DO UPDATE SET
				content = excluded.content,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at,
				expires_at = excluded.expires_at`,
			doc.ID, doc.TenantID, doc.Agent, doc.Type, doc.Key, string(content), metadata, now, now, expires)
		if err != nil {
			return nil, fmt.Errorf("upsert document: %w", err)
		}
		return l.GetByKey(ctx, doc.TenantID, doc.Agent, doc.Type, doc.Key)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO documents (id, tenant, agent, doc_type, doc_key, content, metadata, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.TenantID, doc.Agent, doc.Type, doc.Key, string(content), metadata, now, now, expires)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &doc, nil
}

func (l *Local) Get(ctx context.Context, tenant, agent, id string) (*Document, error) {
	return l.one(ctx, `
		SELECT * FROM documents
		WHERE tenant = ? AND agent = ? AND id = ?
		  AND (expires_at IS NULL OR expires_at > ?)`,
		tenant, agent, id, l.now().UTC())
}

func (l *Local) GetByKey(ctx context.Context, tenant, agent, docType, key string) (*Document, error) {
	return l.one(ctx, `
		SELECT * FROM documents
		WHERE tenant = ? AND agent = ? AND doc_type = ? AND doc_key = ?
		  AND (expires_at IS NULL OR expires_at > ?)`,
		tenant, agent, docType, key, l.now().UTC())
}

func (l *Local) one(ctx context.Context, query string, args ...any) (*Document, error) {
	var row docRow
	err := l.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	return row.document()
}

func (l *Local) Query(ctx context.Context, tenant, agent string, filter Filter) ([]Document, error) {
	query := `
		SELECT * FROM documents
		WHERE tenant = ? AND agent = ?
		  AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{tenant, agent, l.now().UTC()}
	if filter.Type != "" {
		query += " AND doc_type = ?"
		args = append(args, filter.Type)
	}
	if len(filter.Keys) > 0 {
		in, inArgs, err := sqlx.In(" AND doc_key IN (?)", filter.Keys)
		if err != nil {
			return nil, fmt.Errorf("build key filter: %w", err)
		}
		query += in
		args = append(args, inArgs...)
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []docRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (l *Local) Update(ctx context.Context, doc Document) (bool, error) {
	content, err := json.Marshal(doc.Content)
	if err != nil {
		return false, fmt.Errorf("encode document content: %w", err)
	}
	var metadata any
	if doc.Metadata != nil {
		raw, err := json.Marshal(doc.Metadata)
		if err != nil {
			return false, fmt.Errorf("encode document metadata: %w", err)
		}
		metadata = string(raw)
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE documents SET content = ?, metadata = ?, updated_at = ?
		WHERE tenant = ? AND agent = ? AND id = ?`,
		string(content), metadata, l.now().UTC(), doc.TenantID, doc.Agent, doc.ID)
	if err != nil {
		return false, fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Local) Delete(ctx context.Context, tenant, agent, id string) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM documents WHERE tenant = ? AND agent = ? AND id = ?`,
		tenant, agent, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Local) DeleteMany(ctx context.Context, tenant, agent string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(
		`DELETE FROM documents WHERE tenant = ? AND agent = ? AND id IN (?)`,
		tenant, agent, ids)
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (l *Local) Exists(ctx context.Context, tenant, agent, id string) (bool, error) {
	doc, err := l.Get(ctx, tenant, agent, id)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}
