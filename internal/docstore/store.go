package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"deckport/internal/logging"
)

var (
	// ErrNotFound is returned when no document exists at a path.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by CreateIfAbsent when the path is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrInvalidPath is returned for paths that do not name a document.
	ErrInvalidPath = errors.New("invalid document path")
)

// Fields is the content of a document.
type Fields map[string]any

// Document is a stored record.
type Document struct {
	Path      string
	ID        string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String returns a string field or "".
func (d Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Int returns a numeric field truncated to an integer.
func (d Document) Int(key string) int64 {
	switch v := d.Fields[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Bool returns a boolean field or false.
func (d Document) Bool(key string) bool {
	b, _ := d.Fields[key].(bool)
	return b
}

// Store persists documents in a hierarchical namespace backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open initializes or connects to the document database at dbPath.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create document store directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps batch transactions and reads strictly serialized.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &Store{
		db:     db,
		path:   dbPath,
		logger: logging.NewComponentLogger(logger, "docstore"),
		now:    time.Now,
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path reports the database file location.
func (s *Store) Path() string { return s.path }

// CreateIfAbsent writes a new document and fails with ErrAlreadyExists when
// one is already stored at docPath.
func (s *Store) CreateIfAbsent(ctx context.Context, docPath string, fields Fields) error {
	collection, id, err := splitDocumentPath(docPath)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", docPath, err)
	}
	stamp := s.timestamp()

	var affected int64
	err = withBusyRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `INSERT INTO documents (path, collection, doc_id, fields, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(path) DO NOTHING`,
			collection+"/"+id, collection, id, string(encoded), stamp, stamp)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", docPath, err)
	}
	if affected == 0 {
		return fmt.Errorf("create %s: %w", docPath, ErrAlreadyExists)
	}
	return nil
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, docPath string) (Document, error) {
	collection, id, err := splitDocumentPath(docPath)
	if err != nil {
		return Document{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT path, doc_id, fields, created_at, updated_at FROM documents WHERE path = ?`, collection+"/"+id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("get %s: %w", docPath, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", docPath, err)
	}
	return doc, nil
}

// List returns the documents directly inside a collection in creation order.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, doc_id, fields, created_at, updated_at FROM documents WHERE collection = ? ORDER BY seq`,
		strings.Trim(collection, "/"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents directly inside a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents WHERE collection = ?`,
		strings.Trim(collection, "/")).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// DeleteTree removes a document and everything nested beneath it. It returns
// the number of documents removed.
func (s *Store) DeleteTree(ctx context.Context, docPath string) (int64, error) {
	collection, id, err := splitDocumentPath(docPath)
	if err != nil {
		return 0, err
	}
	full := collection + "/" + id
	var removed int64
	err = withBusyRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM documents WHERE path = ? OR path LIKE ? ESCAPE '\'`,
			full, escapeLike(full)+"/%")
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", docPath, err)
	}
	s.logger.Debug("document tree deleted", logging.String("path", full), logging.Int64("removed", removed))
	return removed, nil
}

// CommitBatch applies every write in b inside one transaction. Either all
// writes become visible or none do.
func (s *Store) CommitBatch(ctx context.Context, b *Batch) error {
	if b == nil || len(b.writes) == 0 {
		return nil
	}
	for _, w := range b.writes {
		if _, _, err := splitDocumentPath(w.path); err != nil {
			return err
		}
	}
	err := withBusyRetry(ctx, func() error { return s.commit(ctx, b) })
	if err != nil {
		return fmt.Errorf("commit batch of %d writes: %w", len(b.writes), err)
	}
	return nil
}

func (s *Store) commit(ctx context.Context, b *Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stamp := s.timestamp()
	for _, w := range b.writes {
		collection, id, _ := splitDocumentPath(w.path)
		full := collection + "/" + id
		fields := w.fields
		if w.merge {
			var existing string
			err := tx.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, full).Scan(&existing)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return err
			default:
				merged := Fields{}
				if err := json.Unmarshal([]byte(existing), &merged); err != nil {
					return fmt.Errorf("decode %s: %w", full, err)
				}
				maps.Copy(merged, w.fields)
				fields = merged
			}
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode %s: %w", full, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO documents (path, collection, doc_id, fields, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
			full, collection, id, string(encoded), stamp, stamp)
		if err != nil {
			return fmt.Errorf("write %s: %w", full, err)
		}
	}
	return tx.Commit()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var (
		doc              Document
		fields           string
		created, updated string
	)
	if err := row.Scan(&doc.Path, &doc.ID, &fields, &created, &updated); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", doc.Path, err)
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return doc, nil
}
