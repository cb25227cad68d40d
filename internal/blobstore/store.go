package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"deckport/internal/logging"
)

// IndexFileName is the bbolt database that maps object paths to content.
const IndexFileName = "index.db"

var bucketObjects = []byte("objects")

// ErrNotFound is returned when no object is stored at a path.
var ErrNotFound = errors.New("object not found")

// Attributes are stored alongside an object's bytes.
type Attributes struct {
	ContentType string
	Public      bool
	AccessToken string
	Owner       string
}

// Object describes a stored object.
type Object struct {
	Path        string    `json:"path"`
	Digest      string    `json:"digest"`
	ContentType string    `json:"contentType"`
	Public      bool      `json:"public"`
	AccessToken string    `json:"accessToken"`
	Owner       string    `json:"owner"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"storedAt"`
}

// Store is a content-addressed blob store. Bytes live under dir keyed by their
// SHA-256 digest and a bbolt index maps object paths to digests and attributes.
// Identical content stored at several paths occupies disk once.
type Store struct {
	dir    string
	db     *bolt.DB
	logger *slog.Logger
	now    func() time.Time
}

// New opens or creates a store rooted at dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, IndexFileName), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open blob index: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketObjects)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init blob index: %w", err)
	}
	return &Store{
		dir:    dir,
		db:     db,
		logger: logging.NewComponentLogger(logger, "blobstore"),
		now:    time.Now,
	}, nil
}

// Close releases the index.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store writes data at objectPath, replacing any previous object there.
func (s *Store) Store(ctx context.Context, objectPath string, data []byte, attrs Attributes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectPath = strings.Trim(objectPath, "/")
	if objectPath == "" {
		return errors.New("object path is required")
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if err := s.writeContent(digest, data); err != nil {
		return err
	}

	obj := Object{
		Path:        objectPath,
		Digest:      digest,
		ContentType: attrs.ContentType,
		Public:      attrs.Public,
		AccessToken: attrs.AccessToken,
		Owner:       attrs.Owner,
		Size:        int64(len(data)),
		StoredAt:    s.now().UTC(),
	}
	encoded, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode object %s: %w", objectPath, err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketObjects).Put([]byte(objectPath), encoded)
	}); err != nil {
		return fmt.Errorf("index object %s: %w", objectPath, err)
	}
	s.logger.Debug("object stored",
		logging.String(logging.FieldAssetPath, objectPath),
		logging.String("digest", digest),
		logging.Int64("size", obj.Size))
	return nil
}

// Stat returns the object's metadata.
func (s *Store) Stat(ctx context.Context, objectPath string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	var obj Object
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketObjects).Get([]byte(strings.Trim(objectPath, "/")))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &obj)
	})
	if err != nil {
		return Object{}, err
	}
	return obj, nil
}

// Open returns a reader over the object's bytes. The caller closes it.
func (s *Store) Open(ctx context.Context, objectPath string) (*os.File, Object, error) {
	obj, err := s.Stat(ctx, objectPath)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := os.Open(s.contentPath(obj.Digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, fmt.Errorf("open object %s: %w", obj.Path, err)
	}
	return f, obj, nil
}

// List returns objects whose path starts with prefix, ordered by path.
func (s *Store) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Object
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketObjects).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var obj Object
			if err := json.Unmarshal(v, &obj); err != nil {
				return fmt.Errorf("decode object %s: %w", k, err)
			}
			out = append(out, obj)
		}
		return nil
	})
	return out, err
}

func (s *Store) contentPath(digest string) string {
	return filepath.Join(s.dir, digest[:2], digest)
}

func (s *Store) writeContent(digest string, data []byte) error {
	dest := s.contentPath(digest)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create content directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".blob-*")
	if err != nil {
		return fmt.Errorf("create content file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close content: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("commit content: %w", err)
	}
	return nil
}

// AccessURL builds the tokenized download URL for an object. Path separators
// are encoded so the object path travels as a single URL segment.
func AccessURL(publicBaseURL, bucket, objectPath, token string) string {
	parts := strings.Split(strings.Trim(objectPath, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s",
		strings.TrimRight(publicBaseURL, "/"),
		url.PathEscape(bucket),
		strings.Join(parts, "%2F"),
		url.QueryEscape(token))
}
