// Package bolt provides a BoltDB-backed stellarwatch.CursorStore, so watchers
// resume where they stopped across process restarts.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

const (
	// DefaultFilePath is the default path for the BoltDB file
	DefaultFilePath = "stellarwatch-cursors.db"

	// DefaultFileMode is the default file mode for the BoltDB file
	DefaultFileMode = 0600

	// DefaultTimeout is how long Open waits for the file lock
	DefaultTimeout = 1 * time.Second
)

var cursorBucket = []byte("cursors")

// Options configures the BoltDB cursor store.
type Options struct {
	// Path to the BoltDB file
	Path string
	// File mode for the BoltDB file
	FileMode os.FileMode
	// Timeout for acquiring the file lock
	Timeout time.Duration
	// Logger, defaults to a no-op logger
	Logger *zap.Logger
}

type cursorRecord struct {
	Cursor  string    `json:"cursor"`
	SavedAt time.Time `json:"saved_at"`
}

// CursorStore persists cursors in a single BoltDB bucket keyed by watcher key.
type CursorStore struct {
	db     *bolt.DB
	path   string
	logger *zap.Logger
}

// Open creates or opens the database at opts.Path.
func Open(opts *Options) (*CursorStore, error) {
	if opts == nil {
		opts = &Options{}
	}

	// Set default options if not provided
	path := opts.Path
	if path == "" {
		path = DefaultFilePath
	}
	mode := opts.FileMode
	if mode == 0 {
		mode = DefaultFileMode
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("opening cursor database", zap.String("path", path))

	// Make sure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewStoreError(errors.STORE_ERROR, "failed to create directory for database", err).With("path", path)
	}

	db, err := bolt.Open(path, mode, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.NewStoreError(errors.STORE_ERROR, "failed to open BoltDB", err).With("path", path)
	}

	// Initialize the bucket
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cursorBucket)
		return err
	})
	if err != nil {
		// Close the database if initialization fails
		db.Close()
		return nil, errors.NewStoreError(errors.STORE_ERROR, "failed to initialize database", err).With("path", path)
	}

	return &CursorStore{db: db, path: path, logger: logger}, nil
}

// Close closes the database.
func (s *CursorStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("closing cursor database", zap.String("path", s.path))
	return s.db.Close()
}

// Load returns the cursor saved under key, or "" if none was saved.
func (s *CursorStore) Load(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewStoreError(errors.STORE_ERROR, "load cancelled", err)
	}

	var rec cursorRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cursorBucket)
		if b == nil {
			return fmt.Errorf("cursors bucket not found")
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return "", errors.NewStoreError(errors.STORE_ERROR, "failed to load cursor", err).With("key", key)
	}
	return rec.Cursor, nil
}

// Save records cursor under key, replacing any previous value.
func (s *CursorStore) Save(ctx context.Context, key string, cursor string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStoreError(errors.STORE_ERROR, "save cancelled", err)
	}

	data, err := json.Marshal(cursorRecord{Cursor: cursor, SavedAt: time.Now().UTC()})
	if err != nil {
		return errors.NewStoreError(errors.STORE_ERROR, "failed to marshal cursor", err).With("key", key)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(cursorBucket)
		if b == nil {
			return fmt.Errorf("cursors bucket not found")
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return errors.NewStoreError(errors.STORE_ERROR, "failed to save cursor", err).With("key", key)
	}

	s.logger.Debug("cursor saved", zap.String("key", key), zap.String("cursor", cursor))
	return nil
}

// Verify that CursorStore implements stellarwatch.CursorStore
var _ stellarwatch.CursorStore = (*CursorStore)(nil)
