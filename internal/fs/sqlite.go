package fs

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/tickos/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps program images in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the image database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "imagestore"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the images table and its indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// Put stores data under path, replacing any previous image.
func (s *SQLiteStore) Put(ctx context.Context, path string, data []byte) (*model.ImageInfo, error) {
	p := CleanPath(path)
	if p == "" {
		return nil, fmt.Errorf("put %q: invalid image path", path)
	}
	sum := sha256.Sum256(data)
	now := time.Now().UTC()
	info := &model.ImageInfo{
		Path:      p,
		Size:      int64(len(data)),
		SHA256:    hex.EncodeToString(sum[:]),
		CreatedAt: now,
	}

	s.logger.Debug("sql", "op", "upsert", "table", "images", "path", p, "size", info.Size)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (path, data, size, sha256, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   data = excluded.data, size = excluded.size,
		   sha256 = excluded.sha256, updated_at = excluded.updated_at`,
		p, data, info.Size, info.SHA256,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("put image %s: %w", p, err)
	}
	return info, nil
}

// Get returns the bytes stored under path.
func (s *SQLiteStore) Get(ctx context.Context, path string) ([]byte, error) {
	p := CleanPath(path)
	if p == "" {
		return nil, notExist(path)
	}
	s.logger.Debug("sql", "op", "select", "table", "images", "path", p)
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM images WHERE path = ?`, p).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notExist(path)
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", p, err)
	}
	return data, nil
}

// List returns metadata for every stored image, ordered by path.
func (s *SQLiteStore) List(ctx context.Context) ([]*model.ImageInfo, error) {
	s.logger.Debug("sql", "op", "select", "table", "images")
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, size, sha256, created_at FROM images ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var out []*model.ImageInfo
	for rows.Next() {
		var info model.ImageInfo
		var createdAt string
		if err := rows.Scan(&info.Path, &info.Size, &info.SHA256, &createdAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &info)
	}
	return out, rows.Err()
}

// Delete removes the image at path. Deleting a missing image is an error
// wrapping io/fs.ErrNotExist.
func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	p := CleanPath(path)
	s.logger.Debug("sql", "op", "delete", "table", "images", "path", p)
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE path = ?`, p)
	if err != nil {
		return fmt.Errorf("delete image %s: %w", p, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notExist(path)
	}
	return nil
}

// Lookup implements FileSystem. The image is read eagerly so a later
// Delete cannot race the reader.
func (s *SQLiteStore) Lookup(ctx context.Context, path string) (INode, error) {
	data, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return bytesNode(data), nil
}
