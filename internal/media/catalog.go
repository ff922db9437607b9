package media

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Catalog indexes recordings and photos in an embedded sqlite database so the
// API can list them without scanning the filesystem.
type Catalog struct {
	db *sql.DB
}

type MediaEntry struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file_name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL UNIQUE,
	size_bytes INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS photos (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL UNIQUE,
	size_bytes INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// OpenCatalog opens (creating if needed) the catalog database in the media
// root directory.
func OpenCatalog(rootDir string) (*Catalog, error) {
	db, err := sql.Open("sqlite", filepath.Join(rootDir, "catalog.db"))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Catalog) AddRecording(ctx context.Context, fileName string, sizeBytes int64) (uuid.UUID, error) {
	return c.insert(ctx, "recordings", fileName, sizeBytes)
}

func (c *Catalog) AddPhoto(ctx context.Context, fileName string, sizeBytes int64) (uuid.UUID, error) {
	return c.insert(ctx, "photos", fileName, sizeBytes)
}

func (c *Catalog) insert(ctx context.Context, table, fileName string, sizeBytes int64) (uuid.UUID, error) {
	id := uuid.New()
	query := fmt.Sprintf(
		"INSERT INTO %s (id, file_name, size_bytes, created_at) VALUES (?, ?, ?, ?)", table)
	if _, err := c.db.ExecContext(ctx, query, id.String(), fileName, sizeBytes, time.Now().UTC()); err != nil {
		return uuid.Nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}

func (c *Catalog) ListRecordings(ctx context.Context) ([]MediaEntry, error) {
	return c.list(ctx, "recordings")
}

func (c *Catalog) ListPhotos(ctx context.Context) ([]MediaEntry, error) {
	return c.list(ctx, "photos")
}

func (c *Catalog) list(ctx context.Context, table string) ([]MediaEntry, error) {
	query := fmt.Sprintf(
		"SELECT id, file_name, size_bytes, created_at FROM %s ORDER BY created_at DESC", table)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	entries := make([]MediaEntry, 0)
	for rows.Next() {
		var e MediaEntry
		var id string
		if err := rows.Scan(&id, &e.FileName, &e.SizeBytes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		e.ID, _ = uuid.Parse(id)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
