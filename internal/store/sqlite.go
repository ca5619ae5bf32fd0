package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	signature  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

// SQLitePersister keeps cache entries in a SQLite file so they survive
// restarts. Payloads are stored zstd-compressed.
type SQLitePersister struct {
	db     *sql.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *zap.Logger
}

// OpenSQLite opens (or creates) the cache database at path. A nil logger
// discards output.
func OpenSQLite(path string, logger *zap.Logger) (*SQLitePersister, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// SQLite serializes writers anyway, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &SQLitePersister{db: db, enc: enc, dec: dec, logger: logger.Named("sqlite")}, nil
}

// Save upserts the entry in a single statement.
func (p *SQLitePersister) Save(ctx context.Context, e weather.CacheEntry) error {
	compressed := p.enc.EncodeAll(e.Payload, nil)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO cache_entries (signature, payload, fetched_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		string(e.Signature), compressed, e.FetchedAt.UnixNano(), e.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// LoadFresh returns every entry that has not expired at now. Rows whose
// payload cannot be decompressed are logged and skipped.
func (p *SQLitePersister) LoadFresh(ctx context.Context, now time.Time) ([]weather.CacheEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT signature, payload, fetched_at, expires_at
		FROM cache_entries
		WHERE expires_at > ?`, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	var entries []weather.CacheEntry
	for rows.Next() {
		var (
			sig                  string
			blob                 []byte
			fetchedAt, expiresAt int64
		)
		if err := rows.Scan(&sig, &blob, &fetchedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		payload, err := p.dec.DecodeAll(blob, nil)
		if err != nil {
			// A corrupt row is refetched on demand; keep restoring the rest.
			p.logger.Warn("skipping unreadable cache entry",
				zap.String("signature", sig),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, weather.CacheEntry{
			Signature: weather.Signature(sig),
			Payload:   payload,
			FetchedAt: time.Unix(0, fetchedAt),
			ExpiresAt: time.Unix(0, expiresAt),
		})
	}
	return entries, rows.Err()
}

// Close releases the database and codecs.
func (p *SQLitePersister) Close() error {
	p.dec.Close()
	if err := p.enc.Close(); err != nil {
		p.db.Close()
		return err
	}
	return p.db.Close()
}
