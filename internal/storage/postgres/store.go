// Package postgres persists normalized articles in the market_news table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS market_news (
		id            BIGSERIAL PRIMARY KEY,
		hash          TEXT NOT NULL UNIQUE,
		title         TEXT NOT NULL,
		url           TEXT NOT NULL,
		source        TEXT NOT NULL,
		published_at  TIMESTAMPTZ NULL,
		summary       TEXT NOT NULL DEFAULT '',
		stock_symbols TEXT[] NOT NULL DEFAULT '{}',
		image_url     TEXT NULL,
		scraped_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_market_news_stock_symbols ON market_news USING GIN (stock_symbols)`,
	`CREATE INDEX IF NOT EXISTS idx_market_news_published_at ON market_news (published_at DESC)`,
}

// Store implements the ingestion store on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// EnsureSchema creates the table and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Symbols returns the tickers stored for fp. The boolean is false when fp is unknown.
func (s *Store) Symbols(ctx context.Context, fp string) ([]string, bool, error) {
	var symbols pq.StringArray
	err := s.db.GetContext(ctx, &symbols, `SELECT stock_symbols FROM market_news WHERE hash = $1`, fp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select symbols: %w", err)
	}
	return []string(symbols), true, nil
}

// Insert stores a new article. A duplicate hash yields domain.ErrAlreadyExists.
func (s *Store) Insert(ctx context.Context, art *domain.NormalizedArticle) error {
	var published sql.NullTime
	if art.PublishedAt != nil {
		published = sql.NullTime{Time: *art.PublishedAt, Valid: true}
	}
	image := sql.NullString{String: art.ImageURL, Valid: art.ImageURL != ""}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_news (hash, title, url, source, published_at, summary, stock_symbols, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		art.Fingerprint, art.Title, art.URL, string(art.Source), published, art.Summary,
		pq.StringArray(art.StockSymbols), image,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// AppendSymbol attaches ticker to the stored article. Appending an attached ticker is a no-op.
func (s *Store) AppendSymbol(ctx context.Context, fp, ticker string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE market_news
		SET stock_symbols = CASE
			WHEN $2 = ANY(stock_symbols) THEN stock_symbols
			ELSE array_append(stock_symbols, $2)
		END
		WHERE hash = $1`, fp, ticker)
	if err != nil {
		return fmt.Errorf("append symbol: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append symbol rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
