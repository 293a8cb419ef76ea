// Package boltdb is an embedded single-file store for local runs and tests.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Adda-Baaj/berita-emiten/internal/domain"
)

var bucketName = []byte("market_news")

// record is the stored form of an article.
type record struct {
	domain.NormalizedArticle
	ScrapedAt time.Time `json:"scraped_at"`
}

// Store keeps articles keyed by fingerprint in one bbolt bucket.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Symbols returns the tickers stored for fp.
func (s *Store) Symbols(_ context.Context, fp string) ([]string, bool, error) {
	var (
		symbols []string
		found   bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, ok, err := get(tx, fp)
		if err != nil || !ok {
			return err
		}
		found = true
		symbols = append(symbols, rec.StockSymbols...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return symbols, found, nil
}

// Article returns the stored article for fp.
func (s *Store) Article(_ context.Context, fp string) (*domain.NormalizedArticle, error) {
	var out *domain.NormalizedArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, ok, err := get(tx, fp)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		out = &rec.NormalizedArticle
		return nil
	})
	return out, err
}

// Insert stores a new article. A stored fingerprint yields domain.ErrAlreadyExists.
func (s *Store) Insert(_ context.Context, art *domain.NormalizedArticle) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(art.Fingerprint)) != nil {
			return domain.ErrAlreadyExists
		}
		return put(b, record{NormalizedArticle: *art, ScrapedAt: s.now().UTC()})
	})
}

// AppendSymbol attaches ticker to the stored article unless it is already there.
func (s *Store) AppendSymbol(_ context.Context, fp, ticker string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, ok, err := get(tx, fp)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		if rec.HasSymbol(ticker) {
			return nil
		}
		rec.StockSymbols = append(rec.StockSymbols, ticker)
		return put(tx.Bucket(bucketName), rec)
	})
}

// Count returns the number of stored articles.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func get(tx *bolt.Tx, fp string) (record, bool, error) {
	raw := tx.Bucket(bucketName).Get([]byte(fp))
	if raw == nil {
		return record{}, false, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, false, fmt.Errorf("decode %s: %w", fp, err)
	}
	return rec, true, nil
}

func put(b *bolt.Bucket, rec record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Fingerprint, err)
	}
	return b.Put([]byte(rec.Fingerprint), raw)
}
