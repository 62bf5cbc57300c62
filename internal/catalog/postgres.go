package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/postgres"
	"github.com/lib/pq"
)

// Product row states.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
)

// Repository stores product documents in the products table, one JSONB
// document per url. It also serves as a build Source.
type Repository struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewRepository(db *postgres.Client) *Repository {
	return &Repository{
		db:     db,
		logger: slog.Default().With("component", "catalog-repository"),
	}
}

// Upsert stores doc and flags it for the next index build. It reports
// whether the url was new.
func (r *Repository) Upsert(ctx context.Context, doc Document) (bool, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshaling document %s: %w", doc.URL, err)
	}
	var inserted bool
	err = r.db.DB.QueryRowContext(ctx,
		`INSERT INTO products (url, data, status, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO UPDATE
		   SET data = EXCLUDED.data, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		doc.URL, data, StatusPending, time.Now().UTC(),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting document %s: %w", doc.URL, err)
	}
	return inserted, nil
}

// Load returns every stored document ordered by url. Rows whose JSON no
// longer decodes are logged and skipped.
func (r *Repository) Load(ctx context.Context) ([]Document, LoadStats, error) {
	var stats LoadStats
	rows, err := r.db.DB.QueryContext(ctx, `SELECT url, data FROM products ORDER BY url`)
	if err != nil {
		return nil, stats, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			url  string
			data []byte
		)
		if err := rows.Scan(&url, &data); err != nil {
			return nil, stats, fmt.Errorf("scanning product row: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			stats.Malformed++
			r.logger.Warn("skipping malformed product row", "url", url, "error", err)
			continue
		}
		doc.URL = url
		docs = append(docs, doc)
		stats.Loaded++
	}
	if err := rows.Err(); err != nil {
		return nil, stats, fmt.Errorf("iterating product rows: %w", err)
	}
	return docs, stats, nil
}

// Pending counts rows changed since the last build.
func (r *Repository) Pending(ctx context.Context) (int, error) {
	var n int
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE status = $1`, StatusPending,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending products: %w", err)
	}
	return n, nil
}

// MarkIndexed flags urls as covered by a build that loaded its corpus at
// loadedAt. Rows updated after that stay pending.
func (r *Repository) MarkIndexed(ctx context.Context, urls []string, loadedAt time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET status = $1, indexed_at = $2
			 WHERE url = ANY($3) AND updated_at <= $4`,
			StatusIndexed, time.Now().UTC(), pq.Array(urls), loadedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("marking products indexed: %w", err)
		}
		n, _ := res.RowsAffected()
		r.logger.Info("products marked indexed", "count", n)
		return nil
	})
}
