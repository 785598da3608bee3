// Package registry persists verified memberships in SQLite or Postgres.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver string
	schema string
	upsert string
	page   string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS user_wallets (
	user_id INTEGER PRIMARY KEY,
	wallet_address TEXT NOT NULL,
	joined_at INTEGER NOT NULL
)`,
	upsert: `INSERT INTO user_wallets (user_id, wallet_address, joined_at) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET wallet_address = excluded.wallet_address, joined_at = excluded.joined_at`,
	page: `SELECT user_id, wallet_address, joined_at FROM user_wallets ORDER BY user_id LIMIT ? OFFSET ?`,
}

var postgresDialect = dialect{
	driver: "pgx",
	schema: `CREATE TABLE IF NOT EXISTS user_wallets (
	user_id BIGINT PRIMARY KEY,
	wallet_address TEXT NOT NULL,
	joined_at BIGINT NOT NULL
)`,
	upsert: `INSERT INTO user_wallets (user_id, wallet_address, joined_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET wallet_address = excluded.wallet_address, joined_at = excluded.joined_at`,
	page: `SELECT user_id, wallet_address, joined_at FROM user_wallets ORDER BY user_id LIMIT $1 OFFSET $2`,
}

// SQLRegistry is a database/sql implementation of the Registry interface
type SQLRegistry struct {
	db      *sql.DB
	dialect dialect
	nowF    func() time.Time
}

var _ ports.Registry = (*SQLRegistry)(nil)

// Open opens the registry for databaseURL. postgres:// and postgresql:// URLs select Postgres,
// anything else is taken as a SQLite path. Caller must call Close when done.
func Open(ctx context.Context, databaseURL string) (*SQLRegistry, error) {
	url := strings.TrimSpace(databaseURL)
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return open(ctx, postgresDialect, url)
	}

	dsn := url
	if !strings.Contains(dsn, "?") && dsn != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	r, err := open(ctx, sqliteDialect, dsn)
	if err != nil {
		return nil, err
	}
	if url == ":memory:" {
		// Every connection to :memory: is its own database
		r.db.SetMaxOpenConns(1)
	}
	return r, nil
}

func open(ctx context.Context, d dialect, dsn string) (*SQLRegistry, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.driver, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLRegistry{db: db, dialect: d, nowF: time.Now}, nil
}

// Close closes the database handle
func (r *SQLRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Upsert stores wallet as the verified wallet of userID
func (r *SQLRegistry) Upsert(ctx context.Context, userID int64, wallet string) error {
	joinedAt := r.nowF().UTC().UnixMilli()
	if _, err := r.db.ExecContext(ctx, r.dialect.upsert, userID, wallet, joinedAt); err != nil {
		return fmt.Errorf("upsert user %d: %w: %w", userID, core.ErrRegistryFailure, err)
	}
	return nil
}

// Page returns up to limit records ordered by user id, starting at offset
func (r *SQLRegistry) Page(ctx context.Context, limit, offset int) ([]core.MembershipRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.page, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query page at offset %d: %w: %w", offset, core.ErrRegistryFailure, err)
	}
	defer rows.Close()

	records := make([]core.MembershipRecord, 0, limit)
	for rows.Next() {
		var (
			rec      core.MembershipRecord
			joinedAt int64
		)
		if err := rows.Scan(&rec.UserID, &rec.Wallet, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w: %w", core.ErrRegistryFailure, err)
		}
		rec.JoinedAt = time.UnixMilli(joinedAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page: %w: %w", core.ErrRegistryFailure, err)
	}

	return records, nil
}
