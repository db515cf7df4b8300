package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresJournal persists entries in Postgres.
type PostgresJournal struct {
	db *sql.DB
}

// NewPostgresJournal opens a Postgres connection and ensures the table exists.
func NewPostgresJournal(dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresJournal{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`create table if not exists found_blocks (
			id bigserial primary key,
			hash text not null,
			height bigint not null,
			nonce bigint not null,
			prev_hash text not null,
			status text not null,
			reason text not null default '',
			found_at timestamptz not null
		)`,
		`create index if not exists found_blocks_found_at_idx on found_blocks (found_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

func (p *PostgresJournal) Record(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx,
		`insert into found_blocks (hash, height, nonce, prev_hash, status, reason, found_at) values ($1, $2, $3, $4, $5, $6, $7)`,
		e.Hash, e.Height, int64(e.Nonce), e.PrevHash, string(e.Status), e.Reason, e.FoundAt)
	if err != nil {
		return fmt.Errorf("insert found block: %w", err)
	}
	return nil
}

func (p *PostgresJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `select hash, height, nonce, prev_hash, status, reason, found_at from found_blocks order by found_at desc, id desc`
	var args []interface{}
	if limit > 0 {
		query += ` limit $1`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query found blocks: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			nonce  int64
			status string
		)
		if err := rows.Scan(&e.Hash, &e.Height, &nonce, &e.PrevHash, &status, &e.Reason, &e.FoundAt); err != nil {
			return nil, fmt.Errorf("scan found block: %w", err)
		}
		e.Nonce = uint32(nonce)
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresJournal) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `delete from found_blocks where found_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune found blocks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *PostgresJournal) SetStatus(ctx context.Context, e Entry, status Status) error {
	res, err := p.db.ExecContext(ctx, `update found_blocks set status = $1 where hash = $2 and found_at = $3`, string(status), e.Hash, e.FoundAt)
	if err != nil {
		return fmt.Errorf("update found block: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresJournal) Close() error {
	return p.db.Close()
}
