package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend stores sessions in a (sid, sess, expire) table.
type PostgresBackend struct {
	db    *pgxpool.Pool
	table string
	now   func() time.Time
}

func NewPostgresBackend(ctx context.Context, db *pgxpool.Pool, table string, autoCreate bool) (*PostgresBackend, error) {
	if table == "" {
		table = "sessions"
	}
	b := &PostgresBackend{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		now:   time.Now,
	}
	if autoCreate {
		idx := pgx.Identifier{table + "_expire_idx"}.Sanitize()
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			sid    varchar NOT NULL PRIMARY KEY,
			sess   json NOT NULL,
			expire timestamptz NOT NULL
		)`, b.table)
		if _, err := db.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("create session table: %w", err)
		}
		if _, err := db.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (expire)`, idx, b.table)); err != nil {
			return nil, fmt.Errorf("create session index: %w", err)
		}
	}
	return b, nil
}

func (b *PostgresBackend) Get(ctx context.Context, sid string) (*Session, error) {
	var raw []byte
	err := b.db.QueryRow(ctx,
		`SELECT sess FROM `+b.table+` WHERE sid = $1 AND expire >= $2`, sid, b.now()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *PostgresBackend) Set(ctx context.Context, sid string, s *Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(ctx, `
		INSERT INTO `+b.table+` (sid, sess, expire) VALUES ($1, $2, $3)
		ON CONFLICT (sid) DO UPDATE SET sess = EXCLUDED.sess, expire = EXCLUDED.expire`,
		sid, string(raw), b.now().Add(ttl))
	return err
}

func (b *PostgresBackend) Touch(ctx context.Context, sid string, s *Session, ttl time.Duration) error {
	ct, err := b.db.Exec(ctx, `UPDATE `+b.table+` SET expire = $2 WHERE sid = $1`, sid, b.now().Add(ttl))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return b.Set(ctx, sid, s, ttl)
	}
	return nil
}

func (b *PostgresBackend) Destroy(ctx context.Context, sid string) error {
	_, err := b.db.Exec(ctx, `DELETE FROM `+b.table+` WHERE sid = $1`, sid)
	return err
}

// PruneExpired deletes expired rows and returns how many were removed.
func (b *PostgresBackend) PruneExpired(ctx context.Context) (int64, error) {
	ct, err := b.db.Exec(ctx, `DELETE FROM `+b.table+` WHERE expire < $1`, b.now())
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
