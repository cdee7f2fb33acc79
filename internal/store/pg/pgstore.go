package pg

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"foodtrace.org/internal/store"
)

// Store persists versioned documents in Postgres. Current state lives in the
// documents table, every committed version additionally lands in
// document_history.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool (used by tests).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Get(ctx context.Context, key string) (store.Doc, error) {
	var doc store.Doc
	doc.Key = key
	err := s.db.QueryRowContext(ctx,
		`select value, version from documents where key=$1`, key,
	).Scan(&doc.Value, &doc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Doc{}, store.ErrNotFound
	}
	if err != nil {
		return store.Doc{}, mapErr(err)
	}
	return doc, nil
}

func (s *Store) Apply(ctx context.Context, txID string, writes []store.Write) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock keys in stable order to avoid deadlocks between batches.
	ordered := make([]store.Write, len(writes))
	copy(ordered, writes)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key < ordered[j].Key })

	for _, w := range ordered {
		var current uint64
		err := tx.QueryRowContext(ctx,
			`select version from documents where key=$1 for update`, w.Key,
		).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if w.Version != 0 {
				return store.ErrConflict
			}
		case err != nil:
			return mapErr(err)
		default:
			if current != w.Version {
				return store.ErrConflict
			}
		}
	}

	now := time.Now().UTC()
	for _, w := range ordered {
		next := w.Version + 1
		if _, err := tx.ExecContext(ctx, `
			insert into documents(key, value, version, updated_at)
			values ($1,$2,$3,$4)
			on conflict (key) do update
			set value = excluded.value, version = excluded.version, updated_at = excluded.updated_at
		`, w.Key, []byte(w.Value), next, now); err != nil {
			return mapErr(err)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into document_history(key, version, tx_id, value, recorded_at)
			values ($1,$2,$3,$4,$5)
		`, w.Key, next, txID, []byte(w.Value), now); err != nil {
			return mapErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, prefix string, pageSize int, cursor string) ([]store.Doc, string, error) {
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select key, value, version from documents
		where key like $1 || '%' and key > $2
		order by key asc
		limit $3
	`, prefix, cursor, pageSize+1)
	if err != nil {
		return nil, "", mapErr(err)
	}
	defer rows.Close()

	var res []store.Doc
	for rows.Next() {
		var d store.Doc
		if err := rows.Scan(&d.Key, &d.Value, &d.Version); err != nil {
			return nil, "", mapErr(err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, "", mapErr(err)
	}

	next := ""
	if len(res) > pageSize {
		res = res[:pageSize]
		next = res[len(res)-1].Key
	}
	return res, next, nil
}

func (s *Store) History(ctx context.Context, key string) ([]store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		select tx_id, version, value, recorded_at from document_history
		where key=$1
		order by version asc
	`, key)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var res []store.Snapshot
	for rows.Next() {
		var snap store.Snapshot
		if err := rows.Scan(&snap.TxID, &snap.Version, &snap.Value, &snap.RecordedAt); err != nil {
			return nil, mapErr(err)
		}
		res = append(res, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	if len(res) == 0 {
		return nil, store.ErrNotFound
	}
	return res, nil
}

func mapErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return store.ErrUnavailable
	}
	// Serialization and deadlock failures under serializable isolation are
	// retryable version collisions, not server faults.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return store.ErrConflict
		}
	}
	return err
}
