package dal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// sqlStore is the database/sql document store shared by the SQLite and
// Postgres backends. Every collection lives in one records table keyed by
// (collection, id).
type sqlStore struct {
	db         *sql.DB
	positional bool // $1-style placeholders
}

// rebind rewrites ? placeholders to $n when the driver needs it
func (s *sqlStore) rebind(query string) string {
	if !s.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Add(ctx context.Context, c Collection, id string, data []byte) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO records (collection, id, data) VALUES (?, ?, ?) ON CONFLICT (collection, id) DO NOTHING`),
		string(c), id, string(data))
	if err != nil {
		return fmt.Errorf("add %s/%s: %w", c, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add %s/%s: %w", c, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrExists, c, id)
	}
	return nil
}

func (s *sqlStore) Put(ctx context.Context, c Collection, id string, data []byte) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO records (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`),
		string(c), id, string(data))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, c Collection, id string) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM records WHERE collection = ? AND id = ?`),
		string(c), id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, c, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return data, nil
}

func (s *sqlStore) GetAll(ctx context.Context, c Collection) ([]Doc, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, data FROM records WHERE collection = ? ORDER BY id`),
		string(c))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	defer rows.Close()

	docs := []Doc{}
	for rows.Next() {
		var d Doc
		var data []byte
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, err
		}
		d.Data = data
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *sqlStore) Delete(ctx context.Context, c Collection, id string) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE collection = ? AND id = ?`),
		string(c), id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *sqlStore) Clear(ctx context.Context, c Collection) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE collection = ?`), string(c)); err != nil {
		return fmt.Errorf("clear %s: %w", c, err)
	}
	return nil
}

func (s *sqlStore) ReplaceAll(ctx context.Context, docs map[Collection][]Doc) error {
	for c := range docs {
		if !c.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("replace: clear: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO records (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range Collections {
		for _, d := range docs[c] {
			if _, err := stmt.ExecContext(ctx, string(c), d.ID, string(d.Data)); err != nil {
				return fmt.Errorf("replace %s/%s: %w", c, d.ID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
