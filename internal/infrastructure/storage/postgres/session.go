package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockroom/internal/core/storage"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type session struct {
	q    querier
	inTx bool
}

var _ storage.Session = (*session)(nil)

func (s *session) InTransaction() bool { return s.inTx }

func (s *session) Select(ctx context.Context, dest any, q storage.Query) error {
	sql, args, err := buildSelect(q)
	if err != nil {
		return err
	}
	if err := pgxscan.Select(ctx, s.q, dest, sql, args...); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *session) Count(ctx context.Context, q storage.Query) (int64, error) {
	sql, args, err := buildCount(q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (s *session) Insert(ctx context.Context, table string, row map[string]any) (int64, error) {
	sql, args, err := buildInsert(table, row)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

// InsertMany queues one INSERT per row in a single batch. The batch runs as
// one implicit transaction when no explicit transaction is open.
func (s *session) InsertMany(ctx context.Context, table string, rows []map[string]any) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		sql, args, err := buildInsert(table, row)
		if err != nil {
			return nil, err
		}
		batch.Queue(sql, args...)
	}

	results := s.q.SendBatch(ctx, batch)
	defer results.Close()

	ids := make([]int64, 0, len(rows))
	for i := range rows {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			return nil, fmt.Errorf("batch row %d: %w", i, mapError(err))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *session) Update(ctx context.Context, table string, id int64, expectedVersion int, row map[string]any) (int64, error) {
	sql, args, err := buildUpdate(table, id, expectedVersion, row)
	if err != nil {
		return 0, err
	}
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
