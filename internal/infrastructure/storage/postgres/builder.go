package postgres

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"stockroom/internal/core/storage"
)

// lifecycleExpr derives the lifecycle column from the persisted flag pair.
const lifecycleExpr = "CASE WHEN is_deleted THEN 'deleted' WHEN is_active THEN 'active' ELSE 'inactive' END AS lifecycle"

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func selectColumns(columns []string) []string {
	if len(columns) == 0 {
		return []string{"*"}
	}
	out := make([]string, len(columns))
	for i, c := range columns {
		if c == storage.ColumnLifecycle {
			out[i] = lifecycleExpr
			continue
		}
		out[i] = c
	}
	return out
}

func buildSelect(q storage.Query) (string, []any, error) {
	b := builder().Select(selectColumns(q.Columns)...).From(q.Table)
	if q.Criteria != nil {
		b = b.Where(q.Criteria)
	}
	for _, o := range q.Orders {
		b = b.OrderBy(o.String())
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		b = b.Offset(uint64(q.Offset))
	}
	if q.Lock {
		b = b.Suffix("FOR UPDATE")
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build select %s: %w", q.Table, err)
	}
	return sql, args, nil
}

func buildCount(q storage.Query) (string, []any, error) {
	b := builder().Select("COUNT(*)").From(q.Table)
	if q.Criteria != nil {
		b = b.Where(q.Criteria)
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build count %s: %w", q.Table, err)
	}
	return sql, args, nil
}

func buildInsert(table string, row map[string]any) (string, []any, error) {
	sql, args, err := builder().
		Insert(table).
		SetMap(row).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert %s: %w", table, err)
	}
	return sql, args, nil
}

func buildUpdate(table string, id int64, expectedVersion int, row map[string]any) (string, []any, error) {
	set := make(map[string]any, len(row))
	for k, v := range row {
		if k == storage.ColumnID || k == storage.ColumnVersion {
			continue
		}
		set[k] = v
	}
	sql, args, err := builder().
		Update(table).
		SetMap(set).
		Set(storage.ColumnVersion, sq.Expr("version + 1")).
		Where(sq.Eq{storage.ColumnID: id}).
		Where(sq.Eq{storage.ColumnVersion: expectedVersion}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update %s: %w", table, err)
	}
	return sql, args, nil
}
