package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/spec"
	"stockroom/internal/core/storage"
)

type item struct {
	entity.Base
	Code    string `db:"code"`
	GroupID *int64 `db:"group_id"`
}

func newTestStore() *Store {
	return New(
		storage.TableDef{Name: "groups"},
		storage.TableDef{
			Name:        "items",
			Unique:      []storage.UniqueIndex{{Name: "uq_items_code", Columns: []string{"code"}}},
			ForeignKeys: []storage.ForeignKey{{Column: "group_id", RefTable: "groups"}},
		},
	)
}

func row(code string, deleted bool) map[string]any {
	return map[string]any{
		"code":       code,
		"is_active":  !deleted,
		"is_deleted": deleted,
		"version":    1,
		"created_at": time.Unix(0, 0).UTC(),
		"created_by": "system",
	}
}

func TestSession_InsertAndSelect(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	sess := s.Session()

	id1, err := sess.Insert(ctx, "items", row("b", false))
	require.NoError(t, err)
	id2, err := sess.Insert(ctx, "items", row("a", false))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	var got []*item
	q := storage.From("items", storage.Columns[item]()...).OrderBy(spec.Asc("code"))
	require.NoError(t, sess.Select(ctx, &got, q))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Code)
	assert.Equal(t, id2, got[0].ID)
	assert.Equal(t, entity.Active, got[0].Lifecycle)

	n, err := sess.Count(ctx, q.Where(spec.Eq("code", "b")).Take(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSession_PagingAndUnknownTable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	sess := s.Session()
	for _, c := range []string{"a", "b", "c", "d", "e"} {
		_, err := sess.Insert(ctx, "items", row(c, false))
		require.NoError(t, err)
	}

	var got []*item
	require.NoError(t, sess.Select(ctx, &got, storage.From("items").OrderBy(spec.Desc("code")).Skip(1).Take(2)))
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].Code)
	assert.Equal(t, "c", got[1].Code)

	got = nil
	require.NoError(t, sess.Select(ctx, &got, storage.From("items").Skip(10)))
	assert.Empty(t, got)

	assert.Error(t, sess.Select(ctx, &got, storage.From("nope")))
}

func TestSession_UniqueIgnoresDeletedRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	sess := s.Session()

	_, err := sess.Insert(ctx, "items", row("dup", true))
	require.NoError(t, err)
	_, err = sess.Insert(ctx, "items", row("dup", false))
	require.NoError(t, err)

	_, err = sess.Insert(ctx, "items", row("dup", false))
	assert.ErrorIs(t, err, storage.ErrUniqueViolation)

	_, err = sess.InsertMany(ctx, "items", []map[string]any{row("x", false), row("x", false)})
	assert.ErrorIs(t, err, storage.ErrUniqueViolation)
	assert.Len(t, s.Rows("items"), 2, "failed batch stores nothing")
}

func TestSession_ForeignKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	sess := s.Session()

	r := row("a", false)
	r["group_id"] = int64(42)
	_, err := sess.Insert(ctx, "items", r)
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	gid, err := sess.Insert(ctx, "groups", map[string]any{"is_deleted": false})
	require.NoError(t, err)
	r["group_id"] = &gid
	_, err = sess.Insert(ctx, "items", r)
	assert.NoError(t, err)
}

func TestSession_UpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	sess := s.Session()

	id, err := sess.Insert(ctx, "items", row("a", false))
	require.NoError(t, err)

	n, err := sess.Update(ctx, "items", id, 1, map[string]any{"code": "a2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = sess.Update(ctx, "items", id, 1, map[string]any{"code": "a3"})
	require.NoError(t, err)
	assert.Zero(t, n, "stale version")

	rows := s.Rows("items")
	assert.Equal(t, "a2", rows[0]["code"])
	assert.Equal(t, 2, rows[0]["version"])
}

func TestTransaction_RollbackRestores(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	assert.True(t, tx.InTransaction())
	_, err = tx.Insert(ctx, "items", row("a", false))
	require.NoError(t, err)
	n, err := tx.Count(ctx, storage.From("items"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, tx.Rollback(ctx))
	assert.Empty(t, s.Rows("items"))
	n, err = s.Session().Count(ctx, storage.From("items"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, tx.Commit(ctx), storage.ErrTxDone)

	_, err = tx.Insert(ctx, "items", row("b", false))
	assert.ErrorIs(t, err, storage.ErrTxDone)
}

func TestTransaction_OthersReadCommittedRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	sess := s.Session()

	id, err := sess.Insert(ctx, "items", row("committed", false))
	require.NoError(t, err)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.Update(ctx, "items", id, 1, map[string]any{"code": "pending"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	_, err = tx.Insert(ctx, "items", row("new", false))
	require.NoError(t, err)

	var outside, inside []*item
	q := storage.From("items", storage.Columns[item]()...)
	require.NoError(t, sess.Select(ctx, &outside, q))
	require.NoError(t, tx.Select(ctx, &inside, q))
	require.Len(t, outside, 1)
	assert.Equal(t, "committed", outside[0].Code)
	assert.Equal(t, 1, outside[0].Version)
	require.Len(t, inside, 2)
	assert.Equal(t, "pending", inside[0].Code)

	require.NoError(t, tx.Commit(ctx))
	outside = nil
	require.NoError(t, sess.Select(ctx, &outside, q))
	require.Len(t, outside, 2)
	assert.Equal(t, "pending", outside[0].Code)
	assert.Equal(t, 2, outside[0].Version)
}

func TestTransaction_SingleWriter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Session().Insert(waitCtx, "items", row("a", false))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Commit(ctx))
	_, err = s.Session().Insert(ctx, "items", row("a", false))
	assert.NoError(t, err)
}

func TestStore_RowsAreDetached(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	by := "alice"
	r := row("a", false)
	r["updated_by"] = &by
	_, err := s.Session().Insert(ctx, "items", r)
	require.NoError(t, err)

	by = "mallory"
	assert.Equal(t, "alice", s.Rows("items")[0]["updated_by"])
}
