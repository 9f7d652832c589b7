package memory

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"

	"stockroom/internal/core/spec"
	"stockroom/internal/core/storage"
)

type session struct {
	store *Store
	inTx  bool

	// tables is the private working set of a transaction; nil reads the
	// committed tables.
	tables map[string]*table
}

var _ storage.Session = (*session)(nil)

func (s *session) InTransaction() bool { return s.inTx }

// write runs fn under the store lock. Outside a transaction it also takes the
// writer slot for the duration of the statement.
func (s *session) write(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		if err := s.store.acquire(ctx); err != nil {
			return err
		}
		defer s.store.release()
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return fn()
}

func (s *session) table(name string) (*table, error) {
	tables := s.store.tables
	if s.tables != nil {
		tables = s.tables
	}
	t, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("memory: unknown table %q", name)
	}
	return t, nil
}

func (s *session) matching(q storage.Query) ([]map[string]any, error) {
	t, err := s.table(q.Table)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(t.rows))
	for _, id := range sortedIDs(t.rows) {
		row := t.rows[id]
		if q.Criteria == nil || q.Criteria.Match(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *session) Select(ctx context.Context, dest any, q storage.Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memory: dest must be a pointer to a slice, got %T", dest)
	}
	slice := dv.Elem()
	elemType := slice.Type().Elem()

	s.store.mu.RLock()
	rows, err := s.matching(q)
	if err == nil {
		rows = page(order(rows, q.Orders), q.Offset, q.Limit)
		for i, row := range rows {
			rows[i] = storage.CloneRow(row)
		}
	}
	s.store.mu.RUnlock()
	if err != nil {
		return err
	}

	out := reflect.MakeSlice(slice.Type(), 0, len(rows))
	for _, row := range rows {
		var item reflect.Value
		if elemType.Kind() == reflect.Pointer {
			item = reflect.New(elemType.Elem())
		} else {
			item = reflect.New(elemType)
		}
		if err := storage.DecodeRow(project(row, q.Columns), item.Interface()); err != nil {
			return fmt.Errorf("memory: %s: %w", q.Table, err)
		}
		if elemType.Kind() != reflect.Pointer {
			item = item.Elem()
		}
		out = reflect.Append(out, item)
	}
	slice.Set(out)
	return nil
}

func (s *session) Count(ctx context.Context, q storage.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	rows, err := s.matching(q.Unpaged())
	return int64(len(rows)), err
}

func (s *session) Insert(ctx context.Context, table string, row map[string]any) (int64, error) {
	ids, err := s.InsertMany(ctx, table, []map[string]any{row})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// InsertMany is atomic: either every row is stored or none is.
func (s *session) InsertMany(ctx context.Context, table string, rows []map[string]any) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	err := s.write(ctx, func() error {
		t, err := s.table(table)
		if err != nil {
			return err
		}
		staged := make([]map[string]any, 0, len(rows))
		next := t.nextID
		for _, in := range rows {
			row := detach(in)
			row[storage.ColumnID] = next
			if err := s.checkRow(t, row, staged); err != nil {
				return err
			}
			staged = append(staged, row)
			ids = append(ids, next)
			next++
		}
		for _, row := range staged {
			t.rows[row[storage.ColumnID].(int64)] = row
		}
		t.nextID = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *session) Update(ctx context.Context, table string, id int64, expectedVersion int, row map[string]any) (int64, error) {
	var affected int64
	err := s.write(ctx, func() error {
		t, err := s.table(table)
		if err != nil {
			return err
		}
		current, ok := t.rows[id]
		if !ok || !versionIs(current[storage.ColumnVersion], expectedVersion) {
			return nil
		}

		next := storage.CloneRow(current)
		for k, v := range detach(row) {
			if k == storage.ColumnID || k == storage.ColumnVersion {
				continue
			}
			next[k] = v
		}
		next[storage.ColumnVersion] = expectedVersion + 1
		if err := s.checkRow(t, next, nil); err != nil {
			return err
		}
		t.rows[id] = next
		affected = 1
		return nil
	})
	return affected, err
}

// checkRow enforces unique indexes over non-deleted rows and foreign keys.
func (s *session) checkRow(t *table, row map[string]any, staged []map[string]any) error {
	if deleted, _ := row[storage.ColumnIsDeleted].(bool); !deleted {
		for _, idx := range t.def.Unique {
			clash := func(other map[string]any) bool {
				if other[storage.ColumnID] == row[storage.ColumnID] {
					return false
				}
				if d, _ := other[storage.ColumnIsDeleted].(bool); d {
					return false
				}
				return sameKey(idx.Columns, row, other)
			}
			for _, other := range t.rows {
				if clash(other) {
					return uniqueViolation(t, idx)
				}
			}
			if slices.ContainsFunc(staged, clash) {
				return uniqueViolation(t, idx)
			}
		}
	}

	for _, fk := range t.def.ForeignKeys {
		v, ok := row[fk.Column]
		if !ok || v == nil {
			continue
		}
		ref, err := s.table(fk.RefTable)
		if err != nil {
			return err
		}
		refID, ok := toInt64(v)
		if _, found := ref.rows[refID]; !ok || !found {
			return &storage.ConstraintError{
				Kind:       storage.ErrForeignKey,
				Table:      t.def.Name,
				Constraint: fmt.Sprintf("fk_%s_%s", t.def.Name, fk.Column),
				Columns:    []string{fk.Column},
			}
		}
	}
	return nil
}

func uniqueViolation(t *table, idx storage.UniqueIndex) error {
	name := idx.Name
	if name == "" {
		name = fmt.Sprintf("uq_%s_%v", t.def.Name, idx.Columns)
	}
	return &storage.ConstraintError{
		Kind:       storage.ErrUniqueViolation,
		Table:      t.def.Name,
		Constraint: name,
		Columns:    append([]string(nil), idx.Columns...),
	}
}

func sameKey(cols []string, a, b map[string]any) bool {
	for _, c := range cols {
		av, bv := a[c], b[c]
		if av == nil || bv == nil {
			return false
		}
		if spec.CompareValues(av, bv) != 0 {
			return false
		}
	}
	return true
}

func versionIs(v any, want int) bool {
	n, ok := toInt64(v)
	return ok && n == int64(want)
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	case reflect.Pointer:
		if rv.IsNil() {
			return 0, false
		}
		return toInt64(rv.Elem().Interface())
	}
	return 0, false
}

// detach copies row, replacing pointers with the values they point to so
// stored rows never alias caller memory.
func detach(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				out[k] = nil
				continue
			}
			v = rv.Elem().Interface()
		}
		out[k] = v
	}
	return out
}

func project(row map[string]any, columns []string) map[string]any {
	if len(columns) == 0 {
		return row
	}
	out := make(map[string]any, len(columns)+2)
	for _, c := range storage.PersistedColumns(columns) {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func order(rows []map[string]any, orders []spec.Order) []map[string]any {
	if len(orders) == 0 {
		return rows
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orders {
			c := spec.CompareValues(rows[i][o.Field], rows[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return rows
}

func page(rows []map[string]any, offset, limit int) []map[string]any {
	if offset >= len(rows) {
		return rows[:0]
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func sortedIDs(rows map[int64]map[string]any) []int64 {
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
