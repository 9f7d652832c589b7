package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/core/apperror"
	corecache "stockroom/internal/core/cache"
	appctx "stockroom/internal/core/context"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/repository"
	"stockroom/internal/core/result"
	"stockroom/internal/core/spec"
	"stockroom/internal/core/storage"
	infracache "stockroom/internal/infrastructure/cache"
	"stockroom/internal/infrastructure/storage/memory"
)

type owner struct {
	entity.Base
	Name string `db:"name"`
}

type gadget struct {
	entity.Base
	Name    string `db:"name"`
	Qty     int    `db:"qty"`
	OwnerID *int64 `db:"owner_id"`

	Owner *owner `db:"-"`
}

func (g *gadget) Validate(context.Context) error {
	var v entity.Violations
	v.Check(g.Name != "", "name", "name is required")
	v.Check(g.Qty >= 0, "qty", "qty must not be negative")
	return v.Err("gadget")
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ownerConfig() repository.Config[*owner] {
	return repository.Config[*owner]{Table: "owners", New: func() *owner { return &owner{} }}
}

func gadgetConfig() repository.Config[*gadget] {
	return repository.Config[*gadget]{
		Table: "gadgets",
		New:   func() *gadget { return &gadget{} },
		Includes: map[string]repository.Loader[*gadget]{
			"Owner": loadOwners,
		},
		Unique: []repository.UniqueRule[*gadget]{
			{Field: "name", Value: func(g *gadget) any { return g.Name }},
		},
	}
}

func loadOwners(ctx context.Context, sess storage.Session, items []*gadget) error {
	var ids []int64
	for _, g := range items {
		if g.OwnerID != nil {
			ids = append(ids, *g.OwnerID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var owners []*owner
	if err := sess.Select(ctx, &owners, storage.From("owners", storage.Columns[owner]()...).Where(spec.In("id", ids...))); err != nil {
		return err
	}
	byID := make(map[int64]*owner, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}
	for _, g := range items {
		if g.OwnerID != nil {
			g.Owner = byID[*g.OwnerID]
		}
	}
	return nil
}

type opRecorder struct {
	mu       sync.Mutex
	outcomes map[string]string
}

func (r *opRecorder) ObserveOperation(_, op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]string{}
	}
	r.outcomes[op] = outcome
}

type listTracker struct{ items []*repository.Tracked }

func (l *listTracker) Track(t *repository.Tracked) { l.items = append(l.items, t) }

type fixture struct {
	store   *memory.Store
	cache   *infracache.Service
	metrics *opRecorder
	tracker *listTracker
	owners  *repository.Repository[*owner]
	gadgets *repository.Repository[*gadget]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(
			storage.TableDef{Name: "owners"},
			storage.TableDef{
				Name:        "gadgets",
				Unique:      []storage.UniqueIndex{{Columns: []string{"name"}}},
				ForeignKeys: []storage.ForeignKey{{Column: "owner_id", RefTable: "owners"}},
			},
		),
		cache:   infracache.New(infracache.Options{}),
		metrics: &opRecorder{},
		tracker: &listTracker{},
	}
	deps := repository.Deps{
		Sessions: f.store,
		Cache:    f.cache,
		Tracker:  f.tracker,
		Metrics:  f.metrics,
		Clock:    func() time.Time { return fixedNow },
	}
	f.owners = repository.New(ownerConfig(), deps)
	f.gadgets = repository.New(gadgetConfig(), deps)
	t.Cleanup(func() { f.cache.Stop(context.Background()) })
	return f
}

func userCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1"})
}

func (f *fixture) add(t *testing.T, name string, qty int) *gadget {
	t.Helper()
	res := f.gadgets.Add(userCtx(), &gadget{Name: name, Qty: qty})
	require.True(t, res.IsSuccess(), res.Message())
	return res.Value()
}

func TestAdd_ThenGetByID(t *testing.T) {
	f := newFixture(t)

	added := f.add(t, "Laptop", 3)
	assert.NotZero(t, added.ID)
	assert.Equal(t, 1, added.Version)
	assert.Equal(t, "u-1", added.CreatedBy)
	assert.Equal(t, fixedNow, added.CreatedAt)

	got := f.gadgets.GetByID(context.Background(), added.ID, false)
	require.True(t, got.IsSuccess())
	assert.Equal(t, "Laptop", got.Value().Name)
	assert.Equal(t, 3, got.Value().Qty)
	assert.Equal(t, entity.Active, got.Value().Lifecycle)
	assert.Equal(t, "success", f.metrics.outcomes["get_by_id"])
}

func TestAdd_Rejections(t *testing.T) {
	f := newFixture(t)

	res := f.gadgets.Add(context.Background(), &gadget{Qty: -1})
	assert.Equal(t, result.KindValidation, res.Kind())
	assert.Len(t, res.Errors(), 2)

	existing := &gadget{Name: "x"}
	existing.ID = 99
	res = f.gadgets.Add(context.Background(), existing)
	assert.Equal(t, result.KindValidation, res.Kind())

	f.add(t, "Phone", 1)
	res = f.gadgets.Add(context.Background(), &gadget{Name: "Phone"})
	assert.Equal(t, result.KindConflict, res.Kind())

	missing := int64(404)
	res = f.gadgets.Add(context.Background(), &gadget{Name: "Orphan", OwnerID: &missing})
	assert.Equal(t, result.KindConflict, res.Kind())

	assert.Len(t, f.store.Rows("gadgets"), 1)
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)
	res := f.gadgets.GetByID(context.Background(), 12345, false)
	assert.Equal(t, result.KindNotFound, res.Kind())
	assert.True(t, apperror.IsNotFound(res.Err()))
}

func TestDelete_SoftDeletes(t *testing.T) {
	f := newFixture(t)
	g := f.add(t, "Tablet", 1)
	ctx := userCtx()

	res := f.gadgets.Delete(ctx, g.ID)
	require.True(t, res.IsSuccess())
	assert.True(t, res.Value())

	assert.Equal(t, result.KindNotFound, f.gadgets.GetByID(ctx, g.ID, false).Kind())
	assert.False(t, f.gadgets.Exists(ctx, g.ID).Value())
	assert.Zero(t, f.gadgets.Count(ctx, nil).Value())
	assert.Equal(t, result.KindNotFound, f.gadgets.Delete(ctx, g.ID).Kind())

	rows := f.store.Rows("gadgets")
	require.Len(t, rows, 1)
	assert.Equal(t, true, rows[0]["is_deleted"])
	assert.Equal(t, false, rows[0]["is_active"])

	withDeleted := f.gadgets.FindSpec(ctx, spec.New[*gadget]().IncludeDeleted(), repository.ReadOnly)
	require.True(t, withDeleted.IsSuccess())
	require.Len(t, withDeleted.Value(), 1)
	assert.Equal(t, entity.Deleted, withDeleted.Value()[0].Lifecycle)
}

func TestRestore_KeepsCreationFields(t *testing.T) {
	f := newFixture(t)
	g := f.add(t, "Camera", 2)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-2"})

	require.True(t, f.gadgets.Delete(ctx, g.ID).IsSuccess())
	res := f.gadgets.Restore(ctx, g.ID)
	require.True(t, res.IsSuccess())

	restored := res.Value()
	assert.Equal(t, entity.Active, restored.Lifecycle)
	assert.Equal(t, g.CreatedAt, restored.CreatedAt)
	assert.Equal(t, "u-1", restored.CreatedBy)
	require.NotNil(t, restored.UpdatedBy)
	assert.Equal(t, "u-2", *restored.UpdatedBy)

	again := f.gadgets.Restore(ctx, g.ID)
	require.True(t, again.IsSuccess())
	assert.Equal(t, restored.Version, again.Value().Version)

	assert.Equal(t, result.KindNotFound, f.gadgets.Restore(ctx, 777).Kind())
}

func TestSetActive(t *testing.T) {
	f := newFixture(t)
	g := f.add(t, "Mouse", 5)
	ctx := context.Background()

	res := f.gadgets.SetActive(ctx, g.ID, false)
	require.True(t, res.IsSuccess())
	assert.Equal(t, entity.Inactive, res.Value().Lifecycle)

	got := f.gadgets.GetByID(ctx, g.ID, false)
	require.True(t, got.IsSuccess(), "inactive rows stay visible")
	assert.Equal(t, entity.Inactive, got.Value().Lifecycle)

	require.True(t, f.gadgets.SetActive(ctx, g.ID, true).IsSuccess())
	require.True(t, f.gadgets.Delete(ctx, g.ID).IsSuccess())
	assert.Equal(t, result.KindNotFound, f.gadgets.SetActive(ctx, g.ID, true).Kind())
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	g := f.add(t, "Keyboard", 1)
	ctx := userCtx()

	loaded := f.gadgets.GetByID(ctx, g.ID, false).Value()
	loaded.Qty = 10
	loaded.CreatedBy = "someone else"
	res := f.gadgets.Update(ctx, loaded)
	require.True(t, res.IsSuccess(), res.Message())

	assert.Equal(t, 2, res.Value().Version)
	assert.Equal(t, 2, loaded.Version, "caller instance is synced")
	assert.Equal(t, "u-1", res.Value().CreatedBy)
	require.NotNil(t, res.Value().UpdatedAt)
	assert.Equal(t, fixedNow, *res.Value().UpdatedAt)

	got := f.gadgets.GetByID(ctx, g.ID, false).Value()
	assert.Equal(t, 10, got.Qty)
	assert.Equal(t, "u-1", got.CreatedBy)

	ghost := &gadget{Name: "ghost"}
	ghost.ID = 4242
	ghost.Version = 1
	assert.Equal(t, result.KindNotFound, f.gadgets.Update(ctx, ghost).Kind())
}

func TestUpdate_StaleVersionFails(t *testing.T) {
	f := newFixture(t)
	g := f.add(t, "Monitor", 1)
	ctx := context.Background()

	first := f.gadgets.GetByID(ctx, g.ID, false).Value()
	second := f.gadgets.GetByID(ctx, g.ID, false).Value()

	first.Qty = 2
	second.Qty = 3
	r1 := f.gadgets.Update(ctx, first)
	r2 := f.gadgets.Update(ctx, second)

	assert.True(t, r1.IsSuccess())
	assert.Equal(t, result.KindFailure, r2.Kind())
	assert.True(t, apperror.IsConcurrentModification(r2.Err()))
	assert.Equal(t, 2, f.gadgets.GetByID(ctx, g.ID, false).Value().Qty)
}

func TestGetPaged_Clamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := make([]*gadget, 0, 120)
	for i := range 120 {
		items = append(items, &gadget{Name: "g" + string(rune('A'+i/26)) + string(rune('a'+i%26)), Qty: i})
	}
	require.True(t, f.gadgets.AddRange(ctx, items).IsSuccess())

	res := f.gadgets.GetPaged(ctx, 0, 1000, nil, nil, repository.ReadOnly)
	require.True(t, res.IsSuccess())
	page := res.Value()
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, repository.MaxPageSize, page.PageSize)
	assert.Len(t, page.Items, 100)
	assert.Equal(t, int64(120), page.TotalCount)
	assert.True(t, page.HasNext())
	assert.Equal(t, items[0].ID, page.Items[0].ID, "default order is by id")

	res = f.gadgets.GetPaged(ctx, 3, 0, spec.Lt("qty", 10), nil, repository.ReadOnly)
	require.True(t, res.IsSuccess())
	assert.Equal(t, 1, res.Value().PageSize)
	require.Len(t, res.Value().Items, 1)
	assert.Equal(t, 2, res.Value().Items[0].Qty)
	assert.Equal(t, int64(10), res.Value().TotalCount)
}

func TestAddRange_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.gadgets.AddRange(ctx, []*gadget{{Name: "ok"}, {Name: ""}})
	assert.Equal(t, result.KindValidation, res.Kind())
	assert.Empty(t, f.store.Rows("gadgets"))

	res = f.gadgets.AddRange(ctx, []*gadget{{Name: "a"}, {Name: "b"}})
	require.True(t, res.IsSuccess())
	assert.NotZero(t, res.Value()[0].ID)
	assert.NotEqual(t, res.Value()[0].ID, res.Value()[1].ID)
}

func TestQuery_UnknownFieldsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.gadgets.Find(ctx, spec.Eq("password", "x"), repository.ReadOnly)
	assert.Equal(t, result.KindValidation, res.Kind())

	res = f.gadgets.FindSpec(ctx, spec.New[*gadget]().OrderBy("nope"), repository.ReadOnly)
	assert.Equal(t, result.KindValidation, res.Kind())

	res = f.gadgets.FindSpec(ctx, spec.New[*gadget]().Include("Warranty"), repository.ReadOnly)
	assert.Equal(t, result.KindValidation, res.Kind())
}

func TestIncludes_Loaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.owners.Add(ctx, &owner{Name: "Ann"})
	require.True(t, o.IsSuccess())
	ownerID := o.Value().ID
	require.True(t, f.gadgets.Add(ctx, &gadget{Name: "Drone", OwnerID: &ownerID}).IsSuccess())
	require.True(t, f.gadgets.Add(ctx, &gadget{Name: "Kite"}).IsSuccess())

	for _, opts := range []repository.QueryOptions{repository.ReadOnly, repository.ReadOnlySplit} {
		res := f.gadgets.FindSpec(ctx, spec.New[*gadget]().Include("Owner").OrderBy("name"), opts)
		require.True(t, res.IsSuccess())
		items := res.Value()
		require.Len(t, items, 2)
		require.NotNil(t, items[0].Owner)
		assert.Equal(t, "Ann", items[0].Owner.Name)
		assert.Nil(t, items[1].Owner)
	}
}

func TestFirstOrDefault_AnyCountSpec(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.gadgets.FirstOrDefault(ctx, spec.Where[*gadget](spec.Eq("name", "none")))
	require.True(t, res.IsSuccess())
	assert.Nil(t, res.Value())

	f.add(t, "Speaker", 4)
	f.add(t, "Headset", 9)

	res = f.gadgets.FirstOrDefault(ctx, spec.New[*gadget]().OrderByDescending("qty"))
	require.True(t, res.IsSuccess())
	assert.Equal(t, "Headset", res.Value().Name)

	assert.True(t, f.gadgets.Any(ctx, spec.Where[*gadget](spec.Contains("name", "SPEAK"))).Value())
	assert.Equal(t, int64(1), f.gadgets.CountSpec(ctx, spec.Where[*gadget](spec.Gt("qty", 5)).Take(0)).Value())
}

func TestGetOrCache_InvalidatedByWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.add(t, "Router", 1)

	first := f.gadgets.GetOrCache(ctx, "all", nil, nil, time.Minute, repository.ReadOnly)
	require.True(t, first.IsSuccess())
	require.Len(t, first.Value(), 1)

	// A write that bypasses the repository is not seen until invalidation.
	_, err := f.store.Session().Insert(ctx, "gadgets", map[string]any{
		"name": "Switch", "is_active": true, "is_deleted": false, "version": 1, "created_at": fixedNow, "created_by": "system",
	})
	require.NoError(t, err)
	cached := f.gadgets.GetOrCache(ctx, "all", nil, nil, time.Minute, repository.ReadOnly)
	assert.Len(t, cached.Value(), 1)

	loaded := f.gadgets.GetByID(ctx, g.ID, false).Value()
	loaded.Qty = 7
	require.True(t, f.gadgets.Update(ctx, loaded).IsSuccess())

	fresh := f.gadgets.GetOrCache(ctx, "all", nil, nil, time.Minute, repository.ReadOnly)
	require.True(t, fresh.IsSuccess())
	assert.Len(t, fresh.Value(), 2)

	byID := f.gadgets.GetByIDOrCache(ctx, "", g.ID, time.Minute)
	require.True(t, byID.IsSuccess())
	assert.Equal(t, 7, byID.Value().Qty)
	assert.Equal(t, 2, f.cache.Len())

	f.gadgets.InvalidateCacheKey(ctx, "all")
	assert.Equal(t, 1, f.cache.Len())
	f.gadgets.InvalidateCache(ctx)
	assert.Zero(t, f.cache.Len())
}

func TestGetOrCache_FailuresNotCached(t *testing.T) {
	f := newFixture(t)

	res := f.gadgets.GetOrCache(context.Background(), "bad", spec.Eq("nope", 1), nil, time.Minute, repository.ReadOnly)
	assert.Equal(t, result.KindValidation, res.Kind())
	assert.Zero(t, f.cache.Len())

	missing := f.gadgets.GetByIDOrCache(context.Background(), "", 5, time.Minute)
	assert.Equal(t, result.KindNotFound, missing.Kind())
	assert.Zero(t, f.cache.Len())
}

type brokenCache struct{ corecache.Noop }

func (brokenCache) GetOrCreate(context.Context, string, corecache.Factory, ...corecache.EntryOption) (any, error) {
	return nil, assert.AnError
}

func TestGetOrCache_FallsBackWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Fan", 1)

	gadgets := repository.New(gadgetConfig(), repository.Deps{Sessions: f.store, Cache: brokenCache{}})
	res := gadgets.GetOrCache(context.Background(), "all", nil, nil, 0, repository.ReadOnly)
	require.True(t, res.IsSuccess())
	assert.Len(t, res.Value(), 1)
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.gadgets.GetAll(ctx, repository.ReadOnly)
	assert.Equal(t, result.KindFailure, res.Kind())
	assert.True(t, apperror.HasCode(res.Err(), apperror.CodeCancelled))

	add := f.gadgets.Add(ctx, &gadget{Name: "late"})
	assert.Equal(t, result.KindFailure, add.Kind())
	assert.Empty(t, f.store.Rows("gadgets"))
}

func TestTracking(t *testing.T) {
	f := newFixture(t)
	g := f.add(t, "Lamp", 1)
	ctx := context.Background()

	require.True(t, f.gadgets.GetByID(ctx, g.ID, true).IsSuccess())
	require.Len(t, f.tracker.items, 1)
	tracked := f.tracker.items[0]
	assert.False(t, tracked.Dirty())

	tracked.Entity.(*gadget).Qty = 8
	assert.True(t, tracked.Dirty())
	require.NoError(t, tracked.Save(ctx))
	assert.False(t, tracked.Dirty())
	assert.Equal(t, 8, f.gadgets.GetByID(ctx, g.ID, false).Value().Qty)

	f.gadgets.GetAll(ctx, repository.ReadOnly)
	assert.Len(t, f.tracker.items, 1, "read-only queries are not tracked")
}

func TestCommandTimeout(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Router", 1)

	cfg := gadgetConfig()
	cfg.Includes["Slow"] = func(ctx context.Context, _ storage.Session, _ []*gadget) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}
	slow := repository.New(cfg, repository.Deps{Sessions: f.store})

	start := time.Now()
	res := slow.FindSpec(context.Background(), spec.New[*gadget]().Include("Slow"), repository.ReadOnly.WithTimeout(30*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, result.KindFailure, res.Kind())
	assert.True(t, apperror.HasCode(res.Err(), apperror.CodeTimeout))
	assert.Equal(t, "Operation timed out", res.Message())
}

func TestUpdate_KeepsStoredLifecycle(t *testing.T) {
	f := newFixture(t)
	g := f.add(t, "Speaker", 1)
	ctx := context.Background()

	require.True(t, f.gadgets.SetActive(ctx, g.ID, false).IsSuccess())

	fresh := &gadget{Name: "Speaker", Qty: 4}
	fresh.ID = g.ID
	fresh.Version = 2
	res := f.gadgets.Update(ctx, fresh)
	require.True(t, res.IsSuccess(), res.Message())
	assert.Equal(t, entity.Inactive, res.Value().Lifecycle)
	assert.Equal(t, entity.Inactive, fresh.Lifecycle, "caller instance is synced")

	got := f.gadgets.GetByID(ctx, g.ID, false).Value()
	assert.Equal(t, entity.Inactive, got.Lifecycle)
	assert.Equal(t, 4, got.Qty)

	got.Lifecycle = entity.Deleted
	require.True(t, f.gadgets.Update(ctx, got).IsSuccess())
	assert.True(t, f.gadgets.GetByID(ctx, g.ID, false).IsSuccess(), "Update cannot delete")
}

func TestAdd_RejectsDeletedLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gone := &gadget{Name: "Gone"}
	gone.Lifecycle = entity.Deleted
	res := f.gadgets.Add(ctx, gone)
	assert.Equal(t, result.KindValidation, res.Kind())
	assert.Zero(t, gone.ID)

	batch := f.gadgets.AddRange(ctx, []*gadget{{Name: "Ok"}, gone})
	assert.Equal(t, result.KindValidation, batch.Kind())
	assert.Empty(t, f.store.Rows("gadgets"))

	idle := &gadget{Name: "Idle"}
	idle.Lifecycle = entity.Inactive
	added := f.gadgets.Add(ctx, idle)
	require.True(t, added.IsSuccess(), added.Message())
	got := f.gadgets.GetByID(ctx, added.Value().ID, false)
	require.True(t, got.IsSuccess())
	assert.Equal(t, entity.Inactive, got.Value().Lifecycle)
}
