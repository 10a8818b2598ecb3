package execution_test

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/store"
)

func cloneExecution(e *domain.Execution) *domain.Execution {
	cp := *e
	cp.Tags = append([]string(nil), e.Tags...)
	cp.ListIDs = append([]uuid.UUID(nil), e.ListIDs...)
	if e.Config != nil {
		c := *e.Config
		cp.Config = &c
	}
	cp.Results = domain.RestoreResultSequence(e.Results.Snapshot(), e.Results.Sealed())
	return &cp
}

// memoryExecutions is an in-memory store.ExecutionStore that keeps the
// execution row and its result entries apart, like the SQL tables do.
type memoryExecutions struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*domain.Execution
	lockCalls  int
	updateErr  error
	saveCalls  int
	savedCount int
}

func newMemoryExecutions() *memoryExecutions {
	return &memoryExecutions{rows: make(map[uuid.UUID]*domain.Execution)}
}

var _ store.ExecutionStore = (*memoryExecutions)(nil)

func (m *memoryExecutions) Create(ctx context.Context, e *domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key := e.ListKey(); key != "" {
		for _, row := range m.rows {
			if row.OwnerID == e.OwnerID && row.InProgress && row.ListKey() == key {
				return store.ErrDuplicate
			}
		}
	}
	m.rows[e.ID] = cloneExecution(e)
	return nil
}

func (m *memoryExecutions) Get(ctx context.Context, ownerID, executionID uuid.UUID) (*domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[executionID]
	if !ok || row.OwnerID != ownerID {
		return nil, store.ErrExecutionNotFound
	}
	return cloneExecution(row), nil
}

func (m *memoryExecutions) GetForUpdate(ctx context.Context, ownerID, executionID uuid.UUID) (*domain.Execution, error) {
	return m.Get(ctx, ownerID, executionID)
}

func (m *memoryExecutions) FindInProgressByListKey(
	ctx context.Context,
	ownerID uuid.UUID,
	listKey string,
) (*domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if listKey != "" && row.OwnerID == ownerID && row.InProgress && row.ListKey() == listKey {
			return cloneExecution(row), nil
		}
	}
	return nil, store.ErrExecutionNotFound
}

func (m *memoryExecutions) LockOwner(ctx context.Context, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++
	return nil
}

func (m *memoryExecutions) Update(ctx context.Context, e *domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	row, ok := m.rows[e.ID]
	if !ok || row.OwnerID != e.OwnerID {
		return store.ErrExecutionNotFound
	}
	updated := cloneExecution(e)
	updated.Results = domain.RestoreResultSequence(row.Results.Snapshot(), e.Results.Sealed())
	m.rows[e.ID] = updated
	return nil
}

func (m *memoryExecutions) SaveResults(ctx context.Context, executionID uuid.UUID, entries []domain.ResultEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	row, ok := m.rows[executionID]
	if !ok {
		return store.ErrExecutionNotFound
	}
	stored := row.Results.Snapshot()
	for _, entry := range entries {
		found := false
		for i := range stored {
			if stored[i].ID == entry.ID {
				stored[i].Outcome = entry.Outcome
				stored[i].Position = entry.Position
				found = true
			}
		}
		if !found {
			return domain.ErrResultEntryNotFound
		}
		m.savedCount++
	}
	row.Results = domain.RestoreResultSequence(stored, row.Results.Sealed())
	return nil
}

func (m *memoryExecutions) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ExecutionFilter,
) ([]*domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Execution, 0)
	for _, row := range m.rows {
		if row.OwnerID != ownerID {
			continue
		}
		if filter.InProgress != nil && row.InProgress != *filter.InProgress {
			continue
		}
		out = append(out, cloneExecution(row))
	}
	return out, nil
}

func (m *memoryExecutions) WithTx(tx *sql.Tx) store.ExecutionStore {
	return m
}

type resourceKey struct{ user, resource uuid.UUID }
type listKey struct{ user, list uuid.UUID }

// memoryStats is an in-memory store.StatsStore.
type memoryStats struct {
	mu        sync.Mutex
	resources map[resourceKey]domain.ResourceStats
	lists     map[listKey]domain.ListStats
	users     map[uuid.UUID]domain.UserStats
}

func newMemoryStats() *memoryStats {
	return &memoryStats{
		resources: make(map[resourceKey]domain.ResourceStats),
		lists:     make(map[listKey]domain.ListStats),
		users:     make(map[uuid.UUID]domain.UserStats),
	}
}

var _ store.StatsStore = (*memoryStats)(nil)

func (m *memoryStats) GetResourceStats(ctx context.Context, userID, resourceID uuid.UUID) (*domain.ResourceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.resources[resourceKey{userID, resourceID}]
	if !ok {
		return nil, store.ErrStatsNotFound
	}
	return &row, nil
}

func (m *memoryStats) GetResourceStatsForUpdate(
	ctx context.Context,
	userID, resourceID uuid.UUID,
) (*domain.ResourceStats, error) {
	return m.GetResourceStats(ctx, userID, resourceID)
}

func (m *memoryStats) UpsertResourceStats(ctx context.Context, stats *domain.ResourceStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resourceKey{stats.UserID, stats.ResourceID}] = *stats
	return nil
}

func (m *memoryStats) GetListStats(ctx context.Context, userID, listID uuid.UUID) (*domain.ListStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.lists[listKey{userID, listID}]
	if !ok {
		return nil, store.ErrStatsNotFound
	}
	return &row, nil
}

func (m *memoryStats) GetListStatsForUpdate(ctx context.Context, userID, listID uuid.UUID) (*domain.ListStats, error) {
	return m.GetListStats(ctx, userID, listID)
}

func (m *memoryStats) UpsertListStats(ctx context.Context, stats *domain.ListStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[listKey{stats.UserID, stats.ListID}] = *stats
	return nil
}

func (m *memoryStats) GetUserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.users[userID]
	if !ok {
		return nil, store.ErrStatsNotFound
	}
	return &row, nil
}

func (m *memoryStats) GetUserStatsForUpdate(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	return m.GetUserStats(ctx, userID)
}

func (m *memoryStats) UpsertUserStats(ctx context.Context, stats *domain.UserStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[stats.UserID] = *stats
	return nil
}

func (m *memoryStats) WithTx(tx *sql.Tx) store.StatsStore {
	return m
}

// catalogReads is shared by a memoryCatalog and its transaction-bound copies.
type catalogReads struct {
	outsideTx    int
	resourcesErr error
}

// memoryCatalog is an in-memory store.CatalogStore.
type memoryCatalog struct {
	lists     map[uuid.UUID]*domain.List
	resources map[uuid.UUID]*domain.Resource
	inTx      bool
	reads     *catalogReads
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		lists:     make(map[uuid.UUID]*domain.List),
		resources: make(map[uuid.UUID]*domain.Resource),
		reads:     &catalogReads{},
	}
}

func (c *memoryCatalog) WithTx(tx *sql.Tx) store.CatalogStore {
	return &memoryCatalog{lists: c.lists, resources: c.resources, inTx: true, reads: c.reads}
}

func (c *memoryCatalog) read() {
	if !c.inTx {
		c.reads.outsideTx++
	}
}

var _ store.CatalogStore = (*memoryCatalog)(nil)

// addList creates a list of n fresh resources owned by ownerID.
func (c *memoryCatalog) addList(ownerID uuid.UUID, name string, n int) *domain.List {
	list := &domain.List{ID: uuid.New(), OwnerID: ownerID, Name: name, Tags: []string{name}}
	for i := 0; i < n; i++ {
		list.ResourceIDs = append(list.ResourceIDs, c.addResource(ownerID).ID)
	}
	c.lists[list.ID] = list
	return list
}

func (c *memoryCatalog) addResource(ownerID uuid.UUID) *domain.Resource {
	r := &domain.Resource{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Kind:          domain.ResourceKindPhrase,
		PrimaryText:   "hello",
		SecondaryText: "hola",
	}
	c.resources[r.ID] = r
	return r
}

func (c *memoryCatalog) GetList(ctx context.Context, ownerID, listID uuid.UUID) (*domain.List, error) {
	c.read()
	list, ok := c.lists[listID]
	if !ok || list.OwnerID != ownerID {
		return nil, store.ErrListNotFound
	}
	return list, nil
}

func (c *memoryCatalog) GetResources(
	ctx context.Context,
	ownerID uuid.UUID,
	ids []uuid.UUID,
) (map[uuid.UUID]*domain.Resource, error) {
	c.read()
	if c.reads.resourcesErr != nil {
		return nil, c.reads.resourcesErr
	}
	out := make(map[uuid.UUID]*domain.Resource, len(ids))
	for _, id := range ids {
		if r, ok := c.resources[id]; ok && r.OwnerID == ownerID {
			out[id] = r
		}
	}
	return out, nil
}
