package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	deletes int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, key)
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func product(id string, price string, stock *int) domain.Product {
	return domain.Product{
		ID:           id,
		Name:         "Product " + id,
		SKU:          "SKU-" + id,
		SellingPrice: decimal.RequireFromString(price),
		TotalStock:   stock,
	}
}

func intPtr(v int) *int { return &v }

func newTestCart(store SnapshotStore, interval time.Duration) *Cart {
	return New(Options{Store: store, Key: DefaultStorageKey, FlushInterval: interval})
}

func TestAddOrIncrementMergesByProductID(t *testing.T) {
	c := newTestCart(nil, time.Hour)
	hammer := product("hammer", "12.50", nil)
	nails := product("nails", "0.10", nil)

	c.AddOrIncrement(hammer, 1)
	c.AddOrIncrement(nails, 100)
	c.AddOrIncrement(hammer, 2)

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "hammer", lines[0].Product.ID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "hammer", c.Latest())
	assert.Equal(t, 103, c.ItemCount())
	assert.True(t, c.Total().Equal(decimal.RequireFromString("47.50")))
}

func TestAddOrIncrementTreatsNonPositiveQuantityAsOne(t *testing.T) {
	c := newTestCart(nil, time.Hour)
	c.AddOrIncrement(product("a", "1", nil), 0)
	assert.Equal(t, 1, c.ItemCount())
}

func TestSetQuantityAndRemoveLine(t *testing.T) {
	c := newTestCart(nil, time.Hour)
	c.AddOrIncrement(product("a", "2", nil), 1)
	c.AddOrIncrement(product("b", "3", nil), 1)

	c.SetQuantity("a", 5)
	assert.Equal(t, 5, c.Lines()[0].Quantity)

	c.SetQuantity("a", 0)
	require.Len(t, c.Lines(), 1)

	c.RemoveLine("b")
	once := c.Lines()
	c.RemoveLine("b")
	assert.Equal(t, once, c.Lines())
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "", c.Latest())
}

func TestReplaceLine(t *testing.T) {
	c := newTestCart(nil, time.Hour)
	p := product("a", "2", nil)
	c.AddOrIncrement(p, 1)

	ok := c.ReplaceLine(Line{Product: p, Quantity: 4, UnitPrice: decimal.RequireFromString("1.75")})
	require.True(t, ok)
	assert.True(t, c.Total().Equal(decimal.RequireFromString("7")))

	assert.False(t, c.ReplaceLine(Line{Product: product("zzz", "1", nil), Quantity: 1}))
}

func TestMutationsCollapseIntoOneDebouncedWrite(t *testing.T) {
	store := newMemStore()
	c := newTestCart(store, 30*time.Millisecond)
	p := product("a", "1.00", nil)

	for i := 0; i < 5; i++ {
		c.AddOrIncrement(p, 1)
	}
	assert.Equal(t, 0, store.saveCount())

	require.Eventually(t, func() bool { return store.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, store.saveCount())

	data, _ := store.Load(context.Background(), DefaultStorageKey)
	lines, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestEmptyCartDeletesSnapshotImmediately(t *testing.T) {
	store := newMemStore()
	c := newTestCart(store, time.Hour)
	c.AddOrIncrement(product("a", "1", nil), 1)
	require.NoError(t, c.Flush(context.Background()))
	require.True(t, store.has(DefaultStorageKey))

	c.AddOrIncrement(product("a", "1", nil), 1)
	c.RemoveLine("a")
	assert.False(t, store.has(DefaultStorageKey))
	assert.NoError(t, c.Flush(context.Background()))
	assert.False(t, store.has(DefaultStorageKey))
}

func TestClearRemovesSnapshotSynchronously(t *testing.T) {
	store := newMemStore()
	c := newTestCart(store, time.Hour)
	c.AddOrIncrement(product("a", "1", nil), 2)
	require.NoError(t, c.Flush(context.Background()))

	require.NoError(t, c.Clear(context.Background()))
	assert.True(t, c.IsEmpty())
	assert.False(t, store.has(DefaultStorageKey))
}

// stallingStore parks the first Save until release is closed.
type stallingStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallingStore) Save(ctx context.Context, key string, data []byte) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.memStore.Save(ctx, key, data)
}

func TestClearWaitsOutInFlightFlush(t *testing.T) {
	store := &stallingStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
	c := newTestCart(store, 10*time.Millisecond)
	c.AddOrIncrement(product("p1", "5", nil), 1)

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("flush never reached the store")
	}

	cleared := make(chan error, 1)
	go func() { cleared <- c.Clear(context.Background()) }()

	select {
	case err := <-cleared:
		t.Fatalf("Clear returned while a write was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-cleared)

	assert.True(t, c.IsEmpty())
	data, err := store.Load(context.Background(), DefaultStorageKey)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPendingRestoreOfferedOnce(t *testing.T) {
	store := newMemStore()
	first := newTestCart(store, time.Hour)
	first.AddOrIncrement(product("a", "4.00", intPtr(3)), 2)
	require.NoError(t, first.Close(context.Background()))

	c := newTestCart(store, time.Hour)
	lines, ok := c.PendingRestore(context.Background())
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, c.IsEmpty(), "restore must not auto-apply")

	_, again := c.PendingRestore(context.Background())
	assert.False(t, again)

	c.Restore(lines)
	assert.Equal(t, "a", c.Latest())
	assert.True(t, c.Total().Equal(decimal.RequireFromString("8")))
}

func TestDiscardRestoreDeletesSnapshot(t *testing.T) {
	store := newMemStore()
	store.data[DefaultStorageKey] = []byte(`[{"product":{"id":"a","name":"A","sku":"A","sellingPrice":"1","totalStock":null},"quantity":1,"unitPrice":"1"}]`)

	c := newTestCart(store, time.Hour)
	_, ok := c.PendingRestore(context.Background())
	require.True(t, ok)
	require.NoError(t, c.DiscardRestore(context.Background()))
	assert.False(t, store.has(DefaultStorageKey))
}

func TestCorruptSnapshotFailsOpen(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":    `{"broken`,
		"not array":   `{"product":"a"}`,
		"all invalid": `[{"product":{"id":""},"quantity":2,"unitPrice":"1"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			store.data[DefaultStorageKey] = []byte(payload)
			c := newTestCart(store, time.Hour)

			lines, ok := c.PendingRestore(context.Background())
			assert.False(t, ok)
			assert.Nil(t, lines)
			assert.False(t, store.has(DefaultStorageKey))
			assert.True(t, c.IsEmpty())
		})
	}
}

func TestApplyDiscountRejectsInvalidTargetsWithoutMutation(t *testing.T) {
	c := newTestCart(nil, time.Hour)
	c.AddOrIncrement(product("a", "10", nil), 2)
	before := c.Lines()

	_, err := c.ApplyDiscount(context.Background(), decimal.Zero)
	require.ErrorIs(t, err, ErrTargetNotPositive)
	_, err = c.ApplyDiscount(context.Background(), decimal.NewFromInt(21))
	require.ErrorIs(t, err, ErrTargetExceedsTotal)
	assert.Equal(t, before, c.Lines())

	alloc, err := c.ApplyDiscount(context.Background(), decimal.NewFromInt(15))
	require.NoError(t, err)
	assert.False(t, alloc.Warn)
	assert.True(t, c.Total().Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 2, c.Lines()[0].Quantity)
}
