// Package cart holds the register's in-progress sale: lines, discounting,
// stock checks and crash-safe persistence of the current contents.
package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
)

const (
	DefaultFlushInterval = 5 * time.Second
	DefaultStorageKey    = "pos-cart"
)

type Options struct {
	Store         SnapshotStore
	Key           string
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Cart is safe for concurrent use; mutations apply in call order.
type Cart struct {
	mu      sync.Mutex
	lines   []Line
	latest  string
	offered bool

	// persistMu orders snapshot writes and deletes. A write holds it from
	// reading the lines until the store returns.
	persistMu sync.Mutex

	store   SnapshotStore
	key     string
	logger  *slog.Logger
	flusher *Debouncer
}

func New(opts Options) *Cart {
	if opts.Key == "" {
		opts.Key = DefaultStorageKey
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	c := &Cart{
		store:  opts.Store,
		key:    opts.Key,
		logger: logging.OrDefault(opts.Logger),
	}
	c.flusher = NewDebouncer(opts.FlushInterval, func() {
		if err := c.persist(context.Background()); err != nil {
			c.logger.Warn("cart snapshot write failed", "key", c.key, "error", err)
		}
	})
	return c
}

// AddOrIncrement adds qty of product, creating a line at the product's selling
// price when none exists. qty below 1 counts as 1.
func (c *Cart) AddOrIncrement(product domain.Product, qty int) {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	if i := c.indexOf(product.ID); i >= 0 {
		c.lines[i].Quantity += qty
	} else {
		c.lines = append(c.lines, Line{Product: product, Quantity: qty, UnitPrice: product.SellingPrice})
	}
	c.latest = product.ID
	c.mu.Unlock()
	c.changed()
}

// SetQuantity sets the quantity exactly; qty <= 0 removes the line.
func (c *Cart) SetQuantity(productID string, qty int) {
	if qty <= 0 {
		c.RemoveLine(productID)
		return
	}
	c.mu.Lock()
	i := c.indexOf(productID)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.lines[i].Quantity = qty
	c.latest = productID
	c.mu.Unlock()
	c.changed()
}

// RemoveLine is a no-op when productID is not in the cart.
func (c *Cart) RemoveLine(productID string) {
	c.mu.Lock()
	i := c.indexOf(productID)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	if c.latest == productID {
		c.latest = ""
		if n := len(c.lines); n > 0 {
			c.latest = c.lines[n-1].Product.ID
		}
	}
	c.mu.Unlock()
	c.changed()
}

// ReplaceLine swaps in line for the existing line with the same product id.
// It reports false when there is no such line.
func (c *Cart) ReplaceLine(line Line) bool {
	if line.Quantity <= 0 {
		c.mu.Lock()
		found := c.indexOf(line.Product.ID) >= 0
		c.mu.Unlock()
		if found {
			c.RemoveLine(line.Product.ID)
		}
		return found
	}
	c.mu.Lock()
	i := c.indexOf(line.Product.ID)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.lines[i] = line
	c.latest = line.Product.ID
	c.mu.Unlock()
	c.changed()
	return true
}

// Clear empties the cart and removes the stored snapshot before returning.
// A snapshot write already in progress finishes first and is then deleted.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.lines = nil
	c.latest = ""
	c.mu.Unlock()
	c.flusher.Cancel()
	return c.deleteSnapshot(ctx)
}

// ApplyDiscount rescales unit prices so the cart totals target. The cart is
// left untouched when target is invalid.
func (c *Cart) ApplyDiscount(_ context.Context, target decimal.Decimal) (Allocation, error) {
	c.mu.Lock()
	if err := ValidateDiscountTarget(Total(c.lines), target); err != nil {
		c.mu.Unlock()
		return Allocation{}, err
	}
	alloc := AllocateDiscount(c.lines, target)
	c.lines = cloneLines(alloc.Lines)
	c.mu.Unlock()
	c.changed()
	return alloc, nil
}

func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Total(c.lines)
}

func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

// Lines returns a copy in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneLines(c.lines)
}

// Latest is the product id of the most recently affected line.
func (c *Cart) Latest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Flush writes a pending snapshot now instead of waiting for the debounce.
func (c *Cart) Flush(ctx context.Context) error {
	if !c.flusher.Cancel() {
		return nil
	}
	return c.persist(ctx)
}

// Close flushes pending state and stops the flush timer.
func (c *Cart) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.flusher.Stop()
	return err
}

// PendingRestore offers a stored snapshot once per Cart, and only while the
// cart is empty. Unreadable snapshots are deleted and reported as absent.
func (c *Cart) PendingRestore(ctx context.Context) ([]Line, bool) {
	c.mu.Lock()
	if c.offered || len(c.lines) > 0 || c.store == nil {
		c.offered = true
		c.mu.Unlock()
		return nil, false
	}
	c.offered = true
	c.mu.Unlock()

	data, err := c.store.Load(ctx, c.key)
	if err != nil {
		c.logger.Warn("cart snapshot read failed", "key", c.key, "error", err)
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	lines, err := DecodeSnapshot(data)
	if err != nil {
		c.logger.Warn("discarding unreadable cart snapshot", "key", c.key, "error", err)
		if delErr := c.deleteSnapshot(ctx); delErr != nil {
			c.logger.Warn("cart snapshot delete failed", "key", c.key, "error", delErr)
		}
		return nil, false
	}
	return lines, true
}

// Restore replaces the cart contents with an offered snapshot.
func (c *Cart) Restore(lines []Line) {
	c.mu.Lock()
	c.lines = cloneLines(lines)
	c.latest = ""
	if n := len(c.lines); n > 0 {
		c.latest = c.lines[n-1].Product.ID
	}
	c.mu.Unlock()
	c.changed()
}

// DiscardRestore drops an offered snapshot.
func (c *Cart) DiscardRestore(ctx context.Context) error {
	return c.deleteSnapshot(ctx)
}

func (c *Cart) indexOf(productID string) int {
	for i, line := range c.lines {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

// changed schedules a snapshot write, or deletes the snapshot right away when
// the cart just became empty.
func (c *Cart) changed() {
	if !c.IsEmpty() {
		c.flusher.Trigger()
		return
	}
	c.flusher.Cancel()
	if err := c.deleteSnapshot(context.Background()); err != nil {
		c.logger.Warn("cart snapshot delete failed", "key", c.key, "error", err)
	}
}

func (c *Cart) persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	lines := c.Lines()
	if len(lines) == 0 {
		return c.store.Delete(ctx, c.key)
	}
	data, err := EncodeSnapshot(lines)
	if err != nil {
		return err
	}
	return c.store.Save(ctx, c.key, data)
}

func (c *Cart) deleteSnapshot(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return c.store.Delete(ctx, c.key)
}
