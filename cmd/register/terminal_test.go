package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguz-kara/pos-app-sub001/internal/apiclient"
	"github.com/oguz-kara/pos-app-sub001/internal/cache"
	"github.com/oguz-kara/pos-app-sub001/internal/cart"
	"github.com/oguz-kara/pos-app-sub001/internal/checkout"
	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/httpapi"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
	"github.com/oguz-kara/pos-app-sub001/internal/register"
	"github.com/oguz-kara/pos-app-sub001/internal/retry"
	"github.com/oguz-kara/pos-app-sub001/internal/service"
	"github.com/oguz-kara/pos-app-sub001/internal/store/memory"
)

// runScript drives a terminal against a full in-process backend.
func runScript(t *testing.T, snapshots cart.SnapshotStore, script string) string {
	t.Helper()
	logger := logging.NewWithWriter(io.Discard, "text")

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{DefaultStoreID: "main-store", Logger: logger})
	auth := httpapi.NewAuthManager("test-secret-that-is-long-enough-1234", time.Hour, "739154", repo)
	srv := httptest.NewServer(httpapi.New(svc, auth, "*", logger).Handler())
	defer srv.Close()

	client := apiclient.New(srv.URL, apiclient.WithStoreID("main-store"))
	_, err := client.Login(context.Background(), "cashier", "cashier123")
	require.NoError(t, err)

	format, err := money.NewFormatter("USD", "en-US")
	require.NoError(t, err)

	c := cart.New(cart.Options{Store: snapshots, FlushInterval: time.Hour, Logger: logger})
	defer c.Close(context.Background())

	var out bytes.Buffer
	term := newTerminal(strings.NewReader(script), &out, format)
	term.session = register.NewSession(register.Options{
		Backend:  client,
		Cart:     c,
		Notifier: checkout.NotifierFunc(term.notify),
		Policy:   retry.Policy{Attempts: 1},
		Logger:   logger,
	})

	require.NoError(t, term.run(context.Background()))
	return out.String()
}

func TestTerminalSaleAndDayClose(t *testing.T) {
	out := runScript(t, cache.NewMemorySnapshotStore(), strings.Join([]string{
		"2x HAM-16",
		"glue",
		"total",
		"pay cash",
		"close",
		"43.75",
		"",
		"y",
		"quit",
	}, "\n")+"\n")

	assert.Contains(t, out, "added Claw Hammer 16oz")
	assert.Contains(t, out, "3 item(s), total $43.75")
	assert.Contains(t, out, "[success] Sale recorded (receipt R-")
	assert.Contains(t, out, "cash sales  $43.75")
	assert.Contains(t, out, "(0.00%) balanced")
	assert.Contains(t, out, "day closed, report")
}

func TestTerminalSearchAndCartCommands(t *testing.T) {
	out := runScript(t, cache.NewMemorySnapshotStore(), strings.Join([]string{
		"screw",
		"esc",
		"chainsaw",
		"3x 0012345000042",
		"qty prod-nails 5",
		"discount 20",
		"rm prod-nails",
		"pay cash",
		"quit",
	}, "\n")+"\n")

	assert.Contains(t, out, "2 matches, scan a barcode or SKU:")
	assert.Contains(t, out, "search cleared")
	assert.Contains(t, out, `no product matches "chainsaw"`)
	assert.Contains(t, out, "5 item(s), total $20.50")
	assert.Contains(t, out, "5 item(s), total $20.00")
	assert.Contains(t, out, "cart is empty")
	assert.Contains(t, out, "cart is empty\n> cart is empty")
}

func TestTerminalStockShortage(t *testing.T) {
	out := runScript(t, cache.NewMemorySnapshotStore(), strings.Join([]string{
		"5x GLUE-250",
		"pay card",
		"PAY! card",
		"quit",
	}, "\n")+"\n")

	assert.Contains(t, out, "Wood Glue 250ml: requested 5, available 3 (short 2)")
	assert.Contains(t, out, "use pay! card to sell anyway")
	assert.Contains(t, out, "paid by card")
}

func TestTerminalEditsLinePrice(t *testing.T) {
	out := runScript(t, cache.NewMemorySnapshotStore(), strings.Join([]string{
		"2x NAIL-1K",
		"price prod-nails 3.5",
		"price prod-nails -1",
		"price prod-ghost 1",
		"price prod-nails",
		"pay cash",
		"quit",
	}, "\n")+"\n")

	assert.Contains(t, out, "2 item(s), total $8.20")
	assert.Contains(t, out, "2 item(s), total $7.00")
	assert.Contains(t, out, "price cannot be negative")
	assert.Contains(t, out, `no line for "prod-ghost"`)
	assert.Contains(t, out, "usage: price <id> <amount>")
	assert.Contains(t, out, "paid by cash")
}

func TestTerminalRestoresSavedCart(t *testing.T) {
	snapshots := cache.NewMemorySnapshotStore()
	saved, err := cart.EncodeSnapshot([]cart.Line{{
		Product:   domain.Product{ID: "prod-tape", Name: "Measuring Tape 5m", SellingPrice: decimal.RequireFromString("9.95")},
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("9.95"),
	}})
	require.NoError(t, err)
	require.NoError(t, snapshots.Save(context.Background(), cart.DefaultStorageKey, saved))

	out := runScript(t, snapshots, "y\nquit\n")

	assert.Contains(t, out, "unfinished cart found: 1 line(s), $19.90")
	assert.Contains(t, out, "2 item(s), total $19.90")
}
