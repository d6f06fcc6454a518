package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oguz-kara/pos-app-sub001/internal/cart"
	"github.com/oguz-kara/pos-app-sub001/internal/checkout"
	"github.com/oguz-kara/pos-app-sub001/internal/dayclose"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
	"github.com/oguz-kara/pos-app-sub001/internal/register"
)

const usage = `commands:
  <text>                 scan or search ("3x hammer" adds three)
  qty <id> <n>           set a line quantity (0 removes it)
  price <id> <amount>    set a line's unit price
  rm <id>                remove a line
  discount <total>       rescale prices so the cart totals <total>
  pay cash|card [notes]  check out
  pay! cash|card [notes] check out even when stock is short
  clear                  empty the cart
  total                  show the cart
  esc                    clear the search field
  close                  close the day (Z-report)
  quit
`

// terminal is a line-oriented front end for one register session. A line
// holding a single space is treated as the space key.
type terminal struct {
	session *register.Session
	format  *money.Formatter
	in      *bufio.Scanner
	out     io.Writer
}

func newTerminal(in io.Reader, out io.Writer, format *money.Formatter) *terminal {
	return &terminal{in: bufio.NewScanner(in), out: out, format: format}
}

func (t *terminal) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) notify(n checkout.Notice) {
	t.printf("[%s] %s\n", n.Kind, n.Message)
}

func (t *terminal) readLine(prompt string) (string, bool) {
	t.printf("%s", prompt)
	if !t.in.Scan() {
		return "", false
	}
	return t.in.Text(), true
}

func (t *terminal) confirm(ctx context.Context, question string) bool {
	answer, ok := t.readLine(question + " [y/N] ")
	if !ok || ctx.Err() != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (t *terminal) run(ctx context.Context) error {
	t.offerRestore(ctx)
	t.printf("register ready, type help for commands\n")
	for {
		line, ok := t.readLine("> ")
		if !ok {
			return t.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := t.exec(ctx, line); quit {
			return nil
		}
	}
}

func (t *terminal) offerRestore(ctx context.Context) {
	c := t.session.Cart()
	lines, ok := c.PendingRestore(ctx)
	if !ok {
		return
	}
	t.printf("unfinished cart found: %d line(s), %s\n", len(lines), t.format.Format(cart.Total(lines)))
	if t.confirm(ctx, "restore it?") {
		c.Restore(lines)
		t.printCart()
		return
	}
	if err := c.DiscardRestore(ctx); err != nil {
		t.printf("could not discard saved cart: %v\n", err)
	}
}

// exec runs one command line and reports whether the session should end.
func (t *terminal) exec(ctx context.Context, line string) bool {
	if line == " " {
		if t.session.HandleKey(register.KeySpace, false) == register.ActionOpenCheckout {
			t.printCart()
			t.printf("pay cash|card to finish\n")
		}
		return false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	c := t.session.Cart()

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "quit", "exit":
		return true
	case "help":
		t.printf("%s", usage)
	case "total":
		t.printCart()
	case "clear":
		if err := c.Clear(ctx); err != nil {
			t.printf("clear: %v\n", err)
		}
		t.printCart()
	case "qty":
		if len(fields) != 3 {
			t.printf("usage: qty <id> <n>\n")
			return false
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			t.printf("quantity must be a whole number\n")
			return false
		}
		c.SetQuantity(fields[1], n)
		t.printCart()
	case "price":
		t.price(fields[1:])
	case "rm":
		if len(fields) != 2 {
			t.printf("usage: rm <id>\n")
			return false
		}
		c.RemoveLine(fields[1])
		t.printCart()
	case "discount":
		t.discount(ctx, fields[1:])
	case "pay", "pay!":
		t.pay(ctx, fields[1:], cmd == "pay!")
	case "close":
		t.closeDay(ctx)
	case "esc":
		if t.session.HandleKey(register.KeyEscape, true) == register.ActionClearSearch {
			t.printf("search cleared\n")
		}
	default:
		t.scan(ctx, strings.TrimSpace(line))
	}
	return false
}

func (t *terminal) scan(ctx context.Context, raw string) {
	product, err := t.session.Scan(ctx, raw)
	var ambiguous *register.AmbiguousError
	switch {
	case err == nil:
		t.printf("added %s\n", product.Name)
		t.printCart()
	case errors.As(err, &ambiguous):
		t.printf("%d matches, scan a barcode or SKU:\n", len(ambiguous.Candidates))
		for _, p := range ambiguous.Candidates {
			t.printf("  %-14s %-10s %-32s %10s  stock %d\n", p.Barcode, p.SKU, p.Name, t.format.Format(p.SellingPrice), p.Stock())
		}
	case errors.Is(err, register.ErrNoMatch):
		t.printf("no product matches %q\n", raw)
	default:
		t.printf("search failed: %v\n", err)
	}
}

func (t *terminal) price(args []string) {
	if len(args) != 2 {
		t.printf("usage: price <id> <amount>\n")
		return
	}
	amount, err := money.ParseAmount(args[1])
	if err != nil {
		t.printf("%v\n", err)
		return
	}
	if amount.IsNegative() {
		t.printf("price cannot be negative\n")
		return
	}
	c := t.session.Cart()
	for _, line := range c.Lines() {
		if line.Product.ID != args[0] {
			continue
		}
		line.UnitPrice = money.Round(amount)
		c.ReplaceLine(line)
		t.printCart()
		return
	}
	t.printf("no line for %q\n", args[0])
}

func (t *terminal) discount(ctx context.Context, args []string) {
	if len(args) != 1 {
		t.printf("usage: discount <total>\n")
		return
	}
	target, err := money.ParseAmount(args[0])
	if err != nil {
		t.printf("%v\n", err)
		return
	}
	alloc, err := t.session.Cart().ApplyDiscount(ctx, target)
	if err != nil {
		t.printf("discount: %v\n", err)
		return
	}
	if alloc.Warn {
		t.printf("warning: discount is more than half of the original total\n")
	}
	t.printCart()
}

func (t *terminal) pay(ctx context.Context, args []string, override bool) {
	if len(args) == 0 {
		t.printf("usage: pay cash|card [notes]\n")
		return
	}
	req := checkout.Request{
		PaymentMethod: strings.ToLower(args[0]),
		Notes:         strings.Join(args[1:], " "),
		OverrideStock: override,
	}

	total := t.session.Cart().Total()
	receipt, err := t.session.Checkout(ctx, req)
	var shortage *checkout.StockShortageError
	switch {
	case err == nil:
		t.printf("receipt %s  %s  paid by %s\n", receipt.ReceiptNumber, t.format.Format(total), req.PaymentMethod)
	case errors.As(err, &shortage):
		t.printf("not enough stock:\n")
		for _, issue := range shortage.Issues {
			t.printf("  %s: requested %d, available %d (short %d)\n",
				issue.Product.Name, issue.RequestedQty, issue.AvailableStock, issue.Shortage)
		}
		t.printf("use pay! %s to sell anyway\n", req.PaymentMethod)
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidPaymentMethod),
		errors.Is(err, checkout.ErrCheckoutInFlight):
		t.printf("%v\n", err)
	}
	// Backend failures were already reported through notify.
}

func (t *terminal) closeDay(ctx context.Context) {
	wizard, err := t.session.StartDayClose(ctx)
	if err != nil {
		t.printf("cannot start day close: %v\n", err)
		return
	}

	totals := wizard.Totals()
	t.printf("day close\n  cash sales  %s\n  card sales  %s\n  refunds     %s\n",
		t.format.Format(totals.GrossCashSales), t.format.Format(totals.CardSales), t.format.Format(totals.TotalRefunds))
	if err := wizard.Next(); err != nil {
		t.printf("%v\n", err)
		return
	}

	for {
		raw, ok := t.readLine("cash counted (blank cancels): ")
		if !ok || strings.TrimSpace(raw) == "" {
			t.printf("day close cancelled\n")
			return
		}
		amount, err := money.ParseAmount(raw)
		if err == nil {
			err = wizard.SetCashCounted(amount)
		}
		if err == nil {
			break
		}
		t.printf("%v\n", err)
	}

	notes, _ := t.readLine("notes (optional): ")
	_ = wizard.SetNotes(notes)
	if err := wizard.Next(); err != nil {
		t.printf("%v\n", err)
		return
	}

	preview, err := wizard.Preview()
	if err != nil {
		t.printf("%v\n", err)
		return
	}
	t.printf("  expected    %s\n  counted     %s\n  variance    %s (%s%%) %s\n",
		t.format.Format(preview.NetExpectedCash), t.format.Format(preview.CashCounted),
		t.format.Format(preview.Variance), preview.VariancePercentage.StringFixed(money.Places), preview.Severity)
	if preview.RefundsExceedCash {
		t.printf("warning: refunds exceed cash sales\n")
	}
	if preview.Severity == dayclose.SeverityHigh {
		t.printf("warning: variance is high, recount before submitting\n")
	}

	for t.confirm(ctx, "submit report?") {
		report, err := wizard.Submit(ctx)
		if err == nil {
			t.printf("day closed, report %s for %s\n", report.ID, report.Date)
			return
		}
		t.printf("submit failed: %v\n", err)
	}
	t.printf("report not submitted\n")
}

func (t *terminal) printCart() {
	c := t.session.Cart()
	lines := c.Lines()
	if len(lines) == 0 {
		t.printf("cart is empty\n")
		return
	}
	latest := c.Latest()
	for _, line := range lines {
		marker := " "
		if line.Product.ID == latest {
			marker = "*"
		}
		t.printf("%s %-18s %-32s %3d x %10s = %10s\n", marker, line.Product.ID, line.Product.Name,
			line.Quantity, t.format.Format(line.UnitPrice), t.format.Format(line.Subtotal()))
	}
	t.printf("  %d item(s), total %s\n", c.ItemCount(), t.format.Format(c.Total()))
}
