package dayclose

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/xid"
)

var (
	ErrNegativeCash     = errors.New("cash counted cannot be negative")
	ErrCashNotEntered   = errors.New("enter the counted cash first")
	ErrWizardClosed     = errors.New("day close already submitted")
	ErrWrongStep        = errors.New("not available at this step")
	ErrSubmitInProgress = errors.New("report submission in progress")
)

type Step int

const (
	StepReview Step = iota + 1
	StepCount
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepReview:
		return "review"
	case StepCount:
		return "count"
	case StepConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

type ReportSubmitter interface {
	SubmitDailyReport(ctx context.Context, req domain.DailyReportRequest) (domain.DailyReport, error)
}

// Wizard walks the operator through review, cash count and confirmation.
// Nothing is persisted until Submit succeeds.
type Wizard struct {
	mu          sync.Mutex
	totals      Totals
	step        Step
	cashCounted *decimal.Decimal
	notes       string
	key         string
	submitting  bool
	closed      bool

	submitter ReportSubmitter
	logger    *slog.Logger
}

func NewWizard(totals Totals, submitter ReportSubmitter, logger *slog.Logger) *Wizard {
	return &Wizard{
		totals:    totals,
		step:      StepReview,
		key:       xid.Key(),
		submitter: submitter,
		logger:    logging.OrDefault(logger),
	}
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Totals() Totals {
	return w.totals
}

func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	switch w.step {
	case StepReview:
		w.step = StepCount
	case StepCount:
		if w.cashCounted == nil {
			return ErrCashNotEntered
		}
		w.step = StepConfirm
	default:
		return ErrWrongStep
	}
	return nil
}

func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if w.step == StepReview || w.submitting {
		return ErrWrongStep
	}
	w.step--
	return nil
}

func (w *Wizard) SetCashCounted(amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	if w.step != StepCount {
		return ErrWrongStep
	}
	if amount.IsNegative() {
		return ErrNegativeCash
	}
	w.cashCounted = &amount
	return nil
}

func (w *Wizard) SetNotes(notes string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWizardClosed
	}
	w.notes = strings.TrimSpace(notes)
	return nil
}

// Preview reconciles the entered count without submitting it.
func (w *Wizard) Preview() (Reconciliation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cashCounted == nil {
		return Reconciliation{}, ErrCashNotEntered
	}
	return Reconcile(w.totals, *w.cashCounted), nil
}

// Submit sends the report once. A failure leaves the wizard on the confirm
// step so the operator can try again; the same idempotency key is reused.
func (w *Wizard) Submit(ctx context.Context) (domain.DailyReport, error) {
	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return domain.DailyReport{}, ErrWizardClosed
	case w.submitting:
		w.mu.Unlock()
		return domain.DailyReport{}, ErrSubmitInProgress
	case w.step != StepConfirm:
		w.mu.Unlock()
		return domain.DailyReport{}, ErrWrongStep
	}
	w.submitting = true
	req := domain.DailyReportRequest{
		CashCounted:    *w.cashCounted,
		Notes:          w.notes,
		IdempotencyKey: w.key,
	}
	w.mu.Unlock()

	report, err := w.submitter.SubmitDailyReport(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.logger.Warn("daily report submission failed", "error", err)
		return domain.DailyReport{}, err
	}
	w.closed = true
	w.logger.Info("day closed", "report_id", report.ID, "date", report.Date, "severity", report.Severity)
	return report, nil
}
