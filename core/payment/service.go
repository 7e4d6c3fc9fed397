package payment

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/user"
)

var (
	ErrNotFound         = errors.New("payment not found")
	ErrPaymentExists    = errors.New("a payment for this student, batch and month already exists")
	ErrInvalidSignature = errors.New("invalid notification signature")

	// NowFunc returns the current time. It can be mocked in tests.
	NowFunc = time.Now
)

type (
	// Repository abstracts Payment persistence.
	Repository interface {
		CreatePayment(ctx context.Context, pmt Payment, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Payment, error)
		GetPayment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Payment, error)
		UpdatePayment(ctx context.Context, pmt Payment, exec ...core.DBExecutor) (Payment, error)
		DeletePayment(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeletePaymentsForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(np NewPayment, createdBy user.User) (Payment, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error)
		GetByID(id string) (Payment, error)
		Update(origPmt Payment, up UpdatePayment) (Payment, error)
		Delete(id string) error
		DeleteForBatch(batchID string) error

		// HandleNotification processes a gateway callback for an online payment.
		HandleNotification(n Notification) (Payment, error)
		StudentSummary(studentID, batchID string) (Summary, error)
	}

	service struct {
		repo     Repository
		batchSvc batch.Service
		usrSvc   user.Service
		provider Provider
		mailSvc  core.EmailService
		conf     core.Config
	}
)

var (
	_ Service         = (*service)(nil)
	_ batch.Dependent = (*service)(nil)
)

func NewService(
	repo Repository,
	batchSvc batch.Service,
	usrSvc user.Service,
	provider Provider,
	mailSvc core.EmailService,
	conf core.Config,
) Service {
	return &service{
		repo:     repo,
		batchSvc: batchSvc,
		usrSvc:   usrSvc,
		provider: provider,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

// Create records a payment. The amount defaults to the batch fee; cash and
// bank transfers complete immediately while online payments stay pending
// with a gateway order attached.
func (svc *service) Create(np NewPayment, createdBy user.User) (Payment, error) {
	ctx := context.Background()

	b, err := svc.batchSvc.GetByID(np.BatchID)
	if err != nil {
		if err == batch.ErrNotFound {
			return Payment{}, core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: err.Error()})
		}
		return Payment{}, err
	}
	if !b.IsEnrolled(np.StudentID) {
		return Payment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: batch.ErrNotEnrolled.Error()})
	}

	amount := b.Fee
	if np.Amount != nil {
		amount = *np.Amount
	}

	now := NowFunc().UTC()
	pmt := Payment{
		BatchID:   np.BatchID,
		StudentID: np.StudentID,
		Month:     np.Month,
		Amount:    amount,
		Status:    StatusPending,
		Method:    np.Method,
		Notes:     null.NewString(np.Notes, np.Notes != ""),
		CreatedBy: null.StringFrom(createdBy.ID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if np.Method != MethodOnline {
		pmt.Status = StatusCompleted
		pmt.ReceiptNumber = null.StringFrom(makeReceiptNumber(pmt.Month))
		pmt.PaidAt = null.TimeFrom(now)
	}

	pmt, err = svc.repo.CreatePayment(ctx, pmt)
	if err != nil {
		if err == ErrPaymentExists {
			return Payment{}, core.NewValidationError(err)
		}
		return Payment{}, err
	}

	if pmt.Method == MethodOnline {
		order, err := svc.provider.CreateOrder(ctx, pmt.ID, pmt.Amount, svc.conf.Payment.Currency)
		if err != nil {
			_ = svc.repo.DeletePayment(ctx, pmt.ID)
			return Payment{}, err
		}
		pmt.OrderRef = null.StringFrom(order.Ref)
		pmt.UpdatedAt = NowFunc().UTC()
		if pmt, err = svc.repo.UpdatePayment(ctx, pmt); err != nil {
			return Payment{}, err
		}
		pmt.RedirectURL = order.RedirectURL
	}
	return pmt, nil
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Payment, error) {
	return svc.repo.GetPayment(context.Background(), GetFilter{ID: id})
}

func (svc *service) Update(origPmt Payment, up UpdatePayment) (Payment, error) {
	pmt := origPmt
	pmt.Status = up.Status
	pmt.Method = up.Method
	pmt.Amount = *up.Amount
	if up.Notes != nil {
		pmt.Notes = null.NewString(*up.Notes, *up.Notes != "")
	}

	now := NowFunc().UTC()
	if pmt.Status == StatusCompleted && origPmt.Status != StatusCompleted {
		if !pmt.ReceiptNumber.Valid {
			pmt.ReceiptNumber = null.StringFrom(makeReceiptNumber(pmt.Month))
		}
		if !pmt.PaidAt.Valid {
			pmt.PaidAt = null.TimeFrom(now)
		}
	}
	pmt.UpdatedAt = now
	return svc.repo.UpdatePayment(context.Background(), pmt)
}

func (svc *service) Delete(id string) error {
	ctx := context.Background()

	pmt, err := svc.GetByID(id)
	if err != nil {
		return err
	}
	return svc.repo.DeletePayment(ctx, pmt.ID)
}

func (svc *service) DeleteForBatch(batchID string) error {
	return svc.repo.DeletePaymentsForBatch(context.Background(), batchID)
}

// HandleNotification authenticates a gateway callback and settles the matching
// payment. The receipt number is assigned on the first transition to completed
// and a completed payment is never rolled back by a late failure notification.
func (svc *service) HandleNotification(n Notification) (Payment, error) {
	ctx := context.Background()

	status, err := svc.provider.VerifyNotification(n)
	if err != nil {
		return Payment{}, core.NewValidationError(err)
	}

	pmt, err := svc.repo.GetPayment(ctx, GetFilter{ID: n.OrderID})
	if err != nil {
		return Payment{}, err
	}
	if pmt.Status == StatusCompleted || status == StatusPending {
		return pmt, nil
	}

	now := NowFunc().UTC()
	pmt.Status = status
	pmt.PaymentRef = null.NewString(n.PaymentRef, n.PaymentRef != "")
	if status == StatusCompleted {
		if !pmt.ReceiptNumber.Valid {
			pmt.ReceiptNumber = null.StringFrom(makeReceiptNumber(pmt.Month))
		}
		pmt.PaidAt = null.TimeFrom(now)
	}
	pmt.UpdatedAt = now

	pmt, err = svc.repo.UpdatePayment(ctx, pmt)
	if err != nil {
		return Payment{}, err
	}
	if pmt.Status == StatusCompleted {
		go svc.sendReceiptMail(pmt)
	}
	return pmt, nil
}

// StudentSummary reports a student's payment standing, per batch and overall.
// Months from the batch start through the earlier of now and the batch end
// that have no completed payment count as pending.
func (svc *service) StudentSummary(studentID, batchID string) (Summary, error) {
	var batches []batch.Batch
	if batchID != "" {
		b, err := svc.batchSvc.GetByID(batchID)
		if err != nil {
			return Summary{}, err
		}
		batches = append(batches, b)
	} else {
		var err error
		batches, err = svc.batchSvc.Query(&batch.QueryFilter{StudentID: studentID}, nil)
		if err != nil {
			return Summary{}, err
		}
	}

	pmts, err := svc.repo.QueryPayments(context.Background(), &QueryFilter{StudentID: studentID}, nil)
	if err != nil {
		return Summary{}, err
	}
	completedByBatch := make(map[string][]Payment, len(batches))
	for _, pmt := range pmts {
		if pmt.Status == StatusCompleted {
			completedByBatch[pmt.BatchID] = append(completedByBatch[pmt.BatchID], pmt)
		}
	}

	now := NowFunc().UTC()
	sum := Summary{StudentID: studentID, Batches: make([]BatchSummary, 0, len(batches))}
	for _, b := range batches {
		bSum := BatchSummary{
			BatchID:    b.ID,
			BatchName:  b.Name,
			Fee:        b.Fee,
			MonthsPaid: make([]string, 0),
		}
		paid := make(map[string]bool)
		for _, pmt := range completedByBatch[b.ID] {
			bSum.TotalPaid += pmt.Amount
			if !paid[pmt.Month] {
				paid[pmt.Month] = true
				bSum.MonthsPaid = append(bSum.MonthsPaid, pmt.Month)
			}
		}
		sort.Strings(bSum.MonthsPaid)

		bSum.PendingMonths = pendingMonths(b.StartDate, b.EndDate, now, paid)
		bSum.TotalDue = b.Fee * float64(len(bSum.PendingMonths))

		sum.TotalPaid += bSum.TotalPaid
		sum.TotalDue += bSum.TotalDue
		sum.Batches = append(sum.Batches, bSum)
	}
	return sum, nil
}

func (svc *service) sendReceiptMail(pmt Payment) {
	usr, err := svc.usrSvc.GetByID(pmt.StudentID)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("%s - Payment Receipt", svc.conf.AppName),
		TemplateName: "payment-receipt",
		TemplateData: struct {
			Username      string
			ReceiptNumber string
			Month         string
			Amount        string
		}{
			usr.Username,
			pmt.ReceiptNumber.String,
			pmt.Month,
			fmt.Sprintf("%s %.2f", svc.conf.Payment.Currency, pmt.Amount),
		},
	})
}

// makeReceiptNumber builds a human readable receipt id for the given month,
// e.g. "RCP-202105-1F2A3B4C".
func makeReceiptNumber(month string) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("RCP-%s-%s", strings.ReplaceAll(month, "-", ""), suffix)
}

// pendingMonths lists the calendar months from start through the earlier of
// end and now that are not in paid, in "2006-01" form.
func pendingMonths(start, end, now time.Time, paid map[string]bool) []string {
	if end.After(now) {
		end = now
	}
	months := make([]string, 0)
	if end.Before(start) {
		return months
	}
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		if month := cur.Format(monthFormat); !paid[month] {
			months = append(months, month)
		}
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}
