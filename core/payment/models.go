package payment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

const monthFormat = "2006-01"

// Payment statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Payment methods
const (
	MethodCash         = "cash"
	MethodOnline       = "online"
	MethodBankTransfer = "bank_transfer"
)

// Payment is a fee payment for one calendar month of a batch;
// at most one per (batch, student, month).
type Payment struct {
	ID            string      `json:"id"`
	BatchID       string      `json:"batch_id"`
	StudentID     string      `json:"student_id"`
	Month         string      `json:"month"` // YYYY-MM
	Amount        float64     `json:"amount"`
	Status        string      `json:"status"`
	Method        string      `json:"method"`
	ReceiptNumber null.String `json:"receipt_number"`
	OrderRef      null.String `json:"order_ref"`
	PaymentRef    null.String `json:"payment_ref"`
	PaidAt        null.Time   `json:"paid_at"`
	Notes         null.String `json:"notes"`
	CreatedBy     null.String `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC

	// RedirectURL is the gateway checkout page for an online payment.
	// It is only set on the create response and never persisted.
	RedirectURL string `json:"redirect_url,omitempty"`
}

// NewPayment contains information needed to record a new Payment.
type NewPayment struct {
	BatchID   string   `json:"batch_id" validate:"required"`
	StudentID string   `json:"student_id" validate:"required"`
	Month     string   `json:"month" validate:"required,datetime=2006-01"`
	Amount    *float64 `json:"amount" validate:"omitempty,gt=0"` // nil defaults to the batch fee
	Method    string   `json:"method" validate:"required,oneof=cash online bank_transfer"`
	Notes     string   `json:"notes"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Month = core.CleanString(np.Month)
	np.Method = core.CleanString(np.Method, true)
	np.Notes = core.CleanString(np.Notes)
	return validate.Struct(np)
}

// UpdatePayment defines what may be changed on an existing Payment.
// The (batch, student, month) key is immutable.
type UpdatePayment struct {
	BatchID   string   `json:"batch_id"`
	StudentID string   `json:"student_id"`
	Month     string   `json:"month"`
	Status    string   `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	Method    string   `json:"method" validate:"omitempty,oneof=cash online bank_transfer"`
	Amount    *float64 `json:"amount" validate:"omitempty,gt=0"`
	Notes     *string  `json:"notes"`
}

// Validate cleans the provided fields and backfills the missing ones from
// origPmt so the service always persists a complete Payment. Attempts to
// change the payment key are rejected.
func (up *UpdatePayment) Validate(origPmt Payment, validate *validator.Validate) error {
	var flds []core.FieldError
	if up.BatchID != "" && up.BatchID != origPmt.BatchID {
		flds = append(flds, core.FieldError{Field: "batch_id", Error: "batch cannot be changed"})
	}
	if up.StudentID != "" && up.StudentID != origPmt.StudentID {
		flds = append(flds, core.FieldError{Field: "student_id", Error: "student cannot be changed"})
	}
	if up.Month = core.CleanString(up.Month); up.Month != "" && up.Month != origPmt.Month {
		flds = append(flds, core.FieldError{Field: "month", Error: "month cannot be changed"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}

	if up.Status = core.CleanString(up.Status, true); up.Status == "" {
		up.Status = origPmt.Status
	}
	if up.Method = core.CleanString(up.Method, true); up.Method == "" {
		up.Method = origPmt.Method
	}
	if up.Amount == nil {
		amount := origPmt.Amount
		up.Amount = &amount
	}
	return validate.Struct(up)
}

// BatchSummary aggregates a student's payments within one batch.
type BatchSummary struct {
	BatchID       string   `json:"batch_id"`
	BatchName     string   `json:"batch_name"`
	Fee           float64  `json:"fee"`
	TotalPaid     float64  `json:"total_paid"`
	MonthsPaid    []string `json:"months_paid"`
	PendingMonths []string `json:"pending_months"`
	TotalDue      float64  `json:"total_due"`
}

// Summary is a student's payment standing across their batches.
type Summary struct {
	StudentID string         `json:"student_id"`
	Batches   []BatchSummary `json:"batches"`
	TotalPaid float64        `json:"total_paid"`
	TotalDue  float64        `json:"total_due"`
}

type QueryFilter struct {
	BatchID   string `query:"batch_id"`
	StudentID string `query:"student_id"`
	TeacherID string `query:"-"` // payments of batches owned by this teacher; set by handlers
	Month     string `query:"month"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.BatchID == "" && qf.StudentID == "" && qf.TeacherID == "" && qf.Month == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.Month = core.CleanString(qf.Month)
	qf.Status = core.CleanString(qf.Status, true)
}

// GetFilter fetches a single Payment by ID.
type GetFilter struct {
	ID string
}
