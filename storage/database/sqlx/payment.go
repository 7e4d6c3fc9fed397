package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/payment"
)

const paymentColumns = "id, batch_id, student_id, month, amount, status, method, " +
	"receipt_number, order_ref, payment_ref, paid_at, notes, created_by, created_at, updated_at"

type dbPayment struct {
	ID            string      `db:"id"`
	BatchID       string      `db:"batch_id"`
	StudentID     string      `db:"student_id"`
	Month         string      `db:"month"`
	Amount        float64     `db:"amount"`
	Status        string      `db:"status"`
	Method        string      `db:"method"`
	ReceiptNumber null.String `db:"receipt_number"`
	OrderRef      null.String `db:"order_ref"`
	PaymentRef    null.String `db:"payment_ref"`
	PaidAt        null.Time   `db:"paid_at"`
	Notes         null.String `db:"notes"`
	CreatedBy     null.String `db:"created_by"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

type paymentRepository struct {
	exec core.DBExecutor
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(exec core.DBExecutor) *paymentRepository {
	return &paymentRepository{exec: exec}
}

func (repo paymentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo paymentRepository) pack(pmt payment.Payment) dbPayment {
	return dbPayment{
		ID:            pmt.ID,
		BatchID:       pmt.BatchID,
		StudentID:     pmt.StudentID,
		Month:         pmt.Month,
		Amount:        pmt.Amount,
		Status:        pmt.Status,
		Method:        pmt.Method,
		ReceiptNumber: pmt.ReceiptNumber,
		OrderRef:      pmt.OrderRef,
		PaymentRef:    pmt.PaymentRef,
		PaidAt:        pmt.PaidAt,
		Notes:         pmt.Notes,
		CreatedBy:     pmt.CreatedBy,
		CreatedAt:     pmt.CreatedAt.UTC(),
		UpdatedAt:     pmt.UpdatedAt.UTC(),
	}
}

func (repo paymentRepository) unpack(p dbPayment) payment.Payment {
	return payment.Payment{
		ID:            p.ID,
		BatchID:       p.BatchID,
		StudentID:     p.StudentID,
		Month:         p.Month,
		Amount:        p.Amount,
		Status:        p.Status,
		Method:        p.Method,
		ReceiptNumber: p.ReceiptNumber,
		OrderRef:      p.OrderRef,
		PaymentRef:    p.PaymentRef,
		PaidAt:        p.PaidAt,
		Notes:         p.Notes,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to payment.ErrNotFound
func (repo paymentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return payment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo paymentRepository) CreatePayment(ctx context.Context, pmt payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	pmt.ID = uuid.New().String()
	query := `
	INSERT INTO payments (id, batch_id, student_id, month, amount, status, method,
	                      receipt_number, order_ref, payment_ref, paid_at, notes, created_by, created_at, updated_at)
	VALUES (:id, :batch_id, :student_id, :month, :amount, :status, :method,
	        :receipt_number, :order_ref, :payment_ref, :paid_at, :notes, :created_by, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, repo.pack(pmt)); err != nil {
		if isUniqueViolation(err, "payments_batch_student_month_key") {
			return payment.Payment{}, payment.ErrPaymentExists
		}
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return pmt, nil
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]payment.Payment, error) {
	var conds []string
	var args argList

	if filter != nil {
		if filter.BatchID != "" {
			conds = append(conds, "batch_id = "+args.add(filter.BatchID))
		}
		if filter.StudentID != "" {
			conds = append(conds, "student_id = "+args.add(filter.StudentID))
		}
		if filter.TeacherID != "" {
			conds = append(conds, "batch_id IN (SELECT id FROM batches WHERE teacher_id = "+args.add(filter.TeacherID)+")")
		}
		if filter.Month != "" {
			conds = append(conds, "month = "+args.add(filter.Month))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+args.add(filter.Status))
		}
	}

	query := "SELECT " + paymentColumns + " FROM payments"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering)

	var rows []dbPayment
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	pmts := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		pmts = append(pmts, repo.unpack(row))
	}
	return pmts, nil
}

func (repo paymentRepository) GetPayment(ctx context.Context, filter payment.GetFilter, exec ...core.DBExecutor) (payment.Payment, error) {
	if _, err := uuid.Parse(filter.ID); err != nil {
		return payment.Payment{}, payment.ErrNotFound
	}

	var row dbPayment
	query := "SELECT " + paymentColumns + " FROM payments WHERE id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, filter.ID); err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "finding payment")
	}
	return repo.unpack(row), nil
}

func (repo paymentRepository) UpdatePayment(ctx context.Context, pmt payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	query := `
	UPDATE payments
	SET amount = $1, status = $2, method = $3, receipt_number = $4, order_ref = $5,
	    payment_ref = $6, paid_at = $7, notes = $8, updated_at = $9
	WHERE id = $10
	RETURNING ` + paymentColumns

	var row dbPayment
	err := repo.getExec(exec).GetContext(ctx, &row, query,
		pmt.Amount, pmt.Status, pmt.Method, pmt.ReceiptNumber, pmt.OrderRef,
		pmt.PaymentRef, pmt.PaidAt, pmt.Notes, pmt.UpdatedAt.UTC(), pmt.ID)
	if err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "updating payment")
	}
	return repo.unpack(row), nil
}

func (repo paymentRepository) DeletePayment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM payments WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return nil
}

func (repo paymentRepository) DeletePaymentsForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM payments WHERE batch_id = $1", batchID); err != nil {
		return errors.Wrap(err, "deleting batch payments")
	}
	return nil
}
