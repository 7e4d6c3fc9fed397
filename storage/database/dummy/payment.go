package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) query() []payment.Payment {
	pmts := make([]payment.Payment, 0, len(repo.db.payment.table))
	for _, pmt := range repo.db.payment.table {
		pmts = append(pmts, *pmt)
	}
	return pmts
}

func (repo *paymentRepository) CreatePayment(_ context.Context, pmt payment.Payment, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()

	for _, existing := range repo.db.payment.table {
		if existing.BatchID == pmt.BatchID && existing.StudentID == pmt.StudentID && existing.Month == pmt.Month {
			return payment.Payment{}, payment.ErrPaymentExists
		}
	}
	pmt.ID = uuid.New().String()
	repo.db.payment.table[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *paymentRepository) QueryPayments(_ context.Context, filter *payment.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]payment.Payment, error) {
	repo.db.payment.RLock()
	pmts := repo.query()
	repo.db.payment.RUnlock()

	if filter == nil {
		return pmts, nil
	}

	filtered := make([]payment.Payment, 0, len(pmts))
	for _, pmt := range pmts {
		if filter.BatchID != "" && pmt.BatchID != filter.BatchID {
			continue
		}
		if filter.StudentID != "" && pmt.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && !repo.db.batchOwnedBy(pmt.BatchID, filter.TeacherID) {
			continue
		}
		if filter.Month != "" && pmt.Month != filter.Month {
			continue
		}
		if filter.Status != "" && pmt.Status != filter.Status {
			continue
		}
		filtered = append(filtered, pmt)
	}
	return filtered, nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, filter payment.GetFilter, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.payment.RLock()
	defer repo.db.payment.RUnlock()

	if pmt, ok := repo.db.payment.table[filter.ID]; ok {
		return *pmt, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) UpdatePayment(_ context.Context, pmt payment.Payment, _ ...core.DBExecutor) (payment.Payment, error) {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()

	orig, ok := repo.db.payment.table[pmt.ID]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	// the (batch, student, month) key is immutable
	pmt.BatchID = orig.BatchID
	pmt.StudentID = orig.StudentID
	pmt.Month = orig.Month
	pmt.CreatedBy = orig.CreatedBy
	pmt.CreatedAt = orig.CreatedAt
	repo.db.payment.table[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *paymentRepository) DeletePayment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()

	delete(repo.db.payment.table, id)
	return nil
}

func (repo *paymentRepository) DeletePaymentsForBatch(_ context.Context, batchID string, _ ...core.DBExecutor) error {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()

	for id, pmt := range repo.db.payment.table {
		if pmt.BatchID == batchID {
			delete(repo.db.payment.table, id)
		}
	}
	return nil
}
