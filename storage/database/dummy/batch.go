package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
)

type batchRepository struct {
	db *DB
}

var _ batch.Repository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *DB) *batchRepository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) query() []batch.Batch {
	batches := make([]batch.Batch, 0, len(repo.db.batch.table))
	for _, b := range repo.db.batch.table {
		batches = append(batches, *b)
	}
	return batches
}

func (repo *batchRepository) CreateBatch(_ context.Context, b batch.Batch, _ ...core.DBExecutor) (batch.Batch, error) {
	repo.db.batch.Lock()
	defer repo.db.batch.Unlock()

	b.ID = uuid.New().String()
	b.Students = []string{}
	repo.db.batch.table[b.ID] = &b
	return b, nil
}

func (repo *batchRepository) QueryBatches(_ context.Context, filter *batch.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]batch.Batch, error) {
	repo.db.batch.RLock()
	batches := repo.query()
	repo.db.batch.RUnlock()

	if filter == nil {
		return batches, nil
	}

	filtered := make([]batch.Batch, 0, len(batches))
	for _, b := range batches {
		if filter.Search != "" {
			kw := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(b.Name), kw) &&
				!strings.Contains(strings.ToLower(b.Description), kw) {
				continue
			}
		}
		if filter.TeacherID != "" && b.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && !b.IsEnrolled(filter.StudentID) {
			continue
		}
		if filter.IsActive != nil && (b.IsActive == nil || *b.IsActive != *filter.IsActive) {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered, nil
}

func (repo *batchRepository) GetBatch(_ context.Context, filter batch.GetFilter, _ ...core.DBExecutor) (batch.Batch, error) {
	repo.db.batch.RLock()
	defer repo.db.batch.RUnlock()

	if b, ok := repo.db.batch.table[filter.ID]; ok {
		return *b, nil
	}
	return batch.Batch{}, batch.ErrNotFound
}

func (repo *batchRepository) UpdateBatch(_ context.Context, b batch.Batch, _ ...core.DBExecutor) (batch.Batch, error) {
	repo.db.batch.Lock()
	defer repo.db.batch.Unlock()

	orig, ok := repo.db.batch.table[b.ID]
	if !ok {
		return batch.Batch{}, batch.ErrNotFound
	}

	// the roster and creation time survive updates
	b.Students = orig.Students
	b.CreatedAt = orig.CreatedAt
	repo.db.batch.table[b.ID] = &b
	return b, nil
}

func (repo *batchRepository) DeleteBatch(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.batch.Lock()
	defer repo.db.batch.Unlock()

	delete(repo.db.batch.table, id)
	return nil
}

func (repo *batchRepository) AddStudent(_ context.Context, batchID, studentID string, maxStudents int, _ ...core.DBExecutor) error {
	repo.db.batch.Lock()
	defer repo.db.batch.Unlock()

	b, ok := repo.db.batch.table[batchID]
	if !ok {
		return batch.ErrNotFound
	}
	if b.IsEnrolled(studentID) {
		return batch.ErrAlreadyEnrolled
	}
	if len(b.Students) >= maxStudents {
		return batch.ErrBatchFull
	}
	b.Students = append(b.Students, studentID)
	return nil
}

func (repo *batchRepository) RemoveStudent(_ context.Context, batchID, studentID string, _ ...core.DBExecutor) error {
	repo.db.batch.Lock()
	defer repo.db.batch.Unlock()

	b, ok := repo.db.batch.table[batchID]
	if !ok {
		return batch.ErrNotFound
	}
	for i, id := range b.Students {
		if id == studentID {
			b.Students = append(b.Students[:i], b.Students[i+1:]...)
			return nil
		}
	}
	return batch.ErrNotEnrolled
}
