package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) query() []attendance.Attendance {
	records := make([]attendance.Attendance, 0, len(repo.db.attendance.table))
	for _, a := range repo.db.attendance.table {
		records = append(records, *a)
	}
	return records
}

// find returns the record sharing a's (batch, student, date) key, if any.
func (repo *attendanceRepository) find(a attendance.Attendance) *attendance.Attendance {
	for _, rec := range repo.db.attendance.table {
		if rec.BatchID == a.BatchID && rec.StudentID == a.StudentID && rec.Date.Equal(a.Date) {
			return rec
		}
	}
	return nil
}

func (repo *attendanceRepository) CreateAttendance(_ context.Context, a attendance.Attendance, _ ...core.DBExecutor) (attendance.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	if repo.find(a) != nil {
		return attendance.Attendance{}, attendance.ErrAttendanceExists
	}
	a.ID = uuid.New().String()
	repo.db.attendance.table[a.ID] = &a
	return a, nil
}

func (repo *attendanceRepository) UpsertAttendance(_ context.Context, a attendance.Attendance, _ ...core.DBExecutor) (attendance.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	if rec := repo.find(a); rec != nil {
		rec.Status = a.Status
		rec.Remark = a.Remark
		rec.MarkedBy = a.MarkedBy
		rec.UpdatedAt = a.UpdatedAt
		return *rec, nil
	}
	a.ID = uuid.New().String()
	repo.db.attendance.table[a.ID] = &a
	return a, nil
}

func (repo *attendanceRepository) QueryAttendance(_ context.Context, filter *attendance.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]attendance.Attendance, error) {
	repo.db.attendance.RLock()
	records := repo.query()
	repo.db.attendance.RUnlock()

	if filter == nil {
		return records, nil
	}

	filtered := make([]attendance.Attendance, 0, len(records))
	for _, a := range records {
		if filter.BatchID != "" && a.BatchID != filter.BatchID {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && !repo.db.batchOwnedBy(a.BatchID, filter.TeacherID) {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if !filter.DateFrom.IsZero() && a.Date.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && a.Date.After(filter.DateTo) {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered, nil
}

func (repo *attendanceRepository) GetAttendance(_ context.Context, filter attendance.GetFilter, _ ...core.DBExecutor) (attendance.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	if a, ok := repo.db.attendance.table[filter.ID]; ok {
		return *a, nil
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) UpdateAttendance(_ context.Context, a attendance.Attendance, _ ...core.DBExecutor) (attendance.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	rec, ok := repo.db.attendance.table[a.ID]
	if !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	// the (batch, student, date) key and the marker are immutable
	rec.Status = a.Status
	rec.Remark = a.Remark
	rec.UpdatedAt = a.UpdatedAt
	return *rec, nil
}

func (repo *attendanceRepository) DeleteAttendance(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	delete(repo.db.attendance.table, id)
	return nil
}

func (repo *attendanceRepository) DeleteAttendanceForBatch(_ context.Context, batchID string, _ ...core.DBExecutor) error {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	for id, a := range repo.db.attendance.table {
		if a.BatchID == batchID {
			delete(repo.db.attendance.table, id)
		}
	}
	return nil
}
