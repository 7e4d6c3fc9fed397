package attendance

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("attendance record not found")
	ErrAttendanceExists = errors.New("attendance is already marked for this student on this date")
)

type (
	Repository interface {
		CreateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		// UpsertAttendance creates the record or, if one exists for the same
		// (batch, student, date), overwrites its status, remark and marker.
		UpsertAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		QueryAttendance(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Attendance, error)
		GetAttendance(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Attendance, error)
		UpdateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		DeleteAttendance(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteAttendanceForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(na NewAttendance, markedBy user.User) (Attendance, error)
		BulkMark(bm BulkMark, markedBy user.User) (BulkMarkResult, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Attendance, error)
		GetByID(id string) (Attendance, error)
		Update(origRecord Attendance, ua UpdateAttendance) (Attendance, error)
		Delete(id string) error
		Summary(studentID, batchID string) (Summary, error)
		DeleteForBatch(batchID string) error
	}

	service struct {
		repo     Repository
		batchSvc batch.Service
	}
)

var (
	_ Service         = (*service)(nil) // interface compliance check
	_ batch.Dependent = (*service)(nil)
)

func NewService(repo Repository, batchSvc batch.Service) Service {
	return &service{
		repo:     repo,
		batchSvc: batchSvc,
	}
}

func (svc *service) Create(na NewAttendance, markedBy user.User) (Attendance, error) {
	b, err := svc.batchSvc.GetByID(na.BatchID)
	if err != nil {
		if err == batch.ErrNotFound {
			return Attendance{}, core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: err.Error()})
		}
		return Attendance{}, err
	}
	if !b.IsEnrolled(na.StudentID) {
		return Attendance{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: batch.ErrNotEnrolled.Error()})
	}

	now := time.Now().UTC()
	a := Attendance{
		BatchID:   na.BatchID,
		StudentID: na.StudentID,
		Date:      na.date,
		Status:    na.Status,
		Remark:    null.NewString(na.Remark, na.Remark != ""),
		MarkedBy:  null.StringFrom(markedBy.ID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := svc.repo.CreateAttendance(context.Background(), a)
	if err == ErrAttendanceExists {
		return Attendance{}, core.NewValidationError(err)
	}
	return created, err
}

// BulkMark upserts each entry independently; entries that fail (not enrolled,
// storage error) are reported in the result without aborting the others.
func (svc *service) BulkMark(bm BulkMark, markedBy user.User) (BulkMarkResult, error) {
	res := BulkMarkResult{
		Results: []Attendance{},
		Errors:  []BulkMarkError{},
	}

	b, err := svc.batchSvc.GetByID(bm.BatchID)
	if err != nil {
		return res, err
	}

	now := time.Now().UTC()
	for _, entry := range bm.Entries {
		if !b.IsEnrolled(entry.StudentID) {
			res.Errors = append(res.Errors, BulkMarkError{StudentID: entry.StudentID, Error: batch.ErrNotEnrolled.Error()})
			continue
		}
		a := Attendance{
			BatchID:   bm.BatchID,
			StudentID: entry.StudentID,
			Date:      bm.date,
			Status:    entry.Status,
			Remark:    null.NewString(entry.Remark, entry.Remark != ""),
			MarkedBy:  null.StringFrom(markedBy.ID),
			CreatedAt: now,
			UpdatedAt: now,
		}
		saved, err := svc.repo.UpsertAttendance(context.Background(), a)
		if err != nil {
			res.Errors = append(res.Errors, BulkMarkError{StudentID: entry.StudentID, Error: err.Error()})
			continue
		}
		res.Results = append(res.Results, saved)
	}

	res.Success = len(res.Errors) == 0
	return res, nil
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Attendance, error) {
	return svc.repo.QueryAttendance(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Attendance, error) {
	return svc.repo.GetAttendance(context.Background(), GetFilter{ID: id})
}

func (svc *service) Update(origRecord Attendance, ua UpdateAttendance) (Attendance, error) {
	a := origRecord
	a.Status = ua.Status
	if ua.Remark != nil {
		a.Remark = null.NewString(*ua.Remark, *ua.Remark != "")
	}
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAttendance(context.Background(), a)
}

func (svc *service) Delete(id string) error {
	return svc.repo.DeleteAttendance(context.Background(), id)
}

func (svc *service) Summary(studentID, batchID string) (Summary, error) {
	records, err := svc.repo.QueryAttendance(context.Background(), &QueryFilter{BatchID: batchID, StudentID: studentID}, nil)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		StudentID: studentID,
		BatchID:   batchID,
		Total:     len(records),
		Counts:    make(map[string]int),
	}
	for _, r := range records {
		sum.Counts[r.Status]++
	}
	if sum.Total > 0 {
		sum.Percentage = int(math.Round(float64(sum.Counts[StatusPresent]) / float64(sum.Total) * 100))
	}
	return sum, nil
}

func (svc *service) DeleteForBatch(batchID string) error {
	return svc.repo.DeleteAttendanceForBatch(context.Background(), batchID)
}
