package batch

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("batch not found")
	ErrNotEnrolled     = errors.New("student is not enrolled in this batch")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this batch")
	ErrBatchFull       = errors.New("batch is full")
	ErrNotATeacher     = errors.New("user is not a teacher")
	ErrNotAStudent     = errors.New("user is not a student")
)

type (
	Repository interface {
		CreateBatch(ctx context.Context, b Batch, exec ...core.DBExecutor) (Batch, error)
		// QueryBatches applies AND operation on available QueryFilter fields.
		// QueryFilter.StudentID matches batches the student is enrolled in.
		QueryBatches(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Batch, error)
		GetBatch(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Batch, error)
		UpdateBatch(ctx context.Context, b Batch, exec ...core.DBExecutor) (Batch, error)
		DeleteBatch(ctx context.Context, id string, exec ...core.DBExecutor) error
		// AddStudent enrolls a student, enforcing the capacity ceiling and the
		// roster uniqueness at the storage layer. Returns ErrBatchFull or
		// ErrAlreadyEnrolled when the loser of a concurrent race.
		AddStudent(ctx context.Context, batchID, studentID string, maxStudents int, exec ...core.DBExecutor) error
		RemoveStudent(ctx context.Context, batchID, studentID string, exec ...core.DBExecutor) error
	}

	// Dependent is a service owning records scoped to a Batch; its records are
	// removed when the batch is deleted.
	Dependent interface {
		DeleteForBatch(batchID string) error
	}

	Service interface {
		AddDependents(deps ...Dependent)
		Create(nb NewBatch) (Batch, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Batch, error)
		GetByID(id string) (Batch, error)
		Update(origBatch Batch, ub UpdateBatch) (Batch, error)
		Delete(id string) error
		AddStudent(b Batch, studentID string) (Batch, error)
		RemoveStudent(b Batch, studentID string) (Batch, error)
	}

	service struct {
		repo       Repository
		usrSvc     user.Service
		dependents []Dependent
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{
		repo:   repo,
		usrSvc: usrSvc,
	}
}

// AddDependents registers services whose batch-scoped records are deleted
// along with a batch. Deletion runs in registration order.
func (svc *service) AddDependents(deps ...Dependent) {
	svc.dependents = append(svc.dependents, deps...)
}

func (svc *service) Create(nb NewBatch) (Batch, error) {
	if err := svc.checkTeacher(nb.TeacherID); err != nil {
		return Batch{}, err
	}

	now := time.Now().UTC()
	isActive := true
	b := Batch{
		Name:        nb.Name,
		Description: nb.Description,
		TeacherID:   nb.TeacherID,
		MaxStudents: nb.MaxStudents,
		Schedule:    nb.Schedule,
		Fee:         nb.Fee,
		StartDate:   nb.startDate,
		EndDate:     nb.endDate,
		IsActive:    &isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateBatch(context.Background(), b)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Batch, error) {
	return svc.repo.QueryBatches(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Batch, error) {
	return svc.repo.GetBatch(context.Background(), GetFilter{ID: id})
}

func (svc *service) Update(origBatch Batch, ub UpdateBatch) (Batch, error) {
	if ub.TeacherID != origBatch.TeacherID {
		if err := svc.checkTeacher(ub.TeacherID); err != nil {
			return Batch{}, err
		}
	}

	b := Batch{
		ID:          origBatch.ID,
		Name:        ub.Name,
		Description: *ub.Description,
		TeacherID:   ub.TeacherID,
		MaxStudents: ub.MaxStudents,
		Schedule:    *ub.Schedule,
		Fee:         *ub.Fee,
		StartDate:   ub.startDate,
		EndDate:     ub.endDate,
		IsActive:    ub.IsActive,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateBatch(context.Background(), b)
}

// Delete removes a batch along with all of its dependent records.
// Dependents are deleted first, sequentially; a failure mid-way leaves the
// batch in place with the already-deleted children gone.
func (svc *service) Delete(id string) error {
	b, err := svc.GetByID(id)
	if err != nil {
		return err
	}
	for _, dep := range svc.dependents {
		if err = dep.DeleteForBatch(b.ID); err != nil {
			return err
		}
	}
	return svc.repo.DeleteBatch(context.Background(), b.ID)
}

func (svc *service) AddStudent(b Batch, studentID string) (Batch, error) {
	if err := svc.checkStudent(studentID); err != nil {
		return Batch{}, err
	}
	if b.IsEnrolled(studentID) {
		return Batch{}, core.NewValidationError(ErrAlreadyEnrolled)
	}

	if err := svc.repo.AddStudent(context.Background(), b.ID, studentID, b.MaxStudents); err != nil {
		if err == ErrBatchFull || err == ErrAlreadyEnrolled {
			return Batch{}, core.NewValidationError(err)
		}
		return Batch{}, err
	}
	return svc.GetByID(b.ID)
}

func (svc *service) RemoveStudent(b Batch, studentID string) (Batch, error) {
	if !b.IsEnrolled(studentID) {
		return Batch{}, core.NewValidationError(ErrNotEnrolled)
	}
	if err := svc.repo.RemoveStudent(context.Background(), b.ID, studentID); err != nil {
		return Batch{}, err
	}
	return svc.GetByID(b.ID)
}

func (svc *service) checkTeacher(id string) error {
	usr, err := svc.usrSvc.GetByID(id)
	if err != nil {
		if err == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return err
	}
	if !usr.IsTeacher() {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: ErrNotATeacher.Error()})
	}
	return nil
}

func (svc *service) checkStudent(id string) error {
	usr, err := svc.usrSvc.GetByID(id)
	if err != nil {
		if err == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return err
	}
	if !usr.IsStudent() {
		return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}
	return nil
}
