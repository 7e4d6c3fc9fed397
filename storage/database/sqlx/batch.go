package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
)

const batchColumns = "id, name, description, teacher_id, max_students, schedule_days, " +
	"schedule_start_time, schedule_end_time, fee, start_date, end_date, is_active, created_at, updated_at"

type dbBatch struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Description       string         `db:"description"`
	TeacherID         string         `db:"teacher_id"`
	MaxStudents       int            `db:"max_students"`
	ScheduleDays      pq.StringArray `db:"schedule_days"`
	ScheduleStartTime string         `db:"schedule_start_time"`
	ScheduleEndTime   string         `db:"schedule_end_time"`
	Fee               float64        `db:"fee"`
	StartDate         time.Time      `db:"start_date"`
	EndDate           time.Time      `db:"end_date"`
	IsActive          null.Bool      `db:"is_active"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type batchRepository struct {
	exec core.DBExecutor
}

var _ batch.Repository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(exec core.DBExecutor) *batchRepository {
	return &batchRepository{exec: exec}
}

func (repo batchRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo batchRepository) pack(b batch.Batch) dbBatch {
	return dbBatch{
		ID:                b.ID,
		Name:              b.Name,
		Description:       b.Description,
		TeacherID:         b.TeacherID,
		MaxStudents:       b.MaxStudents,
		ScheduleDays:      b.Schedule.Days,
		ScheduleStartTime: b.Schedule.StartTime,
		ScheduleEndTime:   b.Schedule.EndTime,
		Fee:               b.Fee,
		StartDate:         b.StartDate,
		EndDate:           b.EndDate,
		IsActive:          null.BoolFromPtr(b.IsActive),
		CreatedAt:         b.CreatedAt.UTC(),
		UpdatedAt:         b.UpdatedAt.UTC(),
	}
}

func (repo batchRepository) unpack(b dbBatch, students []string) batch.Batch {
	return batch.Batch{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		TeacherID:   b.TeacherID,
		Students:    students,
		MaxStudents: b.MaxStudents,
		Schedule: batch.Schedule{
			Days:      b.ScheduleDays,
			StartTime: b.ScheduleStartTime,
			EndTime:   b.ScheduleEndTime,
		},
		Fee:       b.Fee,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		IsActive:  b.IsActive.Ptr(),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to batch.ErrNotFound
func (repo batchRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return batch.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// rosters loads the enrolled student IDs of the given batches, keyed by batch ID.
func (repo batchRepository) rosters(ctx context.Context, exe core.DBExecutor, batchIDs []string) (map[string][]string, error) {
	rosters := make(map[string][]string, len(batchIDs))
	if len(batchIDs) == 0 {
		return rosters, nil
	}

	var rows []struct {
		BatchID   string `db:"batch_id"`
		StudentID string `db:"student_id"`
	}
	query := `
	SELECT batch_id, student_id FROM batch_students
	WHERE batch_id = ANY($1::uuid[]) ORDER BY created_at`
	if err := exe.SelectContext(ctx, &rows, query, pq.Array(batchIDs)); err != nil {
		return nil, errors.Wrap(err, "loading batch rosters")
	}
	for _, row := range rows {
		rosters[row.BatchID] = append(rosters[row.BatchID], row.StudentID)
	}
	return rosters, nil
}

func (repo batchRepository) CreateBatch(ctx context.Context, b batch.Batch, exec ...core.DBExecutor) (batch.Batch, error) {
	b.ID = uuid.New().String()
	query := `
	INSERT INTO batches (id, name, description, teacher_id, max_students, schedule_days,
	                     schedule_start_time, schedule_end_time, fee, start_date, end_date,
	                     is_active, created_at, updated_at)
	VALUES (:id, :name, :description, :teacher_id, :max_students, :schedule_days,
	        :schedule_start_time, :schedule_end_time, :fee, :start_date, :end_date,
	        :is_active, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, repo.pack(b)); err != nil {
		return batch.Batch{}, errors.Wrap(err, "inserting batch")
	}
	b.Students = []string{}
	return b, nil
}

func (repo batchRepository) QueryBatches(ctx context.Context, filter *batch.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]batch.Batch, error) {
	var conds []string
	var args argList

	if filter != nil {
		if filter.Search != "" {
			val := args.add("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", val, val))
		}
		if filter.TeacherID != "" {
			conds = append(conds, "teacher_id = "+args.add(filter.TeacherID))
		}
		if filter.StudentID != "" {
			conds = append(conds, fmt.Sprintf(
				"id IN (SELECT batch_id FROM batch_students WHERE student_id = %s)", args.add(filter.StudentID)))
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = "+args.add(*filter.IsActive))
		}
	}

	query := "SELECT " + batchColumns + " FROM batches"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering)

	exe := repo.getExec(exec)
	var rows []dbBatch
	if err := exe.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	rosters, err := repo.rosters(ctx, exe, ids)
	if err != nil {
		return nil, err
	}

	batches := make([]batch.Batch, 0, len(rows))
	for _, row := range rows {
		students := rosters[row.ID]
		if students == nil {
			students = []string{}
		}
		batches = append(batches, repo.unpack(row, students))
	}
	return batches, nil
}

func (repo batchRepository) GetBatch(ctx context.Context, filter batch.GetFilter, exec ...core.DBExecutor) (batch.Batch, error) {
	if _, err := uuid.Parse(filter.ID); err != nil {
		return batch.Batch{}, batch.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row dbBatch
	query := "SELECT " + batchColumns + " FROM batches WHERE id = $1"
	if err := exe.GetContext(ctx, &row, query, filter.ID); err != nil {
		return batch.Batch{}, repo.trapNoRowsErr(err, "finding batch")
	}

	rosters, err := repo.rosters(ctx, exe, []string{row.ID})
	if err != nil {
		return batch.Batch{}, err
	}
	students := rosters[row.ID]
	if students == nil {
		students = []string{}
	}
	return repo.unpack(row, students), nil
}

func (repo batchRepository) UpdateBatch(ctx context.Context, b batch.Batch, exec ...core.DBExecutor) (batch.Batch, error) {
	query := `
	UPDATE batches
	SET name = :name, description = :description, teacher_id = :teacher_id,
	    max_students = :max_students, schedule_days = :schedule_days,
	    schedule_start_time = :schedule_start_time, schedule_end_time = :schedule_end_time,
	    fee = :fee, start_date = :start_date, end_date = :end_date,
	    is_active = :is_active, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.getExec(exec).NamedExecContext(ctx, query, repo.pack(b))
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "updating batch")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return batch.Batch{}, batch.ErrNotFound
	}
	return repo.GetBatch(ctx, batch.GetFilter{ID: b.ID}, exec...)
}

func (repo batchRepository) DeleteBatch(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM batches WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return nil
}

func (repo batchRepository) AddStudent(ctx context.Context, batchID, studentID string, maxStudents int, exec ...core.DBExecutor) error {
	// the INSERT only applies while the roster is below maxStudents;
	// the loser of a concurrent enrollment race inserts zero rows
	query := `
	INSERT INTO batch_students (batch_id, student_id, created_at)
	SELECT $1, $2, $3
	WHERE (SELECT COUNT(*) FROM batch_students WHERE batch_id = $1) < $4`
	res, err := repo.getExec(exec).ExecContext(ctx, query, batchID, studentID, time.Now().UTC(), maxStudents)
	if err != nil {
		if isUniqueViolation(err, "batch_students_pkey") {
			return batch.ErrAlreadyEnrolled
		}
		return errors.Wrap(err, "enrolling student")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	if cnt == 0 {
		return batch.ErrBatchFull
	}
	return nil
}

func (repo batchRepository) RemoveStudent(ctx context.Context, batchID, studentID string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"DELETE FROM batch_students WHERE batch_id = $1 AND student_id = $2", batchID, studentID)
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	if cnt == 0 {
		return batch.ErrNotEnrolled
	}
	return nil
}
