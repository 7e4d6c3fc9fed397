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
	"github.com/trezcool/darasa/core/attendance"
)

const attendanceColumns = "id, batch_id, student_id, date, status, remark, marked_by, created_at, updated_at"

type dbAttendance struct {
	ID        string      `db:"id"`
	BatchID   string      `db:"batch_id"`
	StudentID string      `db:"student_id"`
	Date      time.Time   `db:"date"`
	Status    string      `db:"status"`
	Remark    null.String `db:"remark"`
	MarkedBy  null.String `db:"marked_by"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type attendanceRepository struct {
	exec core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo attendanceRepository) pack(a attendance.Attendance) dbAttendance {
	return dbAttendance{
		ID:        a.ID,
		BatchID:   a.BatchID,
		StudentID: a.StudentID,
		Date:      a.Date,
		Status:    a.Status,
		Remark:    a.Remark,
		MarkedBy:  a.MarkedBy,
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

func (repo attendanceRepository) unpack(a dbAttendance) attendance.Attendance {
	return attendance.Attendance{
		ID:        a.ID,
		BatchID:   a.BatchID,
		StudentID: a.StudentID,
		Date:      a.Date,
		Status:    a.Status,
		Remark:    a.Remark,
		MarkedBy:  a.MarkedBy,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to attendance.ErrNotFound
func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo attendanceRepository) CreateAttendance(ctx context.Context, a attendance.Attendance, exec ...core.DBExecutor) (attendance.Attendance, error) {
	a.ID = uuid.New().String()
	query := `
	INSERT INTO attendance (id, batch_id, student_id, date, status, remark, marked_by, created_at, updated_at)
	VALUES (:id, :batch_id, :student_id, :date, :status, :remark, :marked_by, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, repo.pack(a)); err != nil {
		if isUniqueViolation(err, "attendance_batch_student_date_key") {
			return attendance.Attendance{}, attendance.ErrAttendanceExists
		}
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance record")
	}
	return a, nil
}

func (repo attendanceRepository) UpsertAttendance(ctx context.Context, a attendance.Attendance, exec ...core.DBExecutor) (attendance.Attendance, error) {
	query := `
	INSERT INTO attendance (id, batch_id, student_id, date, status, remark, marked_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	ON CONFLICT (batch_id, student_id, date)
	DO UPDATE SET status = EXCLUDED.status, remark = EXCLUDED.remark,
	              marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
	RETURNING ` + attendanceColumns
	now := time.Now().UTC()

	var row dbAttendance
	err := repo.getExec(exec).GetContext(ctx, &row, query,
		uuid.New().String(), a.BatchID, a.StudentID, a.Date, a.Status, a.Remark, a.MarkedBy, now)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "upserting attendance record")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) QueryAttendance(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Attendance, error) {
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
		if filter.Status != "" {
			conds = append(conds, "status = "+args.add(filter.Status))
		}
		if !filter.DateFrom.IsZero() {
			conds = append(conds, "date >= "+args.add(filter.DateFrom))
		}
		if !filter.DateTo.IsZero() {
			conds = append(conds, "date <= "+args.add(filter.DateTo))
		}
	}

	query := "SELECT " + attendanceColumns + " FROM attendance"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering)

	var rows []dbAttendance
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.unpack(row))
	}
	return records, nil
}

func (repo attendanceRepository) GetAttendance(ctx context.Context, filter attendance.GetFilter, exec ...core.DBExecutor) (attendance.Attendance, error) {
	if _, err := uuid.Parse(filter.ID); err != nil {
		return attendance.Attendance{}, attendance.ErrNotFound
	}

	var row dbAttendance
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, filter.ID); err != nil {
		return attendance.Attendance{}, repo.trapNoRowsErr(err, "finding attendance record")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) UpdateAttendance(ctx context.Context, a attendance.Attendance, exec ...core.DBExecutor) (attendance.Attendance, error) {
	query := `
	UPDATE attendance SET status = $1, remark = $2, updated_at = $3
	WHERE id = $4
	RETURNING ` + attendanceColumns

	var row dbAttendance
	err := repo.getExec(exec).GetContext(ctx, &row, query, a.Status, a.Remark, a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return attendance.Attendance{}, repo.trapNoRowsErr(err, "updating attendance record")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) DeleteAttendance(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM attendance WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return nil
}

func (repo attendanceRepository) DeleteAttendanceForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM attendance WHERE batch_id = $1", batchID); err != nil {
		return errors.Wrap(err, "deleting batch attendance")
	}
	return nil
}
