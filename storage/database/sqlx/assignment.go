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
	"github.com/trezcool/darasa/core/assignment"
)

const (
	assignmentColumns = "id, batch_id, title, description, due_date, total_marks, " +
		"allow_late_submission, attachments, created_by, created_at, updated_at"
	submissionColumns = "id, assignment_id, student_id, status, files, submitted_at, " +
		"marks_obtained, feedback, graded_by, graded_at, created_at, updated_at"
)

type (
	dbAssignment struct {
		ID                  string        `db:"id"`
		BatchID             string        `db:"batch_id"`
		Title               string        `db:"title"`
		Description         string        `db:"description"`
		DueDate             time.Time     `db:"due_date"`
		TotalMarks          int           `db:"total_marks"`
		AllowLateSubmission bool          `db:"allow_late_submission"`
		Attachments         core.FileList `db:"attachments"`
		CreatedBy           null.String   `db:"created_by"`
		CreatedAt           time.Time     `db:"created_at"`
		UpdatedAt           time.Time     `db:"updated_at"`
	}

	dbSubmission struct {
		ID            string        `db:"id"`
		AssignmentID  string        `db:"assignment_id"`
		StudentID     string        `db:"student_id"`
		Status        string        `db:"status"`
		Files         core.FileList `db:"files"`
		SubmittedAt   time.Time     `db:"submitted_at"`
		MarksObtained null.Int      `db:"marks_obtained"`
		Feedback      null.String   `db:"feedback"`
		GradedBy      null.String   `db:"graded_by"`
		GradedAt      null.Time     `db:"graded_at"`
		CreatedAt     time.Time     `db:"created_at"`
		UpdatedAt     time.Time     `db:"updated_at"`
	}
)

type assignmentRepository struct {
	exec core.DBExecutor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo assignmentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo assignmentRepository) pack(asg assignment.Assignment) dbAssignment {
	return dbAssignment{
		ID:                  asg.ID,
		BatchID:             asg.BatchID,
		Title:               asg.Title,
		Description:         asg.Description,
		DueDate:             asg.DueDate,
		TotalMarks:          asg.TotalMarks,
		AllowLateSubmission: asg.AllowLateSubmission,
		Attachments:         asg.Attachments,
		CreatedBy:           asg.CreatedBy,
		CreatedAt:           asg.CreatedAt.UTC(),
		UpdatedAt:           asg.UpdatedAt.UTC(),
	}
}

func (repo assignmentRepository) unpack(a dbAssignment) assignment.Assignment {
	return assignment.Assignment{
		ID:                  a.ID,
		BatchID:             a.BatchID,
		Title:               a.Title,
		Description:         a.Description,
		DueDate:             a.DueDate,
		TotalMarks:          a.TotalMarks,
		AllowLateSubmission: a.AllowLateSubmission,
		Attachments:         a.Attachments,
		CreatedBy:           a.CreatedBy,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func (repo assignmentRepository) packSub(sub assignment.Submission) dbSubmission {
	return dbSubmission{
		ID:            sub.ID,
		AssignmentID:  sub.AssignmentID,
		StudentID:     sub.StudentID,
		Status:        sub.Status,
		Files:         sub.Files,
		SubmittedAt:   sub.SubmittedAt.UTC(),
		MarksObtained: sub.MarksObtained,
		Feedback:      sub.Feedback,
		GradedBy:      sub.GradedBy,
		GradedAt:      sub.GradedAt,
		CreatedAt:     sub.CreatedAt.UTC(),
		UpdatedAt:     sub.UpdatedAt.UTC(),
	}
}

func (repo assignmentRepository) unpackSub(s dbSubmission) assignment.Submission {
	return assignment.Submission{
		ID:            s.ID,
		AssignmentID:  s.AssignmentID,
		StudentID:     s.StudentID,
		Status:        s.Status,
		Files:         s.Files,
		SubmittedAt:   s.SubmittedAt,
		MarksObtained: s.MarksObtained,
		Feedback:      s.Feedback,
		GradedBy:      s.GradedBy,
		GradedAt:      s.GradedAt,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to assignment.ErrNotFound
func (repo assignmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return assignment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	asg.ID = uuid.New().String()
	query := `
	INSERT INTO assignments (id, batch_id, title, description, due_date, total_marks,
	                         allow_late_submission, attachments, created_by, created_at, updated_at)
	VALUES (:id, :batch_id, :title, :description, :due_date, :total_marks,
	        :allow_late_submission, :attachments, :created_by, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, repo.pack(asg)); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	var conds []string
	var args argList

	if filter != nil {
		if filter.BatchID != "" {
			conds = append(conds, "batch_id = "+args.add(filter.BatchID))
		}
		if filter.StudentID != "" {
			conds = append(conds, "batch_id IN (SELECT batch_id FROM batch_students WHERE student_id = "+args.add(filter.StudentID)+")")
		}
		if filter.TeacherID != "" {
			conds = append(conds, "batch_id IN (SELECT id FROM batches WHERE teacher_id = "+args.add(filter.TeacherID)+")")
		}
	}

	query := "SELECT " + assignmentColumns + " FROM assignments"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering)

	var rows []dbAssignment
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, repo.unpack(row))
	}
	return asgs, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, filter assignment.GetFilter, exec ...core.DBExecutor) (assignment.Assignment, error) {
	if _, err := uuid.Parse(filter.ID); err != nil {
		return assignment.Assignment{}, assignment.ErrNotFound
	}

	var row dbAssignment
	query := "SELECT " + assignmentColumns + " FROM assignments WHERE id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, filter.ID); err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, "finding assignment")
	}
	return repo.unpack(row), nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	query := `
	UPDATE assignments
	SET title = $1, description = $2, due_date = $3, total_marks = $4,
	    allow_late_submission = $5, updated_at = $6
	WHERE id = $7
	RETURNING ` + assignmentColumns

	var row dbAssignment
	err := repo.getExec(exec).GetContext(ctx, &row, query,
		asg.Title, asg.Description, asg.DueDate, asg.TotalMarks,
		asg.AllowLateSubmission, asg.UpdatedAt.UTC(), asg.ID)
	if err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, "updating assignment")
	}
	return repo.unpack(row), nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

func (repo assignmentRepository) DeleteAssignmentsForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM assignments WHERE batch_id = $1", batchID); err != nil {
		return errors.Wrap(err, "deleting batch assignments")
	}
	return nil
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	sub.ID = uuid.New().String()
	query := `
	INSERT INTO submissions (id, assignment_id, student_id, status, files, submitted_at,
	                         marks_obtained, feedback, graded_by, graded_at, created_at, updated_at)
	VALUES (:id, :assignment_id, :student_id, :status, :files, :submitted_at,
	        :marks_obtained, :feedback, :graded_by, :graded_at, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, repo.packSub(sub)); err != nil {
		if isUniqueViolation(err, "submissions_assignment_student_key") {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo assignmentRepository) QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	var rows []dbSubmission
	query := "SELECT " + submissionColumns + " FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at"
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, repo.unpackSub(row))
	}
	return subs, nil
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, filter assignment.SubmissionGetFilter, exec ...core.DBExecutor) (assignment.Submission, error) {
	var args argList
	var cond string

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		cond = "id = " + args.add(filter.ID)
	} else {
		if _, err := uuid.Parse(filter.StudentID); err != nil {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		cond = "assignment_id = " + args.add(filter.AssignmentID) + " AND student_id = " + args.add(filter.StudentID)
	}

	var row dbSubmission
	query := "SELECT " + submissionColumns + " FROM submissions WHERE " + cond
	if err := repo.getExec(exec).GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "finding submission")
	}
	return repo.unpackSub(row), nil
}

func (repo assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	query := `
	UPDATE submissions
	SET status = $1, files = $2, submitted_at = $3, marks_obtained = $4,
	    feedback = $5, graded_by = $6, graded_at = $7, updated_at = $8
	WHERE id = $9
	RETURNING ` + submissionColumns

	var row dbSubmission
	err := repo.getExec(exec).GetContext(ctx, &row, query,
		sub.Status, sub.Files, sub.SubmittedAt.UTC(), sub.MarksObtained,
		sub.Feedback, sub.GradedBy, sub.GradedAt, sub.UpdatedAt.UTC(), sub.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	return repo.unpackSub(row), nil
}
