package assignment

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/user"
)

var (
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrSubmissionExists   = errors.New("a submission already exists for this student")
	ErrLateNotAllowed     = errors.New("the due date has passed and late submissions are not allowed")
	ErrCannotResubmit     = errors.New("this submission can no longer be replaced")

	// NowFunc returns the current time. It can be mocked in tests.
	NowFunc = time.Now

	errNoFiles      = "at least one file is required"
	errTooManyFiles = "too many files"
)

type (
	// Repository abstracts Assignment and Submission persistence.
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Assignment, error)
		GetAssignment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteAssignmentsForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error

		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Submission, error)
		GetSubmission(ctx context.Context, filter SubmissionGetFilter, exec ...core.DBExecutor) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
	}

	Service interface {
		Create(na NewAssignment, files []*multipart.FileHeader, createdBy user.User) (Assignment, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetByID(id string) (Assignment, error)
		Update(origAsg Assignment, ua UpdateAssignment) (Assignment, error)
		Delete(id string) error
		DeleteForBatch(batchID string) error

		Submit(asg Assignment, files []*multipart.FileHeader, student user.User) (Submission, error)
		Grade(asg Assignment, studentID string, gs GradeSubmission, gradedBy user.User) (Submission, error)
		Submissions(assignmentID string) ([]Submission, error)
		StudentSubmission(assignmentID, studentID string) (Submission, error)
	}

	service struct {
		repo     Repository
		batchSvc batch.Service
		files    core.FileStorage
		conf     core.Config
	}
)

var (
	_ Service         = (*service)(nil)
	_ batch.Dependent = (*service)(nil)
)

func NewService(repo Repository, batchSvc batch.Service, files core.FileStorage, conf core.Config) Service {
	return &service{
		repo:     repo,
		batchSvc: batchSvc,
		files:    files,
		conf:     conf,
	}
}

func (svc *service) Create(na NewAssignment, files []*multipart.FileHeader, createdBy user.User) (Assignment, error) {
	ctx := context.Background()

	if _, err := svc.getBatch(na.BatchID, "batch_id"); err != nil {
		return Assignment{}, err
	}

	attachments, err := svc.saveFiles(files, "assignments", false)
	if err != nil {
		return Assignment{}, err
	}

	now := NowFunc().UTC()
	asg := Assignment{
		BatchID:             na.BatchID,
		Title:               na.Title,
		Description:         na.Description,
		DueDate:             na.dueDate,
		TotalMarks:          na.TotalMarks,
		AllowLateSubmission: na.AllowLateSubmission,
		Attachments:         attachments,
		CreatedBy:           null.StringFrom(createdBy.ID),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	asg, err = svc.repo.CreateAssignment(ctx, asg)
	if err != nil {
		svc.removeFiles(attachments)
		return Assignment{}, err
	}
	return asg, nil
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	return svc.repo.QueryAssignments(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Assignment, error) {
	return svc.repo.GetAssignment(context.Background(), GetFilter{ID: id})
}

func (svc *service) Update(origAsg Assignment, ua UpdateAssignment) (Assignment, error) {
	asg := origAsg
	asg.Title = ua.Title
	asg.Description = *ua.Description
	asg.DueDate = ua.dueDate
	asg.TotalMarks = ua.TotalMarks
	asg.AllowLateSubmission = *ua.AllowLateSubmission
	asg.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAssignment(context.Background(), asg)
}

// Delete removes an assignment, its submissions and all their stored files.
func (svc *service) Delete(id string) error {
	ctx := context.Background()

	asg, err := svc.GetByID(id)
	if err != nil {
		return err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, asg.ID)
	if err != nil {
		return err
	}

	svc.removeFiles(asg.Attachments)
	for _, sub := range subs {
		svc.removeFiles(sub.Files)
	}
	return svc.repo.DeleteAssignment(ctx, asg.ID)
}

func (svc *service) DeleteForBatch(batchID string) error {
	ctx := context.Background()

	asgs, err := svc.repo.QueryAssignments(ctx, &QueryFilter{BatchID: batchID}, nil)
	if err != nil {
		return err
	}
	for _, asg := range asgs {
		subs, err := svc.repo.QuerySubmissions(ctx, asg.ID)
		if err != nil {
			return err
		}
		svc.removeFiles(asg.Attachments)
		for _, sub := range subs {
			svc.removeFiles(sub.Files)
		}
	}
	return svc.repo.DeleteAssignmentsForBatch(ctx, batchID)
}

// Submit records a student's work for asg. A first submission past the due day
// is marked late when the assignment allows it; a submission that was not yet
// graded can be replaced once and becomes resubmitted, with the previous files
// removed from storage.
func (svc *service) Submit(asg Assignment, files []*multipart.FileHeader, student user.User) (Submission, error) {
	ctx := context.Background()

	b, err := svc.batchSvc.GetByID(asg.BatchID)
	if err != nil {
		return Submission{}, err
	}
	if !b.IsEnrolled(student.ID) {
		return Submission{}, batch.ErrNotEnrolled
	}

	now := NowFunc().UTC()
	if asg.IsPastDue(now) && !asg.AllowLateSubmission {
		return Submission{}, core.NewValidationError(ErrLateNotAllowed)
	}

	sub, err := svc.repo.GetSubmission(ctx, SubmissionGetFilter{AssignmentID: asg.ID, StudentID: student.ID})
	switch err {
	case nil: // replacing a previous submission
		if !sub.CanBeReplaced() {
			return Submission{}, core.NewValidationError(ErrCannotResubmit)
		}
		newFiles, err := svc.saveFiles(files, "submissions", true)
		if err != nil {
			return Submission{}, err
		}
		oldFiles := sub.Files
		sub.Status = StatusResubmitted
		sub.Files = newFiles
		sub.SubmittedAt = now
		sub.UpdatedAt = now
		sub, err = svc.repo.UpdateSubmission(ctx, sub)
		if err != nil {
			svc.removeFiles(newFiles)
			return Submission{}, err
		}
		svc.removeFiles(oldFiles)
		return sub, nil

	case ErrSubmissionNotFound: // first submission
		status := StatusSubmitted
		if asg.IsPastDue(now) {
			status = StatusLate
		}
		newFiles, err := svc.saveFiles(files, "submissions", true)
		if err != nil {
			return Submission{}, err
		}
		sub = Submission{
			AssignmentID: asg.ID,
			StudentID:    student.ID,
			Status:       status,
			Files:        newFiles,
			SubmittedAt:  now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		sub, err = svc.repo.CreateSubmission(ctx, sub)
		if err != nil {
			svc.removeFiles(newFiles)
			if err == ErrSubmissionExists {
				return Submission{}, core.NewValidationError(err)
			}
			return Submission{}, err
		}
		return sub, nil

	default:
		return Submission{}, err
	}
}

// Grade records marks and feedback on a student's submission. Grading is
// idempotent and may be repeated to correct a grade.
func (svc *service) Grade(asg Assignment, studentID string, gs GradeSubmission, gradedBy user.User) (Submission, error) {
	ctx := context.Background()

	sub, err := svc.repo.GetSubmission(ctx, SubmissionGetFilter{AssignmentID: asg.ID, StudentID: studentID})
	if err != nil {
		return Submission{}, err
	}

	now := NowFunc().UTC()
	sub.Status = StatusGraded
	sub.MarksObtained = null.IntFrom(*gs.MarksObtained)
	sub.Feedback = null.NewString(gs.Feedback, gs.Feedback != "")
	sub.GradedBy = null.StringFrom(gradedBy.ID)
	sub.GradedAt = null.TimeFrom(now)
	sub.UpdatedAt = now
	return svc.repo.UpdateSubmission(ctx, sub)
}

func (svc *service) Submissions(assignmentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(context.Background(), assignmentID)
}

func (svc *service) StudentSubmission(assignmentID, studentID string) (Submission, error) {
	return svc.repo.GetSubmission(context.Background(), SubmissionGetFilter{AssignmentID: assignmentID, StudentID: studentID})
}

func (svc *service) getBatch(id, field string) (batch.Batch, error) {
	b, err := svc.batchSvc.GetByID(id)
	if err != nil {
		if err == batch.ErrNotFound {
			return batch.Batch{}, core.NewValidationError(nil, core.FieldError{Field: field, Error: err.Error()})
		}
		return batch.Batch{}, err
	}
	return b, nil
}

// saveFiles validates the uploads and persists them to storage. Files already
// saved are removed again if a later one fails.
func (svc *service) saveFiles(files []*multipart.FileHeader, dir string, required bool) (core.FileList, error) {
	if len(files) == 0 {
		if required {
			return nil, core.NewValidationError(errors.New(errNoFiles))
		}
		return core.FileList{}, nil
	}
	if max := svc.conf.Uploads.MaxSubmissionFiles; len(files) > max {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "files", Error: errTooManyFiles})
	}

	saved := make(core.FileList, 0, len(files))
	for _, fh := range files {
		ctype, err := core.CheckUpload(fh, svc.conf.Uploads.SubmissionMaxSize, fileExts, fileTypes)
		if err != nil {
			svc.removeFiles(saved)
			return nil, err
		}
		src, err := fh.Open()
		if err != nil {
			svc.removeFiles(saved)
			return nil, err
		}
		f, err := svc.files.Save(src, dir, fh.Filename, ctype, fh.Size)
		src.Close()
		if err != nil {
			svc.removeFiles(saved)
			return nil, err
		}
		saved = append(saved, f)
	}
	return saved, nil
}

// removeFiles deletes stored files, ignoring failures.
func (svc *service) removeFiles(files core.FileList) {
	for _, f := range files {
		_ = svc.files.Remove(f)
	}
}
