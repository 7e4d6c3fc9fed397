package assignment

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

const dateFormat = "2006-01-02"

// Submission statuses
const (
	StatusSubmitted   = "submitted"
	StatusLate        = "late"
	StatusResubmitted = "resubmitted"
	StatusGraded      = "graded"
)

// uploads accepted for assignment attachments and student submissions:
// documents, images and archives.
var (
	fileExts = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".ppt": true, ".pptx": true,
		".xls": true, ".xlsx": true, ".txt": true,
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".zip": true, ".rar": true, ".7z": true,
	}
	// sniffed content types; legacy office formats and 7z sniff as octet-stream
	fileTypes = map[string]bool{
		"application/pdf":              true,
		"application/zip":              true,
		"application/x-rar-compressed": true,
		"application/octet-stream":     true,
		"text/plain":                   true,
		"image/jpeg":                   true,
		"image/png":                    true,
		"image/gif":                    true,
	}
)

type Assignment struct {
	ID                  string        `json:"id"`
	BatchID             string        `json:"batch_id"`
	Title               string        `json:"title"`
	Description         string        `json:"description"`
	DueDate             time.Time     `json:"due_date"` // midnight UTC; due through the end of that day
	TotalMarks          int           `json:"total_marks"`
	AllowLateSubmission bool          `json:"allow_late_submission"`
	Attachments         core.FileList `json:"attachments"`
	CreatedBy           null.String   `json:"created_by"`
	CreatedAt           time.Time     `json:"created_at"` // UTC
	UpdatedAt           time.Time     `json:"updated_at"` // UTC

	// Submissions is only populated on detail reads; students get their own,
	// teachers and admins get all.
	Submissions []Submission `json:"submissions,omitempty"`
}

// IsPastDue reports whether t falls after the assignment's due day.
func (a *Assignment) IsPastDue(t time.Time) bool {
	return t.After(a.DueDate.AddDate(0, 0, 1))
}

// Submission is a student's delivered work; at most one per (assignment, student).
type Submission struct {
	ID            string        `json:"id"`
	AssignmentID  string        `json:"assignment_id"`
	StudentID     string        `json:"student_id"`
	Status        string        `json:"status"`
	Files         core.FileList `json:"files"`
	SubmittedAt   time.Time     `json:"submitted_at"` // UTC
	MarksObtained null.Int      `json:"marks_obtained"`
	Feedback      null.String   `json:"feedback"`
	GradedBy      null.String   `json:"graded_by"`
	GradedAt      null.Time     `json:"graded_at"`
	CreatedAt     time.Time     `json:"created_at"` // UTC
	UpdatedAt     time.Time     `json:"updated_at"` // UTC
}

// CanBeReplaced reports whether a further submission may supersede this one.
// Only a first submission (on time or late) may be replaced.
func (s *Submission) CanBeReplaced() bool {
	return s.Status == StatusSubmitted || s.Status == StatusLate
}

// NewAssignment contains information needed to create a new Assignment.
// Attachment files ride along in the multipart form.
type NewAssignment struct {
	BatchID             string `json:"batch_id" form:"batch_id" validate:"required"`
	Title               string `json:"title" form:"title" validate:"required"`
	Description         string `json:"description" form:"description"`
	DueDate             string `json:"due_date" form:"due_date" validate:"required,datetime=2006-01-02"`
	TotalMarks          int    `json:"total_marks" form:"total_marks" validate:"required,min=1"`
	AllowLateSubmission bool   `json:"allow_late_submission" form:"allow_late_submission"`

	dueDate time.Time
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)

	if err := validate.Struct(na); err != nil {
		return err
	}
	na.dueDate, _ = time.Parse(dateFormat, na.DueDate)
	return nil
}

// UpdateAssignment defines what may be changed on an existing Assignment.
// Attachments are immutable once created.
type UpdateAssignment struct {
	Title               string  `json:"title"`
	Description         *string `json:"description"`
	DueDate             string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	TotalMarks          int     `json:"total_marks" validate:"omitempty,min=1"`
	AllowLateSubmission *bool   `json:"allow_late_submission"`

	dueDate time.Time
}

func (ua *UpdateAssignment) Validate(origAsg Assignment, validate *validator.Validate) error {
	title := core.CleanString(ua.Title)
	if title != "" {
		ua.Title = title
	} else {
		ua.Title = origAsg.Title
	}
	if ua.Description == nil {
		desc := origAsg.Description
		ua.Description = &desc
	}
	if ua.TotalMarks == 0 {
		ua.TotalMarks = origAsg.TotalMarks
	}
	if ua.AllowLateSubmission == nil {
		allow := origAsg.AllowLateSubmission
		ua.AllowLateSubmission = &allow
	}

	if err := validate.Struct(ua); err != nil {
		return err
	}

	ua.dueDate = origAsg.DueDate
	if ua.DueDate != "" {
		ua.dueDate, _ = time.Parse(dateFormat, ua.DueDate)
	}
	return nil
}

// GradeSubmission carries a grading decision. Zero marks are valid, hence the pointer.
type GradeSubmission struct {
	MarksObtained *int   `json:"marks_obtained" validate:"required,min=0"`
	Feedback      string `json:"feedback"`
}

func (gs *GradeSubmission) Validate(asg Assignment, validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)

	if err := validate.Struct(gs); err != nil {
		return err
	}
	if *gs.MarksObtained > asg.TotalMarks {
		return core.NewValidationError(nil, core.FieldError{
			Field: "marks_obtained",
			Error: fmt.Sprintf("marks cannot exceed the assignment total of %d", asg.TotalMarks),
		})
	}
	return nil
}

type QueryFilter struct {
	BatchID   string `query:"batch_id"`
	StudentID string `query:"-"` // assignments of batches the student is enrolled in; set by handlers
	TeacherID string `query:"-"` // assignments of batches owned by this teacher; set by handlers
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.BatchID == "" && qf.StudentID == "" && qf.TeacherID == ""
}

type GetFilter struct {
	ID string
}

// SubmissionGetFilter fetches a single Submission either by ID or by its
// (assignment, student) key.
type SubmissionGetFilter struct {
	ID           string
	AssignmentID string
	StudentID    string
}
