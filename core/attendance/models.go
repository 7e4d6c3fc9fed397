package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

const dateFormat = "2006-01-02"

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

// Attendance is one status per (batch, student, calendar day).
type Attendance struct {
	ID        string      `json:"id"`
	BatchID   string      `json:"batch_id"`
	StudentID string      `json:"student_id"`
	Date      time.Time   `json:"date"` // midnight UTC
	Status    string      `json:"status"`
	Remark    null.String `json:"remark"`
	MarkedBy  null.String `json:"marked_by"`
	CreatedAt time.Time   `json:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

// NewAttendance contains information needed to mark a single record.
type NewAttendance struct {
	BatchID   string `json:"batch_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Remark    string `json:"remark"`

	date time.Time
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Status = core.CleanString(na.Status, true /* lower */)
	na.Remark = core.CleanString(na.Remark)

	if err := validate.Struct(na); err != nil {
		return err
	}
	na.date, _ = time.Parse(dateFormat, na.Date)
	return nil
}

// UpdateAttendance defines what may be changed on an existing record.
// The (batch, student, date) key is immutable.
type UpdateAttendance struct {
	Status string  `json:"status" validate:"omitempty,oneof=present absent late excused"`
	Remark *string `json:"remark"`
}

func (ua *UpdateAttendance) Validate(origRecord Attendance, validate *validator.Validate) error {
	status := core.CleanString(ua.Status, true /* lower */)
	if status != "" {
		ua.Status = status
	} else {
		ua.Status = origRecord.Status
	}
	return validate.Struct(ua)
}

// BulkMark marks a set of students in one batch on one date. Entries are
// upserted independently; failures are collected per entry.
type BulkMark struct {
	BatchID string          `json:"batch_id" validate:"required"`
	Date    string          `json:"date" validate:"required,datetime=2006-01-02"`
	Entries []BulkMarkEntry `json:"entries" validate:"required,min=1,dive"`

	date time.Time
}

type BulkMarkEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Remark    string `json:"remark"`
}

func (bm *BulkMark) Validate(validate *validator.Validate) error {
	for i := range bm.Entries {
		bm.Entries[i].Status = core.CleanString(bm.Entries[i].Status, true /* lower */)
		bm.Entries[i].Remark = core.CleanString(bm.Entries[i].Remark)
	}
	if err := validate.Struct(bm); err != nil {
		return err
	}
	bm.date, _ = time.Parse(dateFormat, bm.Date)
	return nil
}

type BulkMarkError struct {
	StudentID string `json:"student_id"`
	Error     string `json:"error"`
}

type BulkMarkResult struct {
	Success bool            `json:"success"`
	Results []Attendance    `json:"results"`
	Errors  []BulkMarkError `json:"errors"`
}

// Summary aggregates a student's records within a batch.
type Summary struct {
	StudentID  string         `json:"student_id"`
	BatchID    string         `json:"batch_id"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Percentage int            `json:"percentage"` // present days / total marked days
}

type QueryFilter struct {
	BatchID   string    `query:"batch_id"`
	StudentID string    `query:"student_id"`
	TeacherID string    `query:"-"` // batches owned by this teacher; set by handlers
	Status    string    `query:"status"`
	DateFrom  time.Time `query:"date_from"`
	DateTo    time.Time `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.BatchID == "" && qf.StudentID == "" && qf.TeacherID == "" && qf.Status == "" &&
		qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}

type GetFilter struct {
	ID string
}
