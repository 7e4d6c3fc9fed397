package batch

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const dateFormat = "2006-01-02"

// Action is an operation a user may attempt on a Batch.
type Action int

const (
	// ActionView covers read access to a batch and its dependent records.
	ActionView Action = iota
	// ActionManage covers mutations of the batch itself.
	ActionManage
	// ActionRecord covers creating and mutating the batch's dependent
	// records (attendance, assignments, materials, payments).
	ActionRecord
)

// CanActOn reports whether usr may perform action on batch b.
// Admins may do anything. The owning teacher may view, manage and record on
// their batch. Enrolled students may only view.
func CanActOn(usr user.User, b Batch, action Action) bool {
	if usr.IsAdmin() {
		return true
	}
	switch action {
	case ActionView:
		if usr.IsTeacher() && b.TeacherID == usr.ID {
			return true
		}
		return usr.IsStudent() && b.IsEnrolled(usr.ID)
	case ActionManage, ActionRecord:
		return usr.IsTeacher() && b.TeacherID == usr.ID
	}
	return false
}

var errEndBeforeStart = "end date must be after start date"

type Schedule struct {
	Days      []string `json:"days" validate:"omitempty,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime string   `json:"start_time" validate:"omitempty,datetime=15:04"` // HH:MM
	EndTime   string   `json:"end_time" validate:"omitempty,datetime=15:04"`   // HH:MM
}

type Batch struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TeacherID   string    `json:"teacher_id"`
	Students    []string  `json:"students"` // enrolled student IDs
	MaxStudents int       `json:"max_students"`
	Schedule    Schedule  `json:"schedule"`
	Fee         float64   `json:"fee"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	IsActive    *bool     `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (b *Batch) IsEnrolled(studentID string) bool {
	for _, id := range b.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// NewBatch contains information needed to create a new Batch.
type NewBatch struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	TeacherID   string   `json:"teacher_id" validate:"required"`
	MaxStudents int      `json:"max_students" validate:"required,min=1"`
	Schedule    Schedule `json:"schedule"`
	Fee         float64  `json:"fee" validate:"min=0"`
	StartDate   string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"end_date" validate:"required,datetime=2006-01-02"`

	startDate time.Time
	endDate   time.Time
}

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.Schedule.clean()

	if err := validate.Struct(nb); err != nil {
		return err
	}

	nb.startDate, _ = time.Parse(dateFormat, nb.StartDate)
	nb.endDate, _ = time.Parse(dateFormat, nb.EndDate)
	if !nb.endDate.After(nb.startDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: errEndBeforeStart})
	}
	return nil
}

// UpdateBatch defines what information may be provided to modify an existing Batch.
type UpdateBatch struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	TeacherID   string    `json:"teacher_id"`
	MaxStudents int       `json:"max_students" validate:"omitempty,min=1"`
	Schedule    *Schedule `json:"schedule"`
	Fee         *float64  `json:"fee"`
	StartDate   string    `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string    `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IsActive    *bool     `json:"is_active"`

	startDate time.Time
	endDate   time.Time
}

// Validate cleans the provided fields and backfills the missing ones from
// origBatch so the service always persists a complete Batch.
func (ub *UpdateBatch) Validate(origBatch Batch, validate *validator.Validate) error {
	name := core.CleanString(ub.Name)
	if name != "" {
		ub.Name = name
	} else {
		ub.Name = origBatch.Name
	}
	if ub.TeacherID == "" {
		ub.TeacherID = origBatch.TeacherID
	}
	if ub.MaxStudents == 0 {
		ub.MaxStudents = origBatch.MaxStudents
	}
	if ub.Description == nil {
		desc := origBatch.Description
		ub.Description = &desc
	}
	if ub.Schedule != nil {
		ub.Schedule.clean()
	} else {
		sched := origBatch.Schedule
		ub.Schedule = &sched
	}
	if ub.Fee == nil {
		fee := origBatch.Fee
		ub.Fee = &fee
	}
	if ub.IsActive == nil {
		ub.IsActive = origBatch.IsActive
	}

	if err := validate.Struct(ub); err != nil {
		return err
	}

	// the date window must stay consistent with the unchanged half
	ub.startDate = origBatch.StartDate
	ub.endDate = origBatch.EndDate
	if ub.StartDate != "" {
		ub.startDate, _ = time.Parse(dateFormat, ub.StartDate)
	}
	if ub.EndDate != "" {
		ub.endDate, _ = time.Parse(dateFormat, ub.EndDate)
	}
	if !ub.endDate.After(ub.startDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: errEndBeforeStart})
	}
	return nil
}

func (s *Schedule) clean() {
	for i, day := range s.Days {
		s.Days[i] = core.CleanString(day, true /* lower */)
	}
	s.StartTime = core.CleanString(s.StartTime)
	s.EndTime = core.CleanString(s.EndTime)
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher_id"`
	StudentID string `query:"student_id"`
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.TeacherID == "" && qf.StudentID == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type GetFilter struct {
	ID string
}
