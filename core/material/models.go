package material

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// uploads accepted for study materials: course documents only.
var (
	fileExts = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".ppt": true, ".pptx": true, ".txt": true,
	}
	// sniffed content types; docx/pptx sniff as zip, legacy formats as octet-stream
	fileTypes = map[string]bool{
		"application/pdf":          true,
		"application/zip":          true,
		"application/octet-stream": true,
		"text/plain":               true,
	}
)

// Material is a course document shared with a batch. Students only see active ones.
type Material struct {
	ID          string            `json:"id"`
	BatchID     string            `json:"batch_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	File        core.UploadedFile `json:"file"`
	IsActive    *bool             `json:"is_active"`
	CreatedBy   null.String       `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"` // UTC
	UpdatedAt   time.Time         `json:"updated_at"` // UTC
}

// NewMaterial contains information needed to create a new Material.
// The document itself rides along in the multipart form.
type NewMaterial struct {
	BatchID     string `json:"batch_id" form:"batch_id" validate:"required"`
	Title       string `json:"title" form:"title" validate:"required"`
	Description string `json:"description" form:"description"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// UpdateMaterial defines what may be changed on an existing Material.
// A replacement document may ride along in the multipart form.
type UpdateMaterial struct {
	Title       string  `json:"title" form:"title"`
	Description *string `json:"description" form:"description"`
	IsActive    *bool   `json:"is_active" form:"is_active"`
}

// Validate cleans the provided fields and backfills the missing ones from
// origMat so the service always persists a complete Material.
func (um *UpdateMaterial) Validate(origMat Material, validate *validator.Validate) error {
	title := core.CleanString(um.Title)
	if title != "" {
		um.Title = title
	} else {
		um.Title = origMat.Title
	}
	if um.Description == nil {
		desc := origMat.Description
		um.Description = &desc
	}
	if um.IsActive == nil {
		um.IsActive = origMat.IsActive
	}
	return validate.Struct(um)
}

type QueryFilter struct {
	Search    string `query:"search"`
	BatchID   string `query:"batch_id"`
	StudentID string `query:"-"` // materials of batches the student is enrolled in; set by handlers
	TeacherID string `query:"-"` // materials of batches owned by this teacher; set by handlers
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.BatchID == "" && qf.StudentID == "" && qf.TeacherID == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true)
}

type GetFilter struct {
	ID string
}
