package material

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
	ErrNotFound = errors.New("material not found")

	// NowFunc returns the current time. It can be mocked in tests.
	NowFunc = time.Now

	errFileRequired = "a document file is required"
)

type (
	// Repository abstracts Material persistence.
	Repository interface {
		CreateMaterial(ctx context.Context, mat Material, exec ...core.DBExecutor) (Material, error)
		QueryMaterials(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Material, error)
		GetMaterial(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Material, error)
		UpdateMaterial(ctx context.Context, mat Material, exec ...core.DBExecutor) (Material, error)
		DeleteMaterial(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteMaterialsForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(nm NewMaterial, fh *multipart.FileHeader, createdBy user.User) (Material, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error)
		GetByID(id string) (Material, error)
		Update(origMat Material, um UpdateMaterial, fh *multipart.FileHeader) (Material, error)
		Delete(id string) error
		DeleteForBatch(batchID string) error
	}

	service struct {
		repo     Repository
		batchSvc batch.Service
		files    core.FileStorage
		logger   core.Logger
		conf     core.Config
	}
)

var (
	_ Service         = (*service)(nil)
	_ batch.Dependent = (*service)(nil)
)

func NewService(repo Repository, batchSvc batch.Service, files core.FileStorage, logger core.Logger, conf core.Config) Service {
	return &service{
		repo:     repo,
		batchSvc: batchSvc,
		files:    files,
		logger:   logger,
		conf:     conf,
	}
}

func (svc *service) Create(nm NewMaterial, fh *multipart.FileHeader, createdBy user.User) (Material, error) {
	ctx := context.Background()

	if _, err := svc.batchSvc.GetByID(nm.BatchID); err != nil {
		if err == batch.ErrNotFound {
			return Material{}, core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: err.Error()})
		}
		return Material{}, err
	}

	f, err := svc.saveFile(fh, true)
	if err != nil {
		return Material{}, err
	}

	now := NowFunc().UTC()
	isActive := true
	mat := Material{
		BatchID:     nm.BatchID,
		Title:       nm.Title,
		Description: nm.Description,
		File:        f,
		IsActive:    &isActive,
		CreatedBy:   null.StringFrom(createdBy.ID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mat, err = svc.repo.CreateMaterial(ctx, mat)
	if err != nil {
		_ = svc.files.Remove(f)
		return Material{}, err
	}
	return mat, nil
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Material, error) {
	return svc.repo.QueryMaterials(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Material, error) {
	return svc.repo.GetMaterial(context.Background(), GetFilter{ID: id})
}

// Update persists the changes in um. When fh is provided the stored document is
// replaced and the previous file is removed on a best effort basis.
func (svc *service) Update(origMat Material, um UpdateMaterial, fh *multipart.FileHeader) (Material, error) {
	ctx := context.Background()

	mat := origMat
	mat.Title = um.Title
	mat.Description = *um.Description
	mat.IsActive = um.IsActive
	mat.UpdatedAt = NowFunc().UTC()

	var oldFile, newFile core.UploadedFile
	if fh != nil {
		f, err := svc.saveFile(fh, false)
		if err != nil {
			return Material{}, err
		}
		oldFile = mat.File
		newFile = f
		mat.File = f
	}

	mat, err := svc.repo.UpdateMaterial(ctx, mat)
	if err != nil {
		_ = svc.files.Remove(newFile)
		return Material{}, err
	}

	if err := svc.files.Remove(oldFile); err != nil {
		svc.logger.Warn("failed to remove replaced material file: "+oldFile.Path, err)
	}
	return mat, nil
}

// Delete removes the stored document and then the record. The record survives
// when the file removal fails so the two never go out of sync.
func (svc *service) Delete(id string) error {
	ctx := context.Background()

	mat, err := svc.GetByID(id)
	if err != nil {
		return err
	}
	if err = svc.files.Remove(mat.File); err != nil {
		return err
	}
	return svc.repo.DeleteMaterial(ctx, mat.ID)
}

func (svc *service) DeleteForBatch(batchID string) error {
	ctx := context.Background()

	mats, err := svc.repo.QueryMaterials(ctx, &QueryFilter{BatchID: batchID}, nil)
	if err != nil {
		return err
	}
	for _, mat := range mats {
		if err = svc.files.Remove(mat.File); err != nil {
			return err
		}
	}
	return svc.repo.DeleteMaterialsForBatch(ctx, batchID)
}

func (svc *service) saveFile(fh *multipart.FileHeader, required bool) (core.UploadedFile, error) {
	if fh == nil {
		if required {
			return core.UploadedFile{}, core.NewValidationError(errors.New(errFileRequired))
		}
		return core.UploadedFile{}, nil
	}

	ctype, err := core.CheckUpload(fh, svc.conf.Uploads.MaterialMaxSize, fileExts, fileTypes)
	if err != nil {
		return core.UploadedFile{}, err
	}
	src, err := fh.Open()
	if err != nil {
		return core.UploadedFile{}, err
	}
	defer src.Close()
	return svc.files.Save(src, "materials", fh.Filename, ctype, fh.Size)
}
