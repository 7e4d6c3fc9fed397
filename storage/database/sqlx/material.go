package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/material"
)

const materialColumns = "id, batch_id, title, description, file_name, file_original_name, " +
	"file_content_type, file_size, file_path, is_active, created_by, created_at, updated_at"

type dbMaterial struct {
	ID               string      `db:"id"`
	BatchID          string      `db:"batch_id"`
	Title            string      `db:"title"`
	Description      string      `db:"description"`
	FileName         string      `db:"file_name"`
	FileOriginalName string      `db:"file_original_name"`
	FileContentType  string      `db:"file_content_type"`
	FileSize         int64       `db:"file_size"`
	FilePath         string      `db:"file_path"`
	IsActive         null.Bool   `db:"is_active"`
	CreatedBy        null.String `db:"created_by"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

type materialRepository struct {
	exec core.DBExecutor
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(exec core.DBExecutor) *materialRepository {
	return &materialRepository{exec: exec}
}

func (repo materialRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo materialRepository) pack(mat material.Material) dbMaterial {
	return dbMaterial{
		ID:               mat.ID,
		BatchID:          mat.BatchID,
		Title:            mat.Title,
		Description:      mat.Description,
		FileName:         mat.File.Name,
		FileOriginalName: mat.File.OriginalName,
		FileContentType:  mat.File.ContentType,
		FileSize:         mat.File.Size,
		FilePath:         mat.File.Path,
		IsActive:         null.BoolFromPtr(mat.IsActive),
		CreatedBy:        mat.CreatedBy,
		CreatedAt:        mat.CreatedAt.UTC(),
		UpdatedAt:        mat.UpdatedAt.UTC(),
	}
}

func (repo materialRepository) unpack(m dbMaterial) material.Material {
	return material.Material{
		ID:          m.ID,
		BatchID:     m.BatchID,
		Title:       m.Title,
		Description: m.Description,
		File: core.UploadedFile{
			Name:         m.FileName,
			OriginalName: m.FileOriginalName,
			ContentType:  m.FileContentType,
			Size:         m.FileSize,
			Path:         m.FilePath,
		},
		IsActive:  m.IsActive.Ptr(),
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to material.ErrNotFound
func (repo materialRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return material.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo materialRepository) CreateMaterial(ctx context.Context, mat material.Material, exec ...core.DBExecutor) (material.Material, error) {
	mat.ID = uuid.New().String()
	query := `
	INSERT INTO materials (id, batch_id, title, description, file_name, file_original_name,
	                       file_content_type, file_size, file_path, is_active, created_by, created_at, updated_at)
	VALUES (:id, :batch_id, :title, :description, :file_name, :file_original_name,
	        :file_content_type, :file_size, :file_path, :is_active, :created_by, :created_at, :updated_at)`
	if _, err := repo.getExec(exec).NamedExecContext(ctx, query, repo.pack(mat)); err != nil {
		return material.Material{}, errors.Wrap(err, "inserting material")
	}
	return mat, nil
}

func (repo materialRepository) QueryMaterials(ctx context.Context, filter *material.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]material.Material, error) {
	var conds []string
	var args argList

	if filter != nil {
		if filter.Search != "" {
			val := args.add("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", val, val))
		}
		if filter.BatchID != "" {
			conds = append(conds, "batch_id = "+args.add(filter.BatchID))
		}
		if filter.StudentID != "" {
			conds = append(conds, "batch_id IN (SELECT batch_id FROM batch_students WHERE student_id = "+args.add(filter.StudentID)+")")
		}
		if filter.TeacherID != "" {
			conds = append(conds, "batch_id IN (SELECT id FROM batches WHERE teacher_id = "+args.add(filter.TeacherID)+")")
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = "+args.add(*filter.IsActive))
		}
	}

	query := "SELECT " + materialColumns + " FROM materials"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering)

	var rows []dbMaterial
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	mats := make([]material.Material, 0, len(rows))
	for _, row := range rows {
		mats = append(mats, repo.unpack(row))
	}
	return mats, nil
}

func (repo materialRepository) GetMaterial(ctx context.Context, filter material.GetFilter, exec ...core.DBExecutor) (material.Material, error) {
	if _, err := uuid.Parse(filter.ID); err != nil {
		return material.Material{}, material.ErrNotFound
	}

	var row dbMaterial
	query := "SELECT " + materialColumns + " FROM materials WHERE id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, filter.ID); err != nil {
		return material.Material{}, repo.trapNoRowsErr(err, "finding material")
	}
	return repo.unpack(row), nil
}

func (repo materialRepository) UpdateMaterial(ctx context.Context, mat material.Material, exec ...core.DBExecutor) (material.Material, error) {
	query := `
	UPDATE materials
	SET title = $1, description = $2, file_name = $3, file_original_name = $4,
	    file_content_type = $5, file_size = $6, file_path = $7, is_active = $8, updated_at = $9
	WHERE id = $10
	RETURNING ` + materialColumns

	m := repo.pack(mat)
	var row dbMaterial
	err := repo.getExec(exec).GetContext(ctx, &row, query,
		m.Title, m.Description, m.FileName, m.FileOriginalName,
		m.FileContentType, m.FileSize, m.FilePath, m.IsActive, m.UpdatedAt, m.ID)
	if err != nil {
		return material.Material{}, repo.trapNoRowsErr(err, "updating material")
	}
	return repo.unpack(row), nil
}

func (repo materialRepository) DeleteMaterial(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM materials WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return nil
}

func (repo materialRepository) DeleteMaterialsForBatch(ctx context.Context, batchID string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM materials WHERE batch_id = $1", batchID); err != nil {
		return errors.Wrap(err, "deleting batch materials")
	}
	return nil
}
