package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/material"
)

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(db *DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) query() []material.Material {
	mats := make([]material.Material, 0, len(repo.db.material.table))
	for _, mat := range repo.db.material.table {
		mats = append(mats, *mat)
	}
	return mats
}

func (repo *materialRepository) CreateMaterial(_ context.Context, mat material.Material, _ ...core.DBExecutor) (material.Material, error) {
	repo.db.material.Lock()
	defer repo.db.material.Unlock()

	mat.ID = uuid.New().String()
	repo.db.material.table[mat.ID] = &mat
	return mat, nil
}

func (repo *materialRepository) QueryMaterials(_ context.Context, filter *material.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]material.Material, error) {
	repo.db.material.RLock()
	mats := repo.query()
	repo.db.material.RUnlock()

	if filter == nil {
		return mats, nil
	}

	filtered := make([]material.Material, 0, len(mats))
	for _, mat := range mats {
		if filter.Search != "" {
			kw := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(mat.Title), kw) &&
				!strings.Contains(strings.ToLower(mat.Description), kw) {
				continue
			}
		}
		if filter.BatchID != "" && mat.BatchID != filter.BatchID {
			continue
		}
		if filter.StudentID != "" && !repo.db.batchHasStudent(mat.BatchID, filter.StudentID) {
			continue
		}
		if filter.TeacherID != "" && !repo.db.batchOwnedBy(mat.BatchID, filter.TeacherID) {
			continue
		}
		if filter.IsActive != nil && (mat.IsActive == nil || *mat.IsActive != *filter.IsActive) {
			continue
		}
		filtered = append(filtered, mat)
	}
	return filtered, nil
}

func (repo *materialRepository) GetMaterial(_ context.Context, filter material.GetFilter, _ ...core.DBExecutor) (material.Material, error) {
	repo.db.material.RLock()
	defer repo.db.material.RUnlock()

	if mat, ok := repo.db.material.table[filter.ID]; ok {
		return *mat, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) UpdateMaterial(_ context.Context, mat material.Material, _ ...core.DBExecutor) (material.Material, error) {
	repo.db.material.Lock()
	defer repo.db.material.Unlock()

	orig, ok := repo.db.material.table[mat.ID]
	if !ok {
		return material.Material{}, material.ErrNotFound
	}
	mat.CreatedBy = orig.CreatedBy
	mat.CreatedAt = orig.CreatedAt
	repo.db.material.table[mat.ID] = &mat
	return mat, nil
}

func (repo *materialRepository) DeleteMaterial(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.material.Lock()
	defer repo.db.material.Unlock()

	delete(repo.db.material.table, id)
	return nil
}

func (repo *materialRepository) DeleteMaterialsForBatch(_ context.Context, batchID string, _ ...core.DBExecutor) error {
	repo.db.material.Lock()
	defer repo.db.material.Unlock()

	for id, mat := range repo.db.material.table {
		if mat.BatchID == batchID {
			delete(repo.db.material.table, id)
		}
	}
	return nil
}
