package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) query() []assignment.Assignment {
	asgs := make([]assignment.Assignment, 0, len(repo.db.assignment.table))
	for _, asg := range repo.db.assignment.table {
		asgs = append(asgs, *asg)
	}
	return asgs
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, asg assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()

	asg.ID = uuid.New().String()
	repo.db.assignment.table[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter *assignment.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.assignment.RLock()
	asgs := repo.query()
	repo.db.assignment.RUnlock()

	if filter == nil {
		return asgs, nil
	}

	filtered := make([]assignment.Assignment, 0, len(asgs))
	for _, asg := range asgs {
		if filter.BatchID != "" && asg.BatchID != filter.BatchID {
			continue
		}
		if filter.StudentID != "" && !repo.db.batchHasStudent(asg.BatchID, filter.StudentID) {
			continue
		}
		if filter.TeacherID != "" && !repo.db.batchOwnedBy(asg.BatchID, filter.TeacherID) {
			continue
		}
		filtered = append(filtered, asg)
	}
	return filtered, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, filter assignment.GetFilter, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.assignment.RLock()
	defer repo.db.assignment.RUnlock()

	if asg, ok := repo.db.assignment.table[filter.ID]; ok {
		return *asg, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, asg assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.assignment.Lock()
	defer repo.db.assignment.Unlock()

	orig, ok := repo.db.assignment.table[asg.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	asg.Attachments = orig.Attachments
	asg.CreatedBy = orig.CreatedBy
	asg.CreatedAt = orig.CreatedAt
	repo.db.assignment.table[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.assignment.Lock()
	delete(repo.db.assignment.table, id)
	repo.db.assignment.Unlock()

	repo.deleteSubmissions(func(sub *assignment.Submission) bool { return sub.AssignmentID == id })
	return nil
}

func (repo *assignmentRepository) DeleteAssignmentsForBatch(_ context.Context, batchID string, _ ...core.DBExecutor) error {
	repo.db.assignment.Lock()
	deleted := make(map[string]bool)
	for id, asg := range repo.db.assignment.table {
		if asg.BatchID == batchID {
			delete(repo.db.assignment.table, id)
			deleted[id] = true
		}
	}
	repo.db.assignment.Unlock()

	repo.deleteSubmissions(func(sub *assignment.Submission) bool { return deleted[sub.AssignmentID] })
	return nil
}

// deleteSubmissions removes the submissions matched by pred, standing in for
// the FK cascade a real database performs.
func (repo *assignmentRepository) deleteSubmissions(pred func(*assignment.Submission) bool) {
	repo.db.submission.Lock()
	defer repo.db.submission.Unlock()

	for id, sub := range repo.db.submission.table {
		if pred(sub) {
			delete(repo.db.submission.table, id)
		}
	}
}

func (repo *assignmentRepository) CreateSubmission(_ context.Context, sub assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.submission.Lock()
	defer repo.db.submission.Unlock()

	for _, existing := range repo.db.submission.table {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
	}
	sub.ID = uuid.New().String()
	repo.db.submission.table[sub.ID] = &sub
	return sub, nil
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, assignmentID string, _ ...core.DBExecutor) ([]assignment.Submission, error) {
	repo.db.submission.RLock()
	subs := make([]assignment.Submission, 0, len(repo.db.submission.table))
	for _, sub := range repo.db.submission.table {
		if sub.AssignmentID == assignmentID {
			subs = append(subs, *sub)
		}
	}
	repo.db.submission.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *assignmentRepository) GetSubmission(_ context.Context, filter assignment.SubmissionGetFilter, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.submission.RLock()
	defer repo.db.submission.RUnlock()

	if filter.ID != "" {
		if sub, ok := repo.db.submission.table[filter.ID]; ok {
			return *sub, nil
		}
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	for _, sub := range repo.db.submission.table {
		if sub.AssignmentID == filter.AssignmentID && sub.StudentID == filter.StudentID {
			return *sub, nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) UpdateSubmission(_ context.Context, sub assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.submission.Lock()
	defer repo.db.submission.Unlock()

	orig, ok := repo.db.submission.table[sub.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	sub.AssignmentID = orig.AssignmentID
	sub.StudentID = orig.StudentID
	sub.CreatedAt = orig.CreatedAt
	repo.db.submission.table[sub.ID] = &sub
	return sub, nil
}
