package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/payment"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		batch      *batchTable
		attendance *attendanceTable
		assignment *assignmentTable
		submission *submissionTable
		material   *materialTable
		payment    *paymentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	batchTable struct {
		sync.RWMutex
		table map[string]*batch.Batch
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Attendance
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*assignment.Assignment
	}

	submissionTable struct {
		sync.RWMutex
		table map[string]*assignment.Submission
	}

	materialTable struct {
		sync.RWMutex
		table map[string]*material.Material
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]*payment.Payment
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		batch:      &batchTable{table: make(map[string]*batch.Batch)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Attendance)},
		assignment: &assignmentTable{table: make(map[string]*assignment.Assignment)},
		submission: &submissionTable{table: make(map[string]*assignment.Submission)},
		material:   &materialTable{table: make(map[string]*material.Material)},
		payment:    &paymentTable{table: make(map[string]*payment.Payment)},
	}
	return db, nil
}

// Reset truncates all tables. It is meant for tests.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.batch.Lock()
	db.batch.table = make(map[string]*batch.Batch)
	db.batch.Unlock()

	db.attendance.Lock()
	db.attendance.table = make(map[string]*attendance.Attendance)
	db.attendance.Unlock()

	db.assignment.Lock()
	db.assignment.table = make(map[string]*assignment.Assignment)
	db.assignment.Unlock()

	db.submission.Lock()
	db.submission.table = make(map[string]*assignment.Submission)
	db.submission.Unlock()

	db.material.Lock()
	db.material.table = make(map[string]*material.Material)
	db.material.Unlock()

	db.payment.Lock()
	db.payment.table = make(map[string]*payment.Payment)
	db.payment.Unlock()
}

// batchOwnedBy reports whether the batch belongs to the teacher.
func (db *DB) batchOwnedBy(batchID, teacherID string) bool {
	db.batch.RLock()
	defer db.batch.RUnlock()

	b, ok := db.batch.table[batchID]
	return ok && b.TeacherID == teacherID
}

// batchHasStudent reports whether the student is enrolled in the batch.
func (db *DB) batchHasStudent(batchID, studentID string) bool {
	db.batch.RLock()
	defer db.batch.RUnlock()

	b, ok := db.batch.table[batchID]
	return ok && b.IsEnrolled(studentID)
}
