package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/user"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

// PrepareDB sets up a fresh in-memory database.
func PrepareDB(t *testing.T) *dummydb.DB {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	return db
}

// ResetDB truncates all tables.
func ResetDB(t *testing.T, db *dummydb.DB) {
	t.Helper()
	db.Reset()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateBatch(
	t *testing.T,
	repo batch.Repository,
	name, teacherID string,
	maxStudents int,
	fee float64,
	students ...string,
) batch.Batch {
	ctx := context.Background()
	now := time.Now().UTC()
	isActive := true
	b := batch.Batch{
		Name:        name,
		TeacherID:   teacherID,
		MaxStudents: maxStudents,
		Fee:         fee,
		StartDate:   now.AddDate(0, -1, 0),
		EndDate:     now.AddDate(0, 5, 0),
		IsActive:    &isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b, err := repo.CreateBatch(ctx, b)
	if err != nil {
		t.Fatalf("createBatch() failed: %v", err)
	}
	for _, studentID := range students {
		if err := repo.AddStudent(ctx, b.ID, studentID, maxStudents); err != nil {
			t.Fatalf("createBatch() failed: %v", err)
		}
	}
	b, err = repo.GetBatch(ctx, batch.GetFilter{ID: b.ID})
	if err != nil {
		t.Fatalf("createBatch() failed: %v", err)
	}
	return b
}
