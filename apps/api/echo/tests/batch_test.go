package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"testing"
	"time"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/payment"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_batchApi_batchCreate(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)

	newBatch := func(name, teacherID string) []byte {
		return marchallObj(t, batch.NewBatch{
			Name:        name,
			TeacherID:   teacherID,
			MaxStudents: 25,
			Fee:         1500,
			StartDate:   "2026-09-01",
			EndDate:     "2027-06-30",
		})
	}

	type extraTest struct {
		teacherID string
	}
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Students not allowed", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":         reqMsg,
				"teacher_id":   reqMsg,
				"max_students": reqMsg,
				"start_date":   reqMsg,
				"end_date":     reqMsg,
			}),
		},
		{
			name: "teachers own their batches so teacher_id is never required of them", token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":         reqMsg,
				"max_students": reqMsg,
				"start_date":   reqMsg,
				"end_date":     reqMsg,
			}),
		},
		{
			name: "end date must come after start date", token: teacherToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, batch.NewBatch{
				Name:        "Backwards",
				MaxStudents: 25,
				StartDate:   "2027-06-30",
				EndDate:     "2026-09-01",
			}),
			wantData: marchallObj(t, map[string]string{"end_date": "end date must be after start date"}),
		},
		{
			name: "unknown teacher", token: adminToken, wantCode: http.StatusBadRequest,
			body:     newBatch("Physics 101", "lol"),
			wantData: marchallObj(t, map[string]string{"teacher_id": "user not found"}),
		},
		{
			name: "teacher_id must be a teacher", token: adminToken, wantCode: http.StatusBadRequest,
			body:     newBatch("Physics 101", student.ID),
			wantData: marchallObj(t, map[string]string{"teacher_id": "user is not a teacher"}),
		},
		{
			name: "admin creates for a teacher", token: adminToken, wantCode: http.StatusCreated,
			body: newBatch("Physics 101", teacher.ID), extra: extraTest{teacherID: teacher.ID},
		},
		{
			name: "teacher creates for themselves regardless of teacher_id", token: teacherToken, wantCode: http.StatusCreated,
			body: newBatch("Chemistry 101", teacher2.ID), extra: extraTest{teacherID: teacher.ID},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/batches"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if xtra, ok := tt.extra.(extraTest); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var b batch.Batch
				if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if b.ID == "" {
					t.Error("failed! empty batch ID")
				}
				if b.TeacherID != xtra.teacherID {
					t.Errorf("failed! teacher_id = %v; want %v", b.TeacherID, xtra.teacherID)
				}
				if b.IsActive == nil || !*b.IsActive {
					t.Error("failed! new batch is not active")
				}
				if len(b.Students) != 0 {
					t.Errorf("failed! students = %v; want empty roster", b.Students)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_batchApi_batchQuery(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	student2 := testutil.CreateUser(t, usrRepo, "Student Two", "student2", "student2@test.cd", "", []string{user.RoleStudent}, true)

	b1 := testutil.CreateBatch(t, batchRepo, "Physics 101", teacher.ID, 30, 1500, student.ID)
	b2 := testutil.CreateBatch(t, batchRepo, "Chemistry 101", teacher2.ID, 30, 1000, student2.ID)
	b3 := testutil.CreateBatch(t, batchRepo, "History Archive", teacher.ID, 10, 500)
	inactive := false
	b3.IsActive = &inactive
	b3, err := batchRepo.UpdateBatch(context.Background(), b3)
	if err != nil {
		t.Fatalf("UpdateBatch() failed, %v", err)
	}

	path := func(search string, isActive *bool) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		return "/api/batches?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	adminToken := getToken(t, admin)
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/api/batches", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin gets all", path: "/api/batches", token: adminToken, wantData: marchallList(t, b1, b2, b3)},
		{name: "Teacher gets their own", path: "/api/batches", token: getToken(t, teacher), wantData: marchallList(t, b1, b3)},
		{name: "Other teacher gets their own", path: "/api/batches", token: getToken(t, teacher2), wantData: marchallList(t, b2)},
		{name: "Student gets enrollments", path: "/api/batches", token: getToken(t, student), wantData: marchallList(t, b1)},
		{name: "Other student gets enrollments", path: "/api/batches", token: getToken(t, student2), wantData: marchallList(t, b2)},
		// filtering
		{name: "search (unknown)", path: path("lol", nil), token: adminToken, wantData: empty},
		{name: "search=phys", path: path("phys", nil), token: adminToken, wantData: marchallList(t, b1)},
		{name: "search outside own enrollments", path: path("chem", nil), token: getToken(t, student), wantData: empty},
		{name: "is_active=false", path: path("", bPtr(false)), token: adminToken, wantData: marchallList(t, b3)},
		{name: "is_active=true scoped to teacher", path: path("", bPtr(true)), token: getToken(t, teacher), wantData: marchallList(t, b1)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_batchApi_batchRetrieve(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	student2 := testutil.CreateUser(t, usrRepo, "Student Two", "student2", "student2@test.cd", "", []string{user.RoleStudent}, true)

	b := testutil.CreateBatch(t, batchRepo, "Physics 101", teacher.ID, 30, 1500, student.ID)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "Auth required", path: "/api/batches/" + b.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Unknown batch", path: "/api/batches/lol", token: getToken(t, admin), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "Admin gets any", path: "/api/batches/" + b.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, b)},
		{name: "Owning teacher", path: "/api/batches/" + b.ID, token: getToken(t, teacher), wantCode: http.StatusOK, wantData: marchallObj(t, b)},
		{name: "Other teacher denied", path: "/api/batches/" + b.ID, token: getToken(t, teacher2), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "Enrolled student", path: "/api/batches/" + b.ID, token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallObj(t, b)},
		{name: "Non-enrolled student denied", path: "/api/batches/" + b.ID, token: getToken(t, student2), wantCode: http.StatusForbidden, wantData: forbidden},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_batchApi_batchUpdate(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)

	b := testutil.CreateBatch(t, batchRepo, "Biology 101", teacher.ID, 20, 800, student.ID)
	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "Auth required", path: "/api/batches/" + b.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Unknown batch", path: "/api/batches/lol", token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Enrolled students cannot manage", path: "/api/batches/" + b.ID, token: getToken(t, student),
			body: marchallObj(t, batch.UpdateBatch{Name: "Hacked"}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Other teacher denied", path: "/api/batches/" + b.ID, token: getToken(t, teacher2),
			body: marchallObj(t, batch.UpdateBatch{Name: "Hacked"}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Only admin may hand the batch over", path: "/api/batches/" + b.ID, token: teacherToken,
			body: marchallObj(t, batch.UpdateBatch{TeacherID: teacher2.ID}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "New teacher must be a teacher", path: "/api/batches/" + b.ID, token: adminToken,
			body:     marchallObj(t, batch.UpdateBatch{TeacherID: student.ID}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"teacher_id": "user is not a teacher"}),
		},
		{
			name: "End date must stay after start date", path: "/api/batches/" + b.ID, token: teacherToken,
			body:     marchallObj(t, batch.UpdateBatch{EndDate: "2020-01-01"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"end_date": "end date must be after start date"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Owning teacher renames", func(t *testing.T) {
		body := marchallObj(t, batch.UpdateBatch{Name: "Biology II"})
		req, rec := newAuthRequest(http.MethodPut, "/api/batches/"+b.ID, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var updated batch.Batch
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if updated.Name != "Biology II" {
			t.Errorf("failed! name = %v; want %v", updated.Name, "Biology II")
		}
		// the roster survives updates
		if !reflect.DeepEqual(updated.Students, []string{student.ID}) {
			t.Errorf("failed! students = %v; want %v", updated.Students, []string{student.ID})
		}
	})

	t.Run("Admin hands the batch over", func(t *testing.T) {
		body := marchallObj(t, batch.UpdateBatch{TeacherID: teacher2.ID})
		req, rec := newAuthRequest(http.MethodPut, "/api/batches/"+b.ID, adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var updated batch.Batch
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if updated.TeacherID != teacher2.ID {
			t.Errorf("failed! teacher_id = %v; want %v", updated.TeacherID, teacher2.ID)
		}
	})
}

func Test_batchApi_batchEnrollment(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	student2 := testutil.CreateUser(t, usrRepo, "Student Two", "student2", "student2@test.cd", "", []string{user.RoleStudent}, true)

	// a single seat keeps the capacity ceiling within reach
	b := testutil.CreateBatch(t, batchRepo, "Tiny Batch", teacher.ID, 1, 100)

	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)
	enrollPath := "/api/batches/" + b.ID + "/students"
	enroll := func(studentID string) []byte {
		return marchallObj(t, echoapi.EnrollmentRequest{StudentID: studentID})
	}
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	type extraTest struct {
		students []string
	}
	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: enrollPath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Non-enrolled student denied", method: http.MethodPost, path: enrollPath, token: studentToken,
			body: enroll(student.ID), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "required fields", method: http.MethodPost, path: enrollPath, token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": reqMsg}),
		},
		{
			name: "unknown student", method: http.MethodPost, path: enrollPath, token: teacherToken,
			body: enroll("lol"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "user not found"}),
		},
		{
			name: "only students enroll", method: http.MethodPost, path: enrollPath, token: teacherToken,
			body: enroll(admin.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "user is not a student"}),
		},
		{
			name: "student enrolled", method: http.MethodPost, path: enrollPath, token: teacherToken,
			body: enroll(student.ID), wantCode: http.StatusOK, extra: extraTest{students: []string{student.ID}},
		},
		{
			name: "already enrolled", method: http.MethodPost, path: enrollPath, token: teacherToken,
			body: enroll(student.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "student is already enrolled in this batch"}),
		},
		{
			name: "batch is full", method: http.MethodPost, path: enrollPath, token: teacherToken,
			body: enroll(student2.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "batch is full"}),
		},
		{
			name: "enrolled students cannot manage the roster", method: http.MethodPost, path: enrollPath, token: studentToken,
			body: enroll(student2.ID), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "unenrolling a non-enrolled student", method: http.MethodDelete, path: enrollPath + "/" + student2.ID, token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this batch"}),
		},
		{
			name: "student unenrolled", method: http.MethodDelete, path: enrollPath + "/" + student.ID, token: teacherToken,
			wantCode: http.StatusOK, extra: extraTest{students: []string{}},
		},
		{
			name: "unenrolling frees the seat", method: http.MethodPost, path: enrollPath, token: teacherToken,
			body: enroll(student2.ID), wantCode: http.StatusOK, extra: extraTest{students: []string{student2.ID}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if xtra, ok := tt.extra.(extraTest); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var updated batch.Batch
				if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if !reflect.DeepEqual(updated.Students, xtra.students) {
					t.Errorf("failed! students = %v; want %v", updated.Students, xtra.students)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_batchApi_batchDelete(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	b := testutil.CreateBatch(t, batchRepo, "Doomed Batch", teacher.ID, 30, 1000, student.ID)

	// hang one of each dependent record off the batch
	ctx := context.Background()
	if _, err := attRepo.CreateAttendance(ctx, attendance.Attendance{
		BatchID:   b.ID,
		StudentID: student.ID,
		Date:      time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC),
		Status:    attendance.StatusPresent,
	}); err != nil {
		t.Fatalf("CreateAttendance() failed, %v", err)
	}
	asg, err := asgRepo.CreateAssignment(ctx, assignment.Assignment{
		BatchID:    b.ID,
		Title:      "Homework 1",
		DueDate:    time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		TotalMarks: 20,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed, %v", err)
	}
	if _, err = asgRepo.CreateSubmission(ctx, assignment.Submission{
		AssignmentID: asg.ID,
		StudentID:    student.ID,
		Status:       assignment.StatusSubmitted,
	}); err != nil {
		t.Fatalf("CreateSubmission() failed, %v", err)
	}
	if _, err = matRepo.CreateMaterial(ctx, material.Material{BatchID: b.ID, Title: "Course Notes"}); err != nil {
		t.Fatalf("CreateMaterial() failed, %v", err)
	}
	if _, err = pmtRepo.CreatePayment(ctx, payment.Payment{
		BatchID:   b.ID,
		StudentID: student.ID,
		Month:     "2026-08",
		Amount:    1000,
		Status:    payment.StatusCompleted,
		Method:    payment.MethodCash,
	}); err != nil {
		t.Fatalf("CreatePayment() failed, %v", err)
	}

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/batches/"+b.ID, getToken(t, teacher))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Unknown batch", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/batches/lol", getToken(t, admin))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Batch and its records deleted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/batches/"+b.ID, getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}

		if _, err := batchRepo.GetBatch(ctx, batch.GetFilter{ID: b.ID}); err != batch.ErrNotFound {
			t.Errorf("failed! err = %v; want %v", err, batch.ErrNotFound)
		}
		if atts, _ := attRepo.QueryAttendance(ctx, &attendance.QueryFilter{BatchID: b.ID}, nil); len(atts) != 0 {
			t.Errorf("failed! %d attendance records survived", len(atts))
		}
		if asgs, _ := asgRepo.QueryAssignments(ctx, &assignment.QueryFilter{BatchID: b.ID}, nil); len(asgs) != 0 {
			t.Errorf("failed! %d assignments survived", len(asgs))
		}
		if subs, _ := asgRepo.QuerySubmissions(ctx, asg.ID); len(subs) != 0 {
			t.Errorf("failed! %d submissions survived", len(subs))
		}
		if mats, _ := matRepo.QueryMaterials(ctx, &material.QueryFilter{BatchID: b.ID}, nil); len(mats) != 0 {
			t.Errorf("failed! %d materials survived", len(mats))
		}
		if pmts, _ := pmtRepo.QueryPayments(ctx, &payment.QueryFilter{BatchID: b.ID}, nil); len(pmts) != 0 {
			t.Errorf("failed! %d payments survived", len(pmts))
		}
	})
}
