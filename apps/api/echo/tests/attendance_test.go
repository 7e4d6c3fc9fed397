package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

var badStatusMsg = "status must be one of [present absent late excused]"

func Test_attendanceApi_attendanceCreate(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	student2 := testutil.CreateUser(t, usrRepo, "Student Two", "student2", "student2@test.cd", "", []string{user.RoleStudent}, true)
	b := testutil.CreateBatch(t, batchRepo, "Physics 101", teacher.ID, 30, 1500, student.ID)

	teacherToken := getToken(t, teacher)

	newAtt := func(batchID, studentID, date, status string) []byte {
		return marchallObj(t, attendance.NewAttendance{BatchID: batchID, StudentID: studentID, Date: date, Status: status})
	}

	type extraTest struct {
		markedBy string
		status   string
	}
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Students not allowed", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"batch_id":   reqMsg,
				"student_id": reqMsg,
				"date":       reqMsg,
				"status":     reqMsg,
			}),
		},
		{
			name: "invalid date", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     newAtt(b.ID, student.ID, "03-08-2026", attendance.StatusPresent),
			wantData: marchallObj(t, map[string]string{"date": "date does not match the 2006-01-02 format"}),
		},
		{
			name: "invalid status", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     newAtt(b.ID, student.ID, "2026-08-03", "sleeping"),
			wantData: marchallObj(t, map[string]string{"status": badStatusMsg}),
		},
		{
			name: "unknown batch", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     newAtt("lol", student.ID, "2026-08-03", attendance.StatusPresent),
			wantData: marchallObj(t, map[string]string{"batch_id": "batch not found"}),
		},
		{
			name: "other teacher denied", token: getToken(t, teacher2), wantCode: http.StatusForbidden,
			body:     newAtt(b.ID, student.ID, "2026-08-03", attendance.StatusPresent),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "student must be enrolled", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     newAtt(b.ID, student2.ID, "2026-08-03", attendance.StatusPresent),
			wantData: marchallObj(t, map[string]string{"student_id": "student is not enrolled in this batch"}),
		},
		{
			name: "attendance marked", token: teacherToken, wantCode: http.StatusCreated,
			body:  newAtt(b.ID, student.ID, "2026-08-03", attendance.StatusPresent),
			extra: extraTest{markedBy: teacher.ID, status: attendance.StatusPresent},
		},
		{
			name: "already marked on this date", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     newAtt(b.ID, student.ID, "2026-08-03", attendance.StatusAbsent),
			wantData: marchallObj(t, httpErr{Error: "attendance is already marked for this student on this date"}),
		},
		{
			name: "admin marks too and the status is normalized", token: getToken(t, admin), wantCode: http.StatusCreated,
			body:  newAtt(b.ID, student.ID, "2026-08-04", " EXCUSED "),
			extra: extraTest{markedBy: admin.ID, status: attendance.StatusExcused},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/attendance"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if xtra, ok := tt.extra.(extraTest); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var a attendance.Attendance
				if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if a.ID == "" {
					t.Error("failed! empty attendance ID")
				}
				if a.Status != xtra.status {
					t.Errorf("failed! status = %v; want %v", a.Status, xtra.status)
				}
				if a.MarkedBy.String != xtra.markedBy {
					t.Errorf("failed! marked_by = %v; want %v", a.MarkedBy.String, xtra.markedBy)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_attendanceBulkMark(t *testing.T) {
	testutil.ResetDB(t, db)

	_, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	student2 := testutil.CreateUser(t, usrRepo, "Student Two", "student2", "student2@test.cd", "", []string{user.RoleStudent}, true)
	student3 := testutil.CreateUser(t, usrRepo, "Student Three", "student3", "student3@test.cd", "", []string{user.RoleStudent}, true)
	b := testutil.CreateBatch(t, batchRepo, "Physics 101", teacher.ID, 30, 1500, student.ID, student2.ID)

	teacherToken := getToken(t, teacher)

	bulk := func(batchID, date string, entries ...attendance.BulkMarkEntry) []byte {
		return marchallObj(t, attendance.BulkMark{BatchID: batchID, Date: date, Entries: entries})
	}

	type extraTest struct {
		success    bool
		numResults int
		errors     []attendance.BulkMarkError
	}
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Students not allowed", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", token: teacherToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"batch_id": reqMsg, "date": reqMsg, "entries": reqMsg}),
		},
		{
			name: "entries are validated", token: teacherToken, wantCode: http.StatusBadRequest,
			body:     bulk(b.ID, "2026-08-03", attendance.BulkMarkEntry{Status: "zzz"}),
			wantData: marchallObj(t, map[string]string{"student_id": reqMsg, "status": badStatusMsg}),
		},
		{
			name: "unknown batch", token: teacherToken, wantCode: http.StatusBadRequest,
			body: bulk("lol", "2026-08-03", attendance.BulkMarkEntry{StudentID: student.ID, Status: attendance.StatusPresent}),
			wantData: marchallObj(t, map[string]string{"batch_id": "batch not found"}),
		},
		{
			name: "other teacher denied", token: getToken(t, teacher2), wantCode: http.StatusForbidden,
			body: bulk(b.ID, "2026-08-03", attendance.BulkMarkEntry{StudentID: student.ID, Status: attendance.StatusPresent}),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "partial failure reports per entry", token: teacherToken, wantCode: http.StatusOK,
			body: bulk(b.ID, "2026-08-03",
				attendance.BulkMarkEntry{StudentID: student.ID, Status: attendance.StatusPresent},
				attendance.BulkMarkEntry{StudentID: student3.ID, Status: attendance.StatusAbsent},
			),
			extra: extraTest{
				success:    false,
				numResults: 1,
				errors:     []attendance.BulkMarkError{{StudentID: student3.ID, Error: "student is not enrolled in this batch"}},
			},
		},
		{
			name: "marking again upserts", token: teacherToken, wantCode: http.StatusOK,
			body: bulk(b.ID, "2026-08-03",
				attendance.BulkMarkEntry{StudentID: student.ID, Status: attendance.StatusAbsent},
				attendance.BulkMarkEntry{StudentID: student2.ID, Status: attendance.StatusLate},
			),
			extra: extraTest{success: true, numResults: 2, errors: []attendance.BulkMarkError{}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/attendance/mark"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if xtra, ok := tt.extra.(extraTest); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var res attendance.BulkMarkResult
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if res.Success != xtra.success {
					t.Errorf("failed! success = %v; want %v", res.Success, xtra.success)
				}
				if len(res.Results) != xtra.numResults {
					t.Errorf("failed! len(results) = %d; want %d", len(res.Results), xtra.numResults)
				}
				if len(res.Errors) != len(xtra.errors) {
					t.Fatalf("failed! errors = %v; want %v", res.Errors, xtra.errors)
				}
				for i, e := range xtra.errors {
					if res.Errors[i] != e {
						t.Errorf("failed! errors[%d] = %v; want %v", i, res.Errors[i], e)
					}
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	// the upsert replaced the first mark instead of stacking a second record
	recs, err := attRepo.QueryAttendance(context.Background(), &attendance.QueryFilter{BatchID: b.ID, StudentID: student.ID}, nil)
	if err != nil {
		t.Fatalf("QueryAttendance() failed, %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("failed! len(records) = %d; want 1", len(recs))
	}
	if recs[0].Status != attendance.StatusAbsent {
		t.Errorf("failed! status = %v; want %v", recs[0].Status, attendance.StatusAbsent)
	}
}

func Test_attendanceApi_attendanceQuery(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	student2 := testutil.CreateUser(t, usrRepo, "Student Two", "student2", "student2@test.cd", "", []string{user.RoleStudent}, true)

	b1 := testutil.CreateBatch(t, batchRepo, "Physics 101", teacher.ID, 30, 1500, student.ID, student2.ID)
	b2 := testutil.CreateBatch(t, batchRepo, "Chemistry 101", teacher2.ID, 30, 1000, student.ID)

	ctx := context.Background()
	mark := func(batchID, studentID, markerID string, date time.Time, status string) attendance.Attendance {
		a, err := attRepo.CreateAttendance(ctx, attendance.Attendance{
			BatchID:   batchID,
			StudentID: studentID,
			Date:      date,
			Status:    status,
			MarkedBy:  null.StringFrom(markerID),
		})
		if err != nil {
			t.Fatalf("CreateAttendance() failed, %v", err)
		}
		return a
	}
	d1 := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, time.August, 2, 0, 0, 0, 0, time.UTC)
	a1 := mark(b1.ID, student.ID, teacher.ID, d1, attendance.StatusPresent)
	a2 := mark(b1.ID, student.ID, teacher.ID, d2, attendance.StatusAbsent)
	a3 := mark(b1.ID, student2.ID, teacher.ID, d1, attendance.StatusPresent)
	a4 := mark(b2.ID, student.ID, teacher2.ID, d1, attendance.StatusLate)

	path := func(batchID, studentID, status string, from, to time.Time) string {
		v := make(url.Values)
		if batchID != "" {
			v.Add("batch_id", batchID)
		}
		if studentID != "" {
			v.Add("student_id", studentID)
		}
		if status != "" {
			v.Add("status", status)
		}
		if !from.IsZero() {
			v.Add("date_from", from.Format(time.RFC3339))
		}
		if !to.IsZero() {
			v.Add("date_to", to.Format(time.RFC3339))
		}
		return "/api/attendance?" + v.Encode()
	}

	adminToken := getToken(t, admin)
	none := time.Time{}

	tests := []httpTest{
		{name: "Auth required", path: "/api/attendance", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin gets all", path: "/api/attendance", token: adminToken, wantData: marchallList(t, a1, a2, a3, a4)},
		{name: "Teacher gets own batches", path: "/api/attendance", token: getToken(t, teacher), wantData: marchallList(t, a1, a2, a3)},
		{name: "Other teacher gets own batches", path: "/api/attendance", token: getToken(t, teacher2), wantData: marchallList(t, a4)},
		{name: "Student gets own records", path: "/api/attendance", token: getToken(t, student), wantData: marchallList(t, a1, a2, a4)},
		{name: "Other student gets own records", path: "/api/attendance", token: getToken(t, student2), wantData: marchallList(t, a3)},
		// filtering
		{name: "batch_id", path: path(b1.ID, "", "", none, none), token: adminToken, wantData: marchallList(t, a1, a2, a3)},
		{name: "batch_id - student_id", path: path(b1.ID, student.ID, "", none, none), token: adminToken, wantData: marchallList(t, a1, a2)},
		{name: "status", path: path("", "", attendance.StatusPresent, none, none), token: adminToken, wantData: marchallList(t, a1, a3)},
		{name: "date_from", path: path("", "", "", d2, none), token: adminToken, wantData: marchallList(t, a2)},
		{name: "date_to", path: path("", "", "", none, d1), token: adminToken, wantData: marchallList(t, a1, a3, a4)},
		{name: "date range", path: path("", "", "", d1, d1), token: adminToken, wantData: marchallList(t, a1, a3, a4)},
		{name: "teacher narrows to a student", path: path("", student.ID, "", none, none), token: getToken(t, teacher), wantData: marchallList(t, a1, a2)},
		{name: "student narrows to a batch", path: path(b2.ID, "", "", none, none), token: getToken(t, student), wantData: marchallList(t, a4)},
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

	// records of one batch, behind the batch's own view access
	batchTests := []httpTest{
		{
			name: "batch records: unknown batch", path: "/api/batches/lol/attendance", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "batch records: admin", path: "/api/batches/" + b1.ID + "/attendance", token: adminToken, wantData: marchallList(t, a1, a2, a3)},
		{name: "batch records: owning teacher", path: "/api/batches/" + b1.ID + "/attendance", token: getToken(t, teacher), wantData: marchallList(t, a1, a2, a3)},
		{
			name: "batch records: other teacher denied", path: "/api/batches/" + b1.ID + "/attendance", token: getToken(t, teacher2),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "batch records: enrolled student sees their own", path: "/api/batches/" + b1.ID + "/attendance", token: getToken(t, student), wantData: marchallList(t, a1, a2)},
		{name: "batch records: other enrolled student", path: "/api/batches/" + b1.ID + "/attendance", token: getToken(t, student2), wantData: marchallList(t, a3)},
	}
	for _, tt := range batchTests {
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

func Test_attendanceApi_attendanceDetail(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	b := testutil.CreateBatch(t, batchRepo, "Physics 101", teacher.ID, 30, 1500, student.ID)

	a, err := attRepo.CreateAttendance(context.Background(), attendance.Attendance{
		BatchID:   b.ID,
		StudentID: student.ID,
		Date:      time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC),
		Status:    attendance.StatusPresent,
		MarkedBy:  null.StringFrom(teacher.ID),
	})
	if err != nil {
		t.Fatalf("CreateAttendance() failed, %v", err)
	}

	teacherToken := getToken(t, teacher)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	sPtr := func(s string) *string { return &s }

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/api/attendance/" + a.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Unknown record", method: http.MethodGet, path: "/api/attendance/lol", token: getToken(t, admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "Marker reads", method: http.MethodGet, path: "/api/attendance/" + a.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, a)},
		{name: "Admin reads", method: http.MethodGet, path: "/api/attendance/" + a.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, a)},
		{
			name: "Other teacher denied", method: http.MethodGet, path: "/api/attendance/" + a.ID, token: getToken(t, teacher2),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "The student it belongs to is denied", method: http.MethodGet, path: "/api/attendance/" + a.ID, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Update is for the marker only", method: http.MethodPut, path: "/api/attendance/" + a.ID, token: getToken(t, teacher2),
			body: marchallObj(t, attendance.UpdateAttendance{Status: attendance.StatusExcused}),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "invalid status", method: http.MethodPut, path: "/api/attendance/" + a.ID, token: teacherToken,
			body:     marchallObj(t, attendance.UpdateAttendance{Status: "zzz"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": badStatusMsg}),
		},
		{
			name: "Delete is for the marker only", method: http.MethodDelete, path: "/api/attendance/" + a.ID, token: getToken(t, teacher2),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Marker updates the status and remark", func(t *testing.T) {
		body := marchallObj(t, attendance.UpdateAttendance{Status: attendance.StatusExcused, Remark: sPtr("doctor's note")})
		req, rec := newAuthRequest(http.MethodPut, "/api/attendance/"+a.ID, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var updated attendance.Attendance
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if updated.Status != attendance.StatusExcused {
			t.Errorf("failed! status = %v; want %v", updated.Status, attendance.StatusExcused)
		}
		if updated.Remark.String != "doctor's note" {
			t.Errorf("failed! remark = %v; want %v", updated.Remark.String, "doctor's note")
		}
	})

	t.Run("Marker deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/attendance/"+a.ID, teacherToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}
		if _, err := attRepo.GetAttendance(context.Background(), attendance.GetFilter{ID: a.ID}); err != attendance.ErrNotFound {
			t.Errorf("failed! err = %v; want %v", err, attendance.ErrNotFound)
		}
	})
}

func Test_attendanceApi_attendanceSummary(t *testing.T) {
	testutil.ResetDB(t, db)

	admin, teacher, student := createStaff(t)
	teacher2 := testutil.CreateUser(t, usrRepo, "Teacher Two", "teach2", "teacher2@test.cd", "", []string{user.RoleTeacher}, true)
	student2 := testutil.CreateUser(t, usrRepo, "Student Two", "student2", "student2@test.cd", "", []string{user.RoleStudent}, true)
	b := testutil.CreateBatch(t, batchRepo, "Physics 101", teacher.ID, 30, 1500, student.ID)

	ctx := context.Background()
	statuses := []string{attendance.StatusPresent, attendance.StatusPresent, attendance.StatusPresent, attendance.StatusAbsent}
	for i, status := range statuses {
		if _, err := attRepo.CreateAttendance(ctx, attendance.Attendance{
			BatchID:   b.ID,
			StudentID: student.ID,
			Date:      time.Date(2026, time.August, 1+i, 0, 0, 0, 0, time.UTC),
			Status:    status,
			MarkedBy:  null.StringFrom(teacher.ID),
		}); err != nil {
			t.Fatalf("CreateAttendance() failed, %v", err)
		}
	}

	summaryPath := "/api/attendance/summary/student/" + student.ID + "/batch/" + b.ID
	wantSummary := marchallObj(t, attendance.Summary{
		StudentID:  student.ID,
		BatchID:    b.ID,
		Total:      4,
		Counts:     map[string]int{attendance.StatusPresent: 3, attendance.StatusAbsent: 1},
		Percentage: 75,
	})

	tests := []httpTest{
		{name: "Auth required", path: summaryPath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Student reads their own", path: summaryPath, token: getToken(t, student), wantCode: http.StatusOK, wantData: wantSummary},
		{name: "Admin reads any", path: summaryPath, token: getToken(t, admin), wantCode: http.StatusOK, wantData: wantSummary},
		{name: "Owning teacher reads", path: summaryPath, token: getToken(t, teacher), wantCode: http.StatusOK, wantData: wantSummary},
		{
			name: "Other teacher denied", path: summaryPath, token: getToken(t, teacher2),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Other student denied", path: "/api/attendance/summary/student/" + student.ID + "/batch/" + b.ID, token: getToken(t, student2),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Unknown batch", path: "/api/attendance/summary/student/" + student.ID + "/batch/lol", token: getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Own summary of an unmarked batch is empty", path: "/api/attendance/summary/student/" + student.ID + "/batch/lol", token: getToken(t, student),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.Summary{StudentID: student.ID, BatchID: "lol", Counts: map[string]int{}}),
		},
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
