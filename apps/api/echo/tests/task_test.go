package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/kazi/core/task"
	"github.com/trezcool/kazi/core/user"
	testutil "github.com/trezcool/kazi/tests"
)

type taskFixtures struct {
	admin        user.User
	hod          user.User
	teacher      user.User
	otherTeacher user.User
}

func setupTaskUsers(t *testing.T) taskFixtures {
	t.Helper()

	return taskFixtures{
		admin:        testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true),
		hod:          testutil.CreateUser(t, usrRepo, "Mama Bola", "bola@test.cd", "", user.RoleHOD, true),
		teacher:      testutil.CreateUser(t, usrRepo, "Awe Kaka", "awe@test.cd", "", user.RoleTeacher, true),
		otherTeacher: testutil.CreateUser(t, usrRepo, "King Mobb", "king@test.cd", "", user.RoleTeacher, true),
	}
}

func taskPath(id interface{}) string { return fmt.Sprintf("/api/tasks/%v", id) }

func Test_taskApi_create(t *testing.T) {
	app := setup(t)
	fx := setupTaskUsers(t)
	path := "/api/tasks"

	body := func(title string, assignedToID int) []byte {
		return marchallObj(t, map[string]interface{}{"title": title, "description": "Term 2", "assigned_to_id": assignedToID})
	}

	tests := []httpTest{
		{name: "Auth required", body: body("Grade exams", fx.teacher.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin cannot create", token: getToken(t, fx.admin), body: body("Grade exams", fx.teacher.ID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the HOD can create tasks"}),
		},
		{
			name: "Teacher cannot create", token: getToken(t, fx.teacher), body: body("Grade exams", fx.teacher.ID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the HOD can create tasks"}),
		},
		{
			name: "required fields", token: getToken(t, fx.hod), body: marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required", "assigned_to_id": "this field is required"}),
		},
		{
			name: "Unknown assignee", token: getToken(t, fx.hod), body: body("Grade exams", 666),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assigned teacher not found"}),
		},
		{
			name: "Admin is not assignable", token: getToken(t, fx.hod), body: body("Grade exams", fx.admin.ID),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assigned teacher not found"}),
		},
		{name: "Created", token: getToken(t, fx.hod), body: body("Grade exams", fx.teacher.ID), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				var tsk task.Task
				if err := json.Unmarshal(rec.Body.Bytes(), &tsk); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if tsk.Status != task.StatusPending {
					t.Errorf("Status = %v, want %v", tsk.Status, task.StatusPending)
				}
				if tsk.CreatedByID != fx.hod.ID || tsk.AssignedToID != fx.teacher.ID {
					t.Errorf("unexpected task: %+v", tsk)
				}
				if len(tsk.StatusUpdates) != 1 || tsk.StatusUpdates[0].Comment != "Task created" {
					t.Errorf("unexpected ledger: %+v", tsk.StatusUpdates)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_taskApi_query(t *testing.T) {
	app := setup(t)
	fx := setupTaskUsers(t)

	t1 := testutil.CreateTask(t, taskRepo, "Grade exams", fx.hod, fx.teacher)
	t2 := testutil.CreateTask(t, taskRepo, "Prepare syllabus", fx.hod, fx.otherTeacher)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin sees all", token: getToken(t, fx.admin), wantCode: http.StatusOK, wantData: marchallList(t, t2, t1)},
		{name: "HOD sees all", token: getToken(t, fx.hod), wantCode: http.StatusOK, wantData: marchallList(t, t2, t1)},
		{name: "Teacher sees assigned only", token: getToken(t, fx.teacher), wantCode: http.StatusOK, wantData: marchallList(t, t1)},
		{name: "Other teacher sees assigned only", token: getToken(t, fx.otherTeacher), wantCode: http.StatusOK, wantData: marchallList(t, t2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/api/tasks", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_taskApi_retrieve(t *testing.T) {
	app := setup(t)
	fx := setupTaskUsers(t)

	tsk := testutil.CreateTask(t, taskRepo, "Grade exams", fx.hod, fx.teacher)

	tests := []httpTest{
		{name: "Auth required", path: taskPath(tsk.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Visible to admin", path: taskPath(tsk.ID), token: getToken(t, fx.admin), wantCode: http.StatusOK, wantData: marchallObj(t, tsk)},
		{name: "Visible to hod", path: taskPath(tsk.ID), token: getToken(t, fx.hod), wantCode: http.StatusOK, wantData: marchallObj(t, tsk)},
		{name: "Visible to assignee", path: taskPath(tsk.ID), token: getToken(t, fx.teacher), wantCode: http.StatusOK, wantData: marchallObj(t, tsk)},
		{
			name: "Hidden from other teachers", path: taskPath(tsk.ID), token: getToken(t, fx.otherTeacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "task not found"}),
		},
		{
			name: "Unknown ID", path: taskPath(666), token: getToken(t, fx.admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "task not found"}),
		},
		{name: "Garbage ID", path: taskPath("lol"), token: getToken(t, fx.admin), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_taskApi_update(t *testing.T) {
	app := setup(t)
	fx := setupTaskUsers(t)

	tsk := testutil.CreateTask(t, taskRepo, "Grade exams", fx.hod, fx.teacher)

	tests := []httpTest{
		{
			name: "Auth required", body: marchallObj(t, map[string]string{"title": "New"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Assignee cannot update fields", token: getToken(t, fx.teacher), body: marchallObj(t, map[string]string{"title": "Hack"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you can only update tasks you created"}),
		},
		{
			name: "Blank title rejected", token: getToken(t, fx.hod), body: marchallObj(t, map[string]string{"title": "  "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field cannot be blank"}),
		},
		{
			name: "Reassigned", token: getToken(t, fx.hod),
			body: marchallObj(t, map[string]interface{}{"assigned_to_id": fx.otherTeacher.ID}), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, taskPath(tsk.ID), tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.name == "Reassigned" {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				var got task.Task
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if got.AssignedToID != fx.otherTeacher.ID {
					t.Errorf("AssignedToID = %v, want %v", got.AssignedToID, fx.otherTeacher.ID)
				}
				if len(got.StatusUpdates) != 2 || got.StatusUpdates[0].Comment != "Task reassigned to King Mobb" {
					t.Errorf("unexpected ledger: %+v", got.StatusUpdates)
				}
				if got.StatusUpdates[0].Status != task.StatusPending {
					t.Errorf("reassignment entry status = %v, want %v", got.StatusUpdates[0].Status, task.StatusPending)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_taskApi_updateStatus(t *testing.T) {
	app := setup(t)
	fx := setupTaskUsers(t)

	tsk := testutil.CreateTask(t, taskRepo, "Grade exams", fx.hod, fx.teacher)
	path := taskPath(tsk.ID) + "/status"

	body := func(status task.Status, comment string) []byte {
		return marchallObj(t, map[string]interface{}{"status": status, "comment": comment})
	}

	tests := []httpTest{
		{name: "Auth required", body: body(task.StatusInProgress, ""), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Other teacher cannot update status", token: getToken(t, fx.otherTeacher), body: body(task.StatusInProgress, ""),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you can only update tasks assigned to you"}),
		},
		{
			name: "Admin cannot update status", token: getToken(t, fx.admin), body: body(task.StatusInProgress, ""),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you can only update tasks assigned to you"}),
		},
		{
			name: "Invalid status", token: getToken(t, fx.teacher), body: marchallObj(t, map[string]string{"status": "DONE"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "a valid status is required"}),
		},
		{name: "Assignee starts", token: getToken(t, fx.teacher), body: body(task.StatusInProgress, "Started"), wantCode: http.StatusOK},
		{name: "HOD completes", token: getToken(t, fx.hod), body: body(task.StatusCompleted, "Looks good"), wantCode: http.StatusOK},
	}
	var lastLedgerLen int
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				var got task.Task
				if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				// the head of the ledger always mirrors the task's status
				if len(got.StatusUpdates) == 0 || got.StatusUpdates[0].Status != got.Status {
					t.Errorf("ledger head does not mirror status: %+v", got.StatusUpdates)
				}
				if len(got.StatusUpdates) <= lastLedgerLen {
					t.Errorf("ledger did not grow: %v -> %v", lastLedgerLen, len(got.StatusUpdates))
				}
				lastLedgerLen = len(got.StatusUpdates)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_taskApi_destroy(t *testing.T) {
	app := setup(t)
	fx := setupTaskUsers(t)

	tsk := testutil.CreateTask(t, taskRepo, "Grade exams", fx.hod, fx.teacher)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Assignee cannot delete", token: getToken(t, fx.teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you can only delete tasks you created"}),
		},
		{
			name: "Admin cannot delete", token: getToken(t, fx.admin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you can only delete tasks you created"}),
		},
		{name: "Creator deletes", token: getToken(t, fx.hod), wantCode: http.StatusNoContent},
		{
			name: "Gone", token: getToken(t, fx.hod),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "task not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, taskPath(tsk.ID), tt.token)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusNoContent {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
