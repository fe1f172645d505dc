package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/kazi/core/user"
	testutil "github.com/trezcool/kazi/tests"
)

func Test_teacherApi_query(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	hod := testutil.CreateUser(t, usrRepo, "Mama Bola", "bola@test.cd", "", user.RoleHOD, true)
	teacher := testutil.CreateUser(t, usrRepo, "Awe Kaka", "awe@test.cd", "", user.RoleTeacher, true)

	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users/teachers", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Teachers cannot list", path: "/api/users/teachers", token: getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Get all", path: "/api/users/teachers", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, hod, teacher),
		},
		{
			name: "HOD can list", path: "/api/users/teachers", token: getToken(t, hod), wantCode: http.StatusOK,
			wantData: marchallList(t, hod, teacher),
		},
		{
			name: "exclude_hod", path: "/api/users/teachers?exclude_hod=true", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, teacher),
		},
		{
			name: "exclude_hod (hod)", path: "/api/users/teachers?exclude_hod=true", token: getToken(t, hod),
			wantCode: http.StatusOK, wantData: marchallList(t, teacher),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_teacherApi_create(t *testing.T) {
	app := setup(t)
	path := "/api/users/teachers"

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	hod := testutil.CreateUser(t, usrRepo, "Mama Bola", "bola@test.cd", "", user.RoleHOD, true)
	adminToken := getToken(t, admin)

	body := func(name, email string, isHOD bool) []byte {
		return marchallObj(t, map[string]interface{}{
			"name":             name,
			"email":            email,
			"password":         "LolC@t123",
			"password_confirm": "LolC@t123",
			"is_hod":           isHOD,
		})
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, hod), body: body("Awe Kaka", "awe@test.cd", false),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Teacher created", token: adminToken, body: body("Awe Kaka", "awe@test.cd", false), wantCode: http.StatusCreated},
		{
			name: "Second HOD conflicts", token: adminToken, body: body("King Mobb", "king@test.cd", true),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: fmt.Sprintf("an HOD is already assigned: %s <%s>", hod.Name, hod.Email)}),
		},
		{
			name: "duplicate email", token: adminToken, body: body("Awe Kaka II", "awe@test.cd", false),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if usr.Role != user.RoleTeacher {
					t.Errorf("Role = %v, want %v", usr.Role, user.RoleTeacher)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_teacherApi_retrieve(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Awe Kaka", "awe@test.cd", "", user.RoleTeacher, true)
	adminToken := getToken(t, admin)

	path := func(id interface{}) string { return fmt.Sprintf("/api/users/teachers/%v", id) }

	tests := []httpTest{
		{name: "Auth required", path: path(teacher.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Found", path: path(teacher.ID), token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, teacher)},
		{
			name: "Unknown ID", path: path(666), token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{name: "Garbage ID", path: path("lol"), token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			name: "Admins are not teachers", path: path(admin.ID), token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_teacherApi_update(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	hod := testutil.CreateUser(t, usrRepo, "Mama Bola", "bola@test.cd", "", user.RoleHOD, true)
	teacher := testutil.CreateUser(t, usrRepo, "Awe Kaka", "awe@test.cd", "", user.RoleTeacher, true)
	adminToken := getToken(t, admin)

	path := func(id int) string { return fmt.Sprintf("/api/users/teachers/%d", id) }

	tests := []httpTest{
		{
			name: "Auth required", path: path(teacher.ID), body: marchallObj(t, map[string]string{"name": "New Name"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Promotion conflicts with sitting HOD", path: path(teacher.ID), token: adminToken,
			body: marchallObj(t, map[string]interface{}{"is_hod": true}), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: fmt.Sprintf("an HOD is already assigned: %s <%s>", hod.Name, hod.Email)}),
		},
		{
			name: "Renamed", path: path(teacher.ID), token: adminToken,
			body: marchallObj(t, map[string]string{"name": "Awe Kaka Jr"}), wantCode: http.StatusOK,
		},
		{
			name: "Unknown ID", path: path(666), token: adminToken,
			body: marchallObj(t, map[string]string{"name": "New Name"}), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPut, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.name == "Renamed" {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal() failed: %v", err)
				}
				if usr.Name != "Awe Kaka Jr" || usr.Email != teacher.Email {
					t.Errorf("unexpected user: %+v", usr)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_teacherApi_destroy(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)
	hod := testutil.CreateUser(t, usrRepo, "Mama Bola", "bola@test.cd", "", user.RoleHOD, true)
	teacher := testutil.CreateUser(t, usrRepo, "Awe Kaka", "awe@test.cd", "", user.RoleTeacher, true)
	assigned := testutil.CreateUser(t, usrRepo, "King Mobb", "king@test.cd", "", user.RoleTeacher, true)
	testutil.CreateTask(t, taskRepo, "Grade exams", hod, assigned)

	adminToken := getToken(t, admin)
	path := func(id int) string { return fmt.Sprintf("/api/users/teachers/%d", id) }

	tests := []httpTest{
		{name: "Auth required", path: path(teacher.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: path(teacher.ID), token: getToken(t, hod),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Assigned teacher cannot be deleted", path: path(assigned.ID), token: adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "cannot delete a teacher with 1 assigned task(s); reassign or delete the tasks first"}),
		},
		{name: "Deleted", path: path(teacher.ID), token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "Unknown ID", path: path(666), token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodDelete, tt.path, tt.token)
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
