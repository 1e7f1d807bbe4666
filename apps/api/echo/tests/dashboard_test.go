package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/progress"
	testutil "github.com/trezcool/darasa/tests"
)

func TestStudentDashboardEndpoint(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	student, token := env.student(t, "Jane Doe", "jane")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	req, rec := newAuthRequest(http.MethodGet, "/api/v1/dashboard", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var db dashboard.StudentDashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &db); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if db.UserInfo.ID != student.ID || db.UserInfo.Username != "jane" {
		t.Errorf("user info = %+v; want jane's", db.UserInfo)
	}
	if len(db.Courses) != 1 {
		t.Fatalf("courses len = %d; want 1", len(db.Courses))
	}
	got := db.Courses[0]
	if got.CourseTitle != "Algebra I" || got.EnrollmentStatus != progress.EnrollmentActive || got.Progress != 0 {
		t.Errorf("course = %+v; want Algebra I active at 0%%", got)
	}
	want := dashboard.StudentTotals{TotalCourses: 1, CompletedCourses: 0, InProgressCourses: 1}
	if db.Progress != want {
		t.Errorf("totals = %+v; want %+v", db.Progress, want)
	}

	// dashboards require authentication
	req, rec = newRequest(http.MethodGet, "/api/v1/dashboard")
	env.app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
	checkCodeAndData(t, tt, rec)
}

func TestInstructorDashboardEndpoint(t *testing.T) {
	env := setup(t)
	teacher, teacherToken := env.instructor(t, "John Smith", "john")
	student, studentToken := env.student(t, "Jane Doe", "jane")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	essay := testutil.CreateTask(t, env.crsRepo, crs.ID, "Essay", 1, course.TaskSubmission, 10)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	body := marchallObj(t, progress.NewSubmission{TaskID: essay.ID, Content: "my essay"})
	req, rec := newAuthRequest(http.MethodPost, "/api/v1/submissions", studentToken, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit code = %d; want 201: %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/api/v1/dashboard", teacherToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var db dashboard.InstructorDashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &db); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(db.Courses) != 1 || db.Courses[0].StudentCount != 1 || db.Courses[0].PendingGradingCount != 1 {
		t.Errorf("courses = %+v; want 1 student with 1 pending grade", db.Courses)
	}
	if len(db.RecentSubmissionsNeedingGrading) != 1 {
		t.Errorf("grading queue len = %d; want 1", len(db.RecentSubmissionsNeedingGrading))
	}
}

func TestAdminDashboardEndpoint(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	student, _ := env.student(t, "Jane Doe", "jane")
	_, adminToken := env.admin(t, "Root", "root")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	req, rec := newAuthRequest(http.MethodGet, "/api/v1/dashboard", adminToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var db dashboard.AdminDashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &db); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := dashboard.PlatformTotals{Users: 3, Courses: 1, ActiveEnrollments: 1, SubmissionsLast7d: 0}
	if db.PlatformTotals != want {
		t.Errorf("totals = %+v; want %+v", db.PlatformTotals, want)
	}
}

func TestStudentDashboardByID(t *testing.T) {
	env := setup(t)
	student, token := env.student(t, "Jane Doe", "jane")
	_, otherToken := env.student(t, "Bob Roe", "bob")
	_, adminToken := env.admin(t, "Root", "root")

	// self
	req, rec := newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/dashboard", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("self code = %d; want 200: %s", rec.Code, rec.Body.String())
	}

	// admin
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/dashboard", adminToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin code = %d; want 200: %s", rec.Code, rec.Body.String())
	}

	// another student gets not-found, not forbidden
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/dashboard", otherToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign code = %d; want 404: %s", rec.Code, rec.Body.String())
	}
}
