package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/dashboard"
	testutil "github.com/trezcool/darasa/tests"
)

func TestCoursePublicListing(t *testing.T) {
	env := setup(t)
	teacher, teacherToken := env.instructor(t, "John Smith", "john")
	testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	testutil.CreateCourse(t, env.crsRepo, "Hidden Draft", teacher.ID, course.StatusDraft, course.VisibilityPrivate, 0.5)

	decode := func(rec []byte) (page struct {
		Count   int             `json:"count"`
		Results []course.Course `json:"results"`
	}) {
		t.Helper()
		if err := json.Unmarshal(rec, &page); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return page
	}

	// anonymous callers see public published courses only
	req, rec := newRequest(http.MethodGet, "/api/v1/courses")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	page := decode(rec.Body.Bytes())
	if page.Count != 1 || page.Results[0].Title != "Algebra I" {
		t.Errorf("anonymous page = %+v; want Algebra I only", page)
	}

	// the owner also sees their draft
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/courses", teacherToken)
	env.app.ServeHTTP(rec, req)
	if page = decode(rec.Body.Bytes()); page.Count != 2 {
		t.Errorf("owner count = %d; want 2", page.Count)
	}
}

func TestCourseCreateAndTasks(t *testing.T) {
	env := setup(t)
	_, teacherToken := env.instructor(t, "John Smith", "john")
	_, studentToken := env.student(t, "Jane Doe", "jane")

	// students cannot create courses
	body := marchallObj(t, course.NewCourse{Title: "Nope"})
	req, rec := newAuthRequest(http.MethodPost, "/api/v1/courses", studentToken, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student create code = %d; want 403: %s", rec.Code, rec.Body.String())
	}

	body = marchallObj(t, course.NewCourse{Title: "Algebra I", Description: "numbers"})
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/courses", teacherToken, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %d; want 201: %s", rec.Code, rec.Body.String())
	}
	var crs course.Course
	if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if crs.Status != course.StatusDraft || crs.PassFraction != 0.5 {
		t.Errorf("course = %+v; want draft with default pass fraction", crs)
	}

	// add a task
	body = marchallObj(t, course.NewTask{Title: "Read chapter 1", Order: 1, Type: course.TaskText})
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/courses/"+crs.ID+"/tasks", teacherToken, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add task code = %d; want 201: %s", rec.Code, rec.Body.String())
	}

	// duplicate order conflicts
	body = marchallObj(t, course.NewTask{Title: "Clash", Order: 1, Type: course.TaskText})
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/courses/"+crs.ID+"/tasks", teacherToken, body)
	env.app.ServeHTTP(rec, req)
	tt := httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "a task with this order already exists in the course"}),
	}
	checkCodeAndData(t, tt, rec)

	// add a quiz; max score equals the question count
	quizBody := marchallObj(t, course.NewQuiz{
		Task: course.NewQuizTask{Title: "Quiz 1", Order: 2},
		Questions: []course.NewQuestion{
			{Prompt: "2+2?", Options: []course.NewOption{{Text: "4", IsCorrect: true}, {Text: "5"}}},
		},
	})
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/courses/"+crs.ID+"/quizzes", teacherToken, quizBody)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add quiz code = %d; want 201: %s", rec.Code, rec.Body.String())
	}
	var qz course.Quiz
	if err := json.Unmarshal(rec.Body.Bytes(), &qz); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if qz.Task.MaxScore != 1 || len(qz.Questions) != 1 {
		t.Errorf("quiz = %+v; want max score 1", qz)
	}

	// a draft course stays invisible to others
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/courses/"+crs.ID, studentToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("student retrieve draft code = %d; want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestCourseAnalyticsLeakPrevention(t *testing.T) {
	env := setup(t)
	teacher, teacherToken := env.instructor(t, "John Smith", "john")
	_, rivalToken := env.instructor(t, "Rival Roe", "rival")
	student, _ := env.student(t, "Jane Doe", "jane")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	// the owner reads their analytics
	req, rec := newAuthRequest(http.MethodGet, "/api/v1/courses/"+crs.ID+"/analytics", teacherToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner analytics code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var ca dashboard.CourseAnalytics
	if err := json.Unmarshal(rec.Body.Bytes(), &ca); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ca.StudentCount != 1 {
		t.Errorf("analytics = %+v; want 1 student", ca)
	}

	// a rival instructor cannot even learn the course exists
	tt := httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "course not found"}),
	}
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/courses/"+crs.ID+"/analytics", rivalToken)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)

	// same for per-task analytics
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/courses/"+crs.ID+"/task-analytics", rivalToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("rival task-analytics code = %d; want 404", rec.Code)
	}
}

func TestTaskVisibility(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	open := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	read := testutil.CreateTask(t, env.crsRepo, open.ID, "Read chapter 1", 1, course.TaskText, 0)
	hidden := testutil.CreateCourse(t, env.crsRepo, "Secret", teacher.ID, course.StatusDraft, course.VisibilityPrivate, 0.5)
	secret := testutil.CreateTask(t, env.crsRepo, hidden.ID, "Secret task", 1, course.TaskText, 0)

	// anonymous task listing for a public course
	req, rec := newRequest(http.MethodGet, "/api/v1/courses/"+open.ID+"/tasks")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("tasks code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var tasks []course.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != read.ID {
		t.Errorf("tasks = %+v; want the public read task", tasks)
	}

	// a task of an invisible course reads as absent
	req, rec = newRequest(http.MethodGet, "/api/v1/tasks/"+secret.ID)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("secret task code = %d; want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestCourseListingOrdering(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	older := time.Now().UTC().Add(-time.Hour)
	testutil.CreateCourse(t, env.crsRepo, "Zoology", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5, older)
	testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)

	firstTitle := func(target string) string {
		t.Helper()
		req, rec := newRequest(http.MethodGet, target)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s code = %d; want 200: %s", target, rec.Code, rec.Body.String())
		}
		var page struct {
			Results []course.Course `json:"results"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(page.Results) != 2 {
			t.Fatalf("GET %s results = %d; want 2", target, len(page.Results))
		}
		return page.Results[0].Title
	}

	if got := firstTitle("/api/v1/courses"); got != "Algebra I" {
		t.Errorf("default order starts with %q; want the newest course", got)
	}
	if got := firstTitle("/api/v1/courses?ordering=-title"); got != "Zoology" {
		t.Errorf("ordering=-title starts with %q; want Zoology", got)
	}
	if got := firstTitle("/api/v1/courses?ordering=title"); got != "Algebra I" {
		t.Errorf("ordering=title starts with %q; want Algebra I", got)
	}

	// unknown fields are dropped: the default order applies, never an error
	if got := firstTitle("/api/v1/courses?ordering=password_hash"); got != "Algebra I" {
		t.Errorf("unknown ordering starts with %q; want the default order", got)
	}
}
