package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/progress"
	testutil "github.com/trezcool/darasa/tests"
)

func TestEnrollmentFlow(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	student, token := env.student(t, "Jane Doe", "jane")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	read := testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	write := testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 2", 2, course.TaskText, 0)

	// enrolling requires a token
	body := marchallObj(t, progress.NewEnrollment{CourseID: crs.ID})
	req, rec := newRequest(http.MethodPost, "/api/v1/enrollments", body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous enroll code = %d; want 401", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodPost, "/api/v1/enrollments", token, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll code = %d; want 201: %s", rec.Code, rec.Body.String())
	}
	var enr progress.Enrollment
	if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if enr.Status != progress.EnrollmentActive || enr.Progress != 0 {
		t.Errorf("enrollment = %+v; want active at 0%%", enr)
	}

	completeTask := func(taskID string) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/task-progress/"+taskID+"/complete", token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("complete code = %d; want 201: %s", rec.Code, rec.Body.String())
		}
	}
	studentProgress := func() progress.CourseProgress {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/progress?course="+crs.ID, token)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("progress code = %d; want 200: %s", rec.Code, rec.Body.String())
		}
		var progs []progress.CourseProgress
		if err := json.Unmarshal(rec.Body.Bytes(), &progs); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(progs) != 1 {
			t.Fatalf("progress len = %d; want 1", len(progs))
		}
		return progs[0]
	}

	// half done
	completeTask(read.ID)
	if cp := studentProgress(); cp.PercentComplete != 50 || cp.Status != progress.EnrollmentActive {
		t.Errorf("progress = %+v; want 50%% active", cp)
	}

	// all done
	completeTask(write.ID)
	if cp := studentProgress(); cp.PercentComplete != 100 || cp.Status != progress.EnrollmentCompleted {
		t.Errorf("progress = %+v; want 100%% completed", cp)
	}
}

func TestEnrollmentListPaginationOverflow(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	student, token := env.student(t, "Jane Doe", "jane")
	for i := 0; i < 25; i++ {
		crs := testutil.CreateCourse(t, env.crsRepo, fmt.Sprintf("Course %02d", i), teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
		testutil.Enroll(t, env.progRepo, student.ID, crs.ID)
	}

	// a page beyond the last one resolves to the last page
	req, rec := newAuthRequest(http.MethodGet, "/api/v1/enrollments?page=9&page_size=10", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Count       int                   `json:"count"`
		TotalPages  int                   `json:"total_pages"`
		CurrentPage int                   `json:"current_page"`
		Next        *string               `json:"next"`
		Previous    *string               `json:"previous"`
		Results     []progress.Enrollment `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page.Count != 25 || page.TotalPages != 3 || page.CurrentPage != 3 {
		t.Errorf("page = {count %d, total %d, current %d}; want {25, 3, 3}", page.Count, page.TotalPages, page.CurrentPage)
	}
	if len(page.Results) != 5 {
		t.Errorf("results len = %d; want 5", len(page.Results))
	}
	if page.Next != nil {
		t.Error("last page must have no next")
	}
	if page.Previous == nil {
		t.Error("last page must have a previous")
	}
}

func TestSubmissionFlow(t *testing.T) {
	env := setup(t)
	teacher, teacherToken := env.instructor(t, "John Smith", "john")
	student, token := env.student(t, "Jane Doe", "jane")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	essay := testutil.CreateTask(t, env.crsRepo, crs.ID, "Essay", 1, course.TaskSubmission, 10)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	body := marchallObj(t, progress.NewSubmission{TaskID: essay.ID, Content: "my essay"})
	req, rec := newAuthRequest(http.MethodPost, "/api/v1/submissions", token, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit code = %d; want 201: %s", rec.Code, rec.Body.String())
	}
	var sub progress.Submission
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// duplicates conflict
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/submissions", token, body)
	env.app.ServeHTTP(rec, req)
	tt := httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: "a submission for this task already exists"}),
	}
	checkCodeAndData(t, tt, rec)

	// the owning instructor sees the ungraded queue
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/submissions?ungraded=true", teacherToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("queue code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Count   int                   `json:"count"`
		Results []progress.Submission `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page.Count != 1 {
		t.Errorf("queue count = %d; want 1", page.Count)
	}

	// students cannot grade
	gradeBody := marchallObj(t, progress.Grade{Score: 7})
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/grade", token, gradeBody)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student grade code = %d; want 403", rec.Code)
	}

	// a passing grade completes the single-task course
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/submissions/"+sub.ID+"/grade", teacherToken, gradeBody)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("grade code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var graded progress.Submission
	if err := json.Unmarshal(rec.Body.Bytes(), &graded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !graded.IsGraded || graded.Score.Int != 7 {
		t.Errorf("graded = %+v; want score 7", graded)
	}
	enr, err := env.progRepo.GetEnrollment(req.Context(), student.ID, crs.ID)
	if err != nil {
		t.Fatalf("GetEnrollment(): %v", err)
	}
	if enr.Progress != 100 || enr.Status != progress.EnrollmentCompleted {
		t.Errorf("enrollment = %+v; want 100%% completed", enr)
	}
}

func TestSubmissionRollbackThenRetry(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	student, token := env.student(t, "Jane Doe", "jane")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	essay := testutil.CreateTask(t, env.crsRepo, crs.ID, "Essay", 1, course.TaskSubmission, 10)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	// the insert lands, the follow-up write fails; the transaction rolls back
	env.db.FailAfterWrites(1, core.NewStoreUnavailableError("store blew up"))

	body := marchallObj(t, progress.NewSubmission{TaskID: essay.ID, Content: "my essay"})
	req, rec := newAuthRequest(http.MethodPost, "/api/v1/submissions", token, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d; want 503: %s", rec.Code, rec.Body.String())
	}

	// no phantom submission blocks the retry
	req, rec = newAuthRequest(http.MethodPost, "/api/v1/submissions", token, body)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("retry code = %d; want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestQuizAttemptFlow(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	student, token := env.student(t, "Jane Doe", "jane")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	qz := testutil.CreateQuiz(t, env.crsRepo, crs.ID, "Quiz 1", 1, 4)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	attempt := func(sels map[string]string) progress.Attempt {
		t.Helper()
		body := marchallObj(t, progress.NewAttempt{TaskID: qz.Task.ID, Selections: sels})
		req, rec := newAuthRequest(http.MethodPost, "/api/v1/quiz-attempts", token, body)
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt code = %d; want 201: %s", rec.Code, rec.Body.String())
		}
		var att progress.Attempt
		if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return att
	}

	att := attempt(testutil.WrongSelections(qz))
	if att.AttemptIndex != 1 || att.Score != 0 || att.Passed {
		t.Errorf("attempt 1 = %+v; want index 1, score 0, failed", att)
	}

	att = attempt(testutil.CorrectSelections(qz))
	if att.AttemptIndex != 2 || att.Score != 4 || !att.Passed {
		t.Errorf("attempt 2 = %+v; want index 2, score 4, passed", att)
	}

	// quiz performance reflects the best attempt
	req, rec := newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/quiz-performance?course="+crs.ID, token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("performance code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var perf []progress.QuizPerformance
	if err := json.Unmarshal(rec.Body.Bytes(), &perf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(perf) != 1 || perf[0].Attempts != 2 || perf[0].BestScore != 4 || !perf[0].Passed {
		t.Errorf("performance = %+v; want 2 attempts, best 4, passed", perf)
	}
}

func TestStudentActivityAndLeakPrevention(t *testing.T) {
	env := setup(t)
	teacher, _ := env.instructor(t, "John Smith", "john")
	student, token := env.student(t, "Jane Doe", "jane")
	_, otherToken := env.student(t, "Bob Roe", "bob")
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	read := testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	testutil.Enroll(t, env.progRepo, student.ID, crs.ID)

	req, rec := newAuthRequest(http.MethodPost, "/api/v1/task-progress/"+read.ID+"/complete", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("complete code = %d; want 201: %s", rec.Code, rec.Body.String())
	}

	// own timeline
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/activity", token)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity code = %d; want 200: %s", rec.Code, rec.Body.String())
	}
	var events []progress.ActivityEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(events) != 1 || events[0].Kind != progress.ActivityTaskProgress {
		t.Errorf("events = %+v; want one task-progress event", events)
	}

	// another student's timeline reads as absent
	tt := httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "enrollment not found"}),
	}
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/activity", otherToken)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)

	// same for their progress
	req, rec = newAuthRequest(http.MethodGet, "/api/v1/students/"+student.ID+"/progress", otherToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign progress code = %d; want 404: %s", rec.Code, rec.Body.String())
	}
}
