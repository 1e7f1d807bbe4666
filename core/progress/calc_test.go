package progress

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/course"
)

func textTask(id string, order int) course.Task {
	return course.Task{ID: id, CourseID: "c1", Title: "Read " + id, Order: order, Type: course.TaskText, IsActive: true}
}

func submissionTask(id string, order, maxScore int) course.Task {
	return course.Task{ID: id, CourseID: "c1", Title: "Essay " + id, Order: order, Type: course.TaskSubmission, MaxScore: maxScore, IsActive: true}
}

func quizTask(id string, order, maxScore int) course.Task {
	return course.Task{ID: id, CourseID: "c1", Title: "Quiz " + id, Order: order, Type: course.TaskQuiz, MaxScore: maxScore, IsActive: true}
}

func TestTaskCompleted(t *testing.T) {
	tests := []struct {
		name string
		tsk  course.Task
		data StudentCourseData
		want bool
	}{
		{
			"text without row",
			textTask("t1", 1),
			StudentCourseData{},
			false,
		},
		{
			"text in progress",
			textTask("t1", 1),
			StudentCourseData{TaskProgress: map[string]TaskProgress{"t1": {TaskID: "t1", State: StateInProgress}}},
			false,
		},
		{
			"text completed",
			textTask("t1", 1),
			StudentCourseData{TaskProgress: map[string]TaskProgress{"t1": {TaskID: "t1", State: StateCompleted}}},
			true,
		},
		{
			"submission missing",
			submissionTask("t2", 2, 10),
			StudentCourseData{},
			false,
		},
		{
			"submission ungraded",
			submissionTask("t2", 2, 10),
			StudentCourseData{Submissions: map[string]Submission{"t2": {TaskID: "t2"}}},
			false,
		},
		{
			"submission graded below passing",
			submissionTask("t2", 2, 10),
			StudentCourseData{Submissions: map[string]Submission{"t2": {TaskID: "t2", IsGraded: true, Score: null.IntFrom(4)}}},
			false,
		},
		{
			"submission graded at passing",
			submissionTask("t2", 2, 10),
			StudentCourseData{Submissions: map[string]Submission{"t2": {TaskID: "t2", IsGraded: true, Score: null.IntFrom(5)}}},
			true,
		},
		{
			"ungradeable submission completes on submit",
			submissionTask("t2", 2, 0),
			StudentCourseData{Submissions: map[string]Submission{"t2": {TaskID: "t2"}}},
			true,
		},
		{
			"quiz without attempts",
			quizTask("t3", 3, 4),
			StudentCourseData{},
			false,
		},
		{
			"quiz with failing attempts only",
			quizTask("t3", 3, 4),
			StudentCourseData{Attempts: map[string][]Attempt{"t3": {{TaskID: "t3", Score: 1}}}},
			false,
		},
		{
			"quiz with one passing attempt",
			quizTask("t3", 3, 4),
			StudentCourseData{Attempts: map[string][]Attempt{"t3": {{TaskID: "t3", Score: 1}, {TaskID: "t3", Score: 3, Passed: true}}}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TaskCompleted(tt.tsk, tt.data, 0.5); got != tt.want {
				t.Errorf("TaskCompleted() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestCoursePercentComplete(t *testing.T) {
	tasks := []course.Task{textTask("t1", 1), textTask("t2", 2)}
	data := StudentCourseData{
		TaskProgress: map[string]TaskProgress{"t1": {TaskID: "t1", State: StateCompleted}},
	}

	if got := CoursePercentComplete(tasks, data, 0.5); got != 50 {
		t.Errorf("one of two tasks done: got %v; want 50", got)
	}

	data.TaskProgress["t2"] = TaskProgress{TaskID: "t2", State: StateCompleted}
	if got := CoursePercentComplete(tasks, data, 0.5); got != 100 {
		t.Errorf("both tasks done: got %v; want 100", got)
	}

	// inactive tasks count in neither direction
	inactive := textTask("t3", 3)
	inactive.IsActive = false
	if got := CoursePercentComplete(append(tasks, inactive), data, 0.5); got != 100 {
		t.Errorf("inactive task must not dilute: got %v; want 100", got)
	}

	if got := CoursePercentComplete(nil, StudentCourseData{}, 0.5); got != 0 {
		t.Errorf("no tasks: got %v; want 0", got)
	}
}

func TestCourseStatusFor(t *testing.T) {
	if got := CourseStatusFor(Enrollment{Status: EnrollmentActive}, 100); got != EnrollmentCompleted {
		t.Errorf("100%% must read completed; got %q", got)
	}
	if got := CourseStatusFor(Enrollment{Status: EnrollmentDropped}, 40); got != EnrollmentDropped {
		t.Errorf("dropped stays dropped; got %q", got)
	}
	if got := CourseStatusFor(Enrollment{Status: EnrollmentActive}, 40); got != EnrollmentActive {
		t.Errorf("partial progress reads active; got %q", got)
	}
}

func TestComputeProgress(t *testing.T) {
	enr := Enrollment{UserID: "s1", CourseID: "c1", Status: EnrollmentActive}
	tasks := []course.Task{textTask("t1", 1), quizTask("t2", 2, 3)}
	data := StudentCourseData{
		TaskProgress: map[string]TaskProgress{"t1": {TaskID: "t1", State: StateCompleted}},
		Attempts:     map[string][]Attempt{"t2": {{TaskID: "t2", Score: 1}}},
	}

	cp := ComputeProgress(enr, tasks, data, 0.5)
	if cp.CourseID != "c1" {
		t.Errorf("CourseID = %q; want c1", cp.CourseID)
	}
	if cp.PercentComplete != 50 {
		t.Errorf("PercentComplete = %v; want 50", cp.PercentComplete)
	}
	if cp.Status != EnrollmentActive {
		t.Errorf("Status = %q; want %q", cp.Status, EnrollmentActive)
	}
	if len(cp.Tasks) != 2 {
		t.Fatalf("Tasks len = %d; want 2", len(cp.Tasks))
	}
	if !cp.Tasks[0].Completed || cp.Tasks[0].State != StateCompleted {
		t.Errorf("t1 = %+v; want completed", cp.Tasks[0])
	}
	if cp.Tasks[1].Completed || cp.Tasks[1].State != StateNotStarted {
		t.Errorf("t2 = %+v; want not_started", cp.Tasks[1])
	}
}

func TestBestAttempt(t *testing.T) {
	now := time.Now().UTC()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name     string
		attempts []Attempt
		wantIdx  int
	}{
		{
			"highest score wins",
			[]Attempt{
				{AttemptIndex: 1, Score: 2, CompletedAt: now},
				{AttemptIndex: 2, Score: 3, CompletedAt: earlier},
			},
			2,
		},
		{
			"score tie breaks on later completion",
			[]Attempt{
				{AttemptIndex: 1, Score: 3, CompletedAt: now},
				{AttemptIndex: 2, Score: 3, CompletedAt: earlier},
			},
			1,
		},
		{
			"full tie breaks on higher index",
			[]Attempt{
				{AttemptIndex: 1, Score: 3, CompletedAt: now},
				{AttemptIndex: 2, Score: 3, CompletedAt: now},
			},
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best := BestAttempt(tt.attempts)
			if best == nil {
				t.Fatal("BestAttempt() = nil")
			}
			if best.AttemptIndex != tt.wantIdx {
				t.Errorf("BestAttempt() index = %d; want %d", best.AttemptIndex, tt.wantIdx)
			}
		})
	}

	if BestAttempt(nil) != nil {
		t.Error("BestAttempt(nil) must be nil")
	}
}

func TestScoreAttempt(t *testing.T) {
	qz := course.Quiz{
		Task: course.Task{ID: "t1", Type: course.TaskQuiz, MaxScore: 3},
		Questions: []course.Question{
			{ID: "q1", Options: []course.Option{{ID: "q1a", IsCorrect: true}, {ID: "q1b"}}},
			{ID: "q2", Options: []course.Option{{ID: "q2a", IsCorrect: true}, {ID: "q2b"}}},
			{ID: "q3", Options: []course.Option{{ID: "q3a", IsCorrect: true}, {ID: "q3b"}}},
		},
	}

	tests := []struct {
		name       string
		selections map[string]string
		wantScore  int
		wantPassed bool
	}{
		{"all correct", map[string]string{"q1": "q1a", "q2": "q2a", "q3": "q3a"}, 3, true},
		{"two of three passes at half", map[string]string{"q1": "q1a", "q2": "q2a", "q3": "q3b"}, 2, true},
		{"one of three fails", map[string]string{"q1": "q1a", "q2": "q2b", "q3": "q3b"}, 1, false},
		{"unanswered questions score zero", map[string]string{"q1": "q1a"}, 1, false},
		{"unknown question ids ignored", map[string]string{"q9": "q1a"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, passed := ScoreAttempt(qz, tt.selections, 0.5)
			if score != tt.wantScore || passed != tt.wantPassed {
				t.Errorf("ScoreAttempt() = (%d, %v); want (%d, %v)", score, passed, tt.wantScore, tt.wantPassed)
			}
		})
	}
}

func TestComputeQuizPerformance(t *testing.T) {
	now := time.Now().UTC()
	tasks := []course.Task{
		textTask("t1", 1),
		quizTask("t2", 2, 4),
		quizTask("t3", 3, 4),
	}
	attempts := map[string][]Attempt{
		"t2": {
			{TaskID: "t2", AttemptIndex: 1, Score: 1, CompletedAt: now.Add(-time.Hour)},
			{TaskID: "t2", AttemptIndex: 2, Score: 3, Passed: true, CompletedAt: now},
		},
	}

	perf := ComputeQuizPerformance(tasks, attempts)
	if len(perf) != 2 {
		t.Fatalf("len = %d; want 2 (text task excluded, empty quiz included)", len(perf))
	}
	if perf[0].TaskID != "t2" || perf[0].Attempts != 2 || perf[0].BestScore != 3 || !perf[0].Passed {
		t.Errorf("t2 = %+v; want 2 attempts, best 3, passed", perf[0])
	}
	if perf[0].BestFraction != 0.75 {
		t.Errorf("t2 BestFraction = %v; want 0.75", perf[0].BestFraction)
	}
	if perf[1].TaskID != "t3" || perf[1].Attempts != 0 || perf[1].Passed {
		t.Errorf("t3 = %+v; want zero attempts", perf[1])
	}
}

func TestMergeActivity(t *testing.T) {
	now := time.Now().UTC()
	subs := []ActivityEvent{
		{Kind: ActivitySubmission, TaskID: "t1", OccurredAt: now.Add(-2 * time.Hour)},
		{Kind: ActivitySubmission, TaskID: "t2", OccurredAt: now},
	}
	atts := []ActivityEvent{
		{Kind: ActivityQuizAttempt, TaskID: "t3", OccurredAt: now.Add(-time.Hour)},
	}

	merged := MergeActivity(0, subs, atts)
	if len(merged) != 3 {
		t.Fatalf("len = %d; want 3", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].OccurredAt.After(merged[i-1].OccurredAt) {
			t.Fatalf("timeline not newest-first: %v before %v", merged[i-1].OccurredAt, merged[i].OccurredAt)
		}
	}
	if merged[0].TaskID != "t2" || merged[1].TaskID != "t3" || merged[2].TaskID != "t1" {
		t.Errorf("order = [%s %s %s]; want [t2 t3 t1]", merged[0].TaskID, merged[1].TaskID, merged[2].TaskID)
	}

	if got := MergeActivity(2, subs, atts); len(got) != 2 {
		t.Errorf("limit 2: len = %d; want 2", len(got))
	}

	many := make([]ActivityEvent, DefaultActivityLimit+5)
	for i := range many {
		many[i] = ActivityEvent{Kind: ActivityTaskProgress, OccurredAt: now.Add(time.Duration(-i) * time.Minute)}
	}
	if got := MergeActivity(0, many); len(got) != DefaultActivityLimit {
		t.Errorf("default limit: len = %d; want %d", len(got), DefaultActivityLimit)
	}
}
