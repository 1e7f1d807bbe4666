package progress

import (
	"sort"

	"github.com/trezcool/darasa/core/course"
)

// Pure calculator over already-fetched data. Deterministic and idempotent:
// the same inputs always yield the same outputs, regardless of caller.

// DefaultActivityLimit bounds a merged activity timeline.
const DefaultActivityLimit = 10

// StudentCourseData is one student's stored rows for one course, keyed by
// task id, as fetched from a single committed snapshot.
type StudentCourseData struct {
	TaskProgress map[string]TaskProgress
	Submissions  map[string]Submission
	Attempts     map[string][]Attempt
}

// CourseProgress is the calculator's full output for one (user, course) pair.
type CourseProgress struct {
	CourseID        string       `json:"course_id"`
	PercentComplete float64      `json:"percent_complete"`
	Status          string       `json:"status"`
	Tasks           []TaskStatus `json:"tasks"`
}

// TaskStatus is the per-task slice of CourseProgress.
type TaskStatus struct {
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Order     int    `json:"order"`
	Completed bool   `json:"completed"`
	State     string `json:"state"`
}

// QuizPerformance summarizes a student's attempts on one quiz.
type QuizPerformance struct {
	TaskID       string  `json:"task_id"`
	QuizTitle    string  `json:"quiz_title"`
	Attempts     int     `json:"attempts"`
	BestScore    int     `json:"best_score"`
	BestFraction float64 `json:"best_fraction"`
	Passed       bool    `json:"passed"`
}

// PassingScore is the minimum submission score that counts as passing.
func PassingScore(passFraction float64, maxScore int) float64 {
	return passFraction * float64(maxScore)
}

// TaskCompleted reports whether a task counts as completed for the student:
// a text task on an explicit completed state, a submission task on a
// submission that is ungradeable (max_score=0) or graded at or above the
// passing score, a quiz task on any passing attempt.
func TaskCompleted(tsk course.Task, data StudentCourseData, passFraction float64) bool {
	switch tsk.Type {
	case course.TaskText:
		tp, ok := data.TaskProgress[tsk.ID]
		return ok && tp.State == StateCompleted
	case course.TaskSubmission:
		sub, ok := data.Submissions[tsk.ID]
		if !ok {
			return false
		}
		if tsk.MaxScore == 0 {
			return true
		}
		return sub.IsGraded && float64(sub.Score.Int) >= PassingScore(passFraction, tsk.MaxScore)
	case course.TaskQuiz:
		for _, att := range data.Attempts[tsk.ID] {
			if att.Passed {
				return true
			}
		}
		return false
	}
	return false
}

// CoursePercentComplete is the share of active tasks completed, in [0,100].
// Inactive tasks count in neither numerator nor denominator.
func CoursePercentComplete(tasks []course.Task, data StudentCourseData, passFraction float64) float64 {
	var active, completed int
	for _, tsk := range tasks {
		if !tsk.IsActive {
			continue
		}
		active++
		if TaskCompleted(tsk, data, passFraction) {
			completed++
		}
	}
	if active == 0 {
		return 0
	}
	return 100 * float64(completed) / float64(active)
}

// CourseStatusFor derives the enrollment status to report: completed at 100%,
// dropped as recorded, active otherwise.
func CourseStatusFor(enr Enrollment, percent float64) string {
	switch {
	case percent >= 100:
		return EnrollmentCompleted
	case enr.Status == EnrollmentDropped:
		return EnrollmentDropped
	default:
		return EnrollmentActive
	}
}

// ComputeProgress assembles the full CourseProgress for one student from a
// single snapshot, tasks in course order.
func ComputeProgress(enr Enrollment, tasks []course.Task, data StudentCourseData, passFraction float64) CourseProgress {
	cp := CourseProgress{CourseID: enr.CourseID}
	for _, tsk := range tasks {
		if !tsk.IsActive {
			continue
		}
		state := StateNotStarted
		if tp, ok := data.TaskProgress[tsk.ID]; ok {
			state = tp.State
		}
		done := TaskCompleted(tsk, data, passFraction)
		if done {
			state = StateCompleted
		}
		cp.Tasks = append(cp.Tasks, TaskStatus{
			TaskID:    tsk.ID,
			Title:     tsk.Title,
			Type:      tsk.Type,
			Order:     tsk.Order,
			Completed: done,
			State:     state,
		})
	}
	cp.PercentComplete = CoursePercentComplete(tasks, data, passFraction)
	cp.Status = CourseStatusFor(enr, cp.PercentComplete)
	return cp
}

// BestAttempt picks the attempt with the highest score; ties break by later
// completed_at, then higher attempt_index. Nil when there are no attempts.
func BestAttempt(attempts []Attempt) *Attempt {
	var best *Attempt
	for i := range attempts {
		att := &attempts[i]
		if best == nil {
			best = att
			continue
		}
		switch {
		case att.Score > best.Score:
			best = att
		case att.Score == best.Score && att.CompletedAt.After(best.CompletedAt):
			best = att
		case att.Score == best.Score && att.CompletedAt.Equal(best.CompletedAt) && att.AttemptIndex > best.AttemptIndex:
			best = att
		}
	}
	return best
}

// ScoreAttempt grades a set of selections against the quiz: one point per
// question whose selected option is the correct one. Passed iff
// score/#questions ≥ passFraction.
func ScoreAttempt(qz course.Quiz, selections map[string]string, passFraction float64) (score int, passed bool) {
	for i := range qz.Questions {
		q := &qz.Questions[i]
		correct := q.CorrectOption()
		if correct == nil {
			continue
		}
		if selections[q.ID] == correct.ID {
			score++
		}
	}
	if n := len(qz.Questions); n > 0 {
		passed = float64(score)/float64(n) >= passFraction
	}
	return score, passed
}

// ComputeQuizPerformance summarizes a student's attempts per quiz task,
// quizzes in course order. Quizzes without attempts are included with zero
// attempts.
func ComputeQuizPerformance(tasks []course.Task, attempts map[string][]Attempt) []QuizPerformance {
	var perf []QuizPerformance
	for _, tsk := range tasks {
		if tsk.Type != course.TaskQuiz || !tsk.IsActive {
			continue
		}
		qp := QuizPerformance{TaskID: tsk.ID, QuizTitle: tsk.Title}
		atts := attempts[tsk.ID]
		qp.Attempts = len(atts)
		if best := BestAttempt(atts); best != nil {
			qp.BestScore = best.Score
			if tsk.MaxScore > 0 {
				qp.BestFraction = float64(best.Score) / float64(tsk.MaxScore)
			}
			for _, att := range atts {
				if att.Passed {
					qp.Passed = true
					break
				}
			}
		}
		perf = append(perf, qp)
	}
	return perf
}

// MergeActivity merges event slices into one timeline, newest first,
// truncated to limit (DefaultActivityLimit when limit ≤ 0). The sort is
// stable with an id-free tie-break on task id for determinism.
func MergeActivity(limit int, events ...[]ActivityEvent) []ActivityEvent {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	var merged []ActivityEvent
	for _, evts := range events {
		merged = append(merged, evts...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].OccurredAt.Equal(merged[j].OccurredAt) {
			return merged[i].OccurredAt.After(merged[j].OccurredAt)
		}
		return merged[i].TaskID < merged[j].TaskID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
