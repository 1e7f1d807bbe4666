package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

// inStudentScope mirrors the store-side scope translation; conditions AND.
// An empty scope, zero value included, admits nothing.
func (repo *progressRepository) inStudentScope(userID, taskCourseID string, scope auth.StudentDataScope) bool {
	if scope.Empty() {
		return false
	}
	if scope.UserID != "" && userID != scope.UserID {
		return false
	}
	if scope.CoursesOwnedBy != "" {
		crs, ok := repo.db.courses[taskCourseID]
		if !ok || crs.CreatedBy != scope.CoursesOwnedBy {
			return false
		}
	}
	return true
}

func (repo *progressRepository) taskCourseID(taskID string) string {
	if tsk, ok := repo.db.tasks[taskID]; ok {
		return tsk.CourseID
	}
	return ""
}

func (repo *progressRepository) GetEnrollment(_ context.Context, userID, courseID string, _ ...core.DBExecutor) (progress.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return enr, nil
		}
	}
	return progress.Enrollment{}, progress.ErrEnrollmentNotFound
}

func (repo *progressRepository) ListEnrollments(_ context.Context, filter progress.EnrollmentFilter, pages core.Pages, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]progress.Enrollment, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []progress.Enrollment
	for _, enr := range repo.db.enrollments {
		if !repo.inStudentScope(enr.UserID, enr.CourseID, filter.Scope) {
			continue
		}
		if filter.UserID != "" && enr.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != "" && enr.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && enr.Status != filter.Status {
			continue
		}
		enrs = append(enrs, enr)
	}

	sortEnrollments(enrs, ordering)

	count := len(enrs)
	lo, hi := pageBounds(pages, count)
	return enrs[lo:hi], count, nil
}

// sortEnrollments honors the requested ordering, newest first by default,
// with an id tie-break. Unknown fields are ignored.
func sortEnrollments(enrs []progress.Enrollment, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "enrolled_at"}}
	}
	sort.SliceStable(enrs, func(i, j int) bool {
		a, b := enrs[i], enrs[j]
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "enrolled_at":
				c = compareTimes(a.EnrolledAt, b.EnrolledAt)
			case "updated_at":
				c = compareTimes(a.UpdatedAt, b.UpdatedAt)
			case "progress":
				c = compareFloats(a.Progress, b.Progress)
			case "status":
				c = strings.Compare(a.Status, b.Status)
			}
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return a.ID < b.ID
	})
}

func (repo *progressRepository) UpsertEnrollment(_ context.Context, enr progress.Enrollment, _ ...core.DBExecutor) (progress.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return progress.Enrollment{}, err
	}
	for id, existing := range repo.db.enrollments {
		if existing.UserID == enr.UserID && existing.CourseID == enr.CourseID {
			existing.Status = enr.Status
			existing.Progress = enr.Progress
			existing.UpdatedAt = enr.UpdatedAt
			repo.db.enrollments[id] = existing
			return existing, nil
		}
	}
	enr.ID = uuid.New().String()
	repo.db.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *progressRepository) ListTaskProgress(_ context.Context, filter progress.TaskProgressFilter, _ ...core.DBExecutor) ([]progress.TaskProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var tps []progress.TaskProgress
	for _, tp := range repo.db.taskProgress {
		courseID := repo.taskCourseID(tp.TaskID)
		if !repo.inStudentScope(tp.UserID, courseID, filter.Scope) {
			continue
		}
		if filter.UserID != "" && tp.UserID != filter.UserID {
			continue
		}
		if filter.TaskID != "" && tp.TaskID != filter.TaskID {
			continue
		}
		if filter.CourseID != "" && courseID != filter.CourseID {
			continue
		}
		tps = append(tps, tp)
	}

	sort.SliceStable(tps, func(i, j int) bool {
		if !tps[i].UpdatedAt.Equal(tps[j].UpdatedAt) {
			return tps[i].UpdatedAt.After(tps[j].UpdatedAt)
		}
		return tps[i].ID < tps[j].ID
	})
	return tps, nil
}

func (repo *progressRepository) UpsertTaskProgress(_ context.Context, tp progress.TaskProgress, _ ...core.DBExecutor) (progress.TaskProgress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return progress.TaskProgress{}, err
	}
	for id, existing := range repo.db.taskProgress {
		if existing.UserID == tp.UserID && existing.TaskID == tp.TaskID {
			existing.State = tp.State
			existing.UpdatedAt = tp.UpdatedAt
			repo.db.taskProgress[id] = existing
			return existing, nil
		}
	}
	tp.ID = uuid.New().String()
	repo.db.taskProgress[tp.ID] = tp
	return tp, nil
}

func (repo *progressRepository) GetSubmission(_ context.Context, id string, _ ...core.DBExecutor) (progress.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return sub, nil
	}
	return progress.Submission{}, progress.ErrSubmissionNotFound
}

func (repo *progressRepository) ListSubmissions(_ context.Context, filter progress.SubmissionFilter, pages core.Pages, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]progress.Submission, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []progress.Submission
	for _, sub := range repo.db.submissions {
		courseID := repo.taskCourseID(sub.TaskID)
		if !repo.inStudentScope(sub.UserID, courseID, filter.Scope) {
			continue
		}
		if filter.UserID != "" && sub.UserID != filter.UserID {
			continue
		}
		if filter.TaskID != "" && sub.TaskID != filter.TaskID {
			continue
		}
		if filter.CourseID != "" && courseID != filter.CourseID {
			continue
		}
		if filter.UngradedOnly && sub.IsGraded {
			continue
		}
		if !filter.Since.IsZero() && sub.SubmittedAt.Before(filter.Since.UTC()) {
			continue
		}
		subs = append(subs, sub)
	}

	sortSubmissions(subs, ordering)

	count := len(subs)
	lo, hi := pageBounds(pages, count)
	return subs[lo:hi], count, nil
}

// sortSubmissions honors the requested ordering, newest first by default,
// with an id tie-break. Unknown fields are ignored.
func sortSubmissions(subs []progress.Submission, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "submitted_at"}}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := subs[i], subs[j]
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "submitted_at":
				c = compareTimes(a.SubmittedAt, b.SubmittedAt)
			case "updated_at":
				c = compareTimes(a.UpdatedAt, b.UpdatedAt)
			}
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return a.ID < b.ID
	})
}

func (repo *progressRepository) CreateSubmission(_ context.Context, sub progress.Submission, _ ...core.DBExecutor) (progress.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return progress.Submission{}, err
	}
	for _, existing := range repo.db.submissions {
		if existing.TaskID == sub.TaskID && existing.UserID == sub.UserID {
			return progress.Submission{}, progress.ErrAlreadySubmitted
		}
	}
	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = sub
	return sub, nil
}

func (repo *progressRepository) UpdateSubmission(_ context.Context, sub progress.Submission, _ ...core.DBExecutor) (progress.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return progress.Submission{}, err
	}
	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return progress.Submission{}, progress.ErrSubmissionNotFound
	}
	repo.db.submissions[sub.ID] = sub
	return sub, nil
}

func (repo *progressRepository) ListAttempts(_ context.Context, filter progress.AttemptFilter, _ ...core.DBExecutor) ([]progress.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var atts []progress.Attempt
	for _, att := range repo.db.attempts {
		courseID := repo.taskCourseID(att.TaskID)
		if !repo.inStudentScope(att.UserID, courseID, filter.Scope) {
			continue
		}
		if filter.UserID != "" && att.UserID != filter.UserID {
			continue
		}
		if filter.TaskID != "" && att.TaskID != filter.TaskID {
			continue
		}
		if filter.CourseID != "" && courseID != filter.CourseID {
			continue
		}
		atts = append(atts, att)
	}

	sort.SliceStable(atts, func(i, j int) bool {
		if !atts[i].CompletedAt.Equal(atts[j].CompletedAt) {
			return atts[i].CompletedAt.After(atts[j].CompletedAt)
		}
		return atts[i].ID < atts[j].ID
	})
	return atts, nil
}

func (repo *progressRepository) CreateAttempt(_ context.Context, att progress.Attempt, _ ...core.DBExecutor) (progress.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return progress.Attempt{}, err
	}
	att.ID = uuid.New().String()
	repo.db.attempts[att.ID] = att
	return att, nil
}

func (repo *progressRepository) CourseHasSubmissions(_ context.Context, courseID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.submissions {
		if repo.taskCourseID(sub.TaskID) == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *progressRepository) IsEnrolled(_ context.Context, userID, courseID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}
