package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return course.Course{}, err
	}
	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

// inCourseScope mirrors the store-side scope translation.
func inCourseScope(crs course.Course, scope auth.CourseScope, enrolled func(courseID string) bool) bool {
	if scope.None {
		return false
	}
	if scope.All {
		return true
	}
	if scope.CreatorID != "" && crs.CreatedBy == scope.CreatorID {
		return true
	}
	if scope.EnrolledUserID != "" && enrolled(crs.ID) {
		return true
	}
	if scope.PublicPublished && crs.IsPublished() && crs.IsPublic() {
		return true
	}
	return false
}

func (repo *courseRepository) FilterCourses(_ context.Context, filter course.QueryFilter, pages core.Pages, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrolled := func(courseID string) bool {
		for _, enr := range repo.db.enrollments {
			if enr.CourseID == courseID && enr.UserID == filter.Scope.EnrolledUserID {
				return true
			}
		}
		return false
	}

	var courses []course.Course
	for _, crs := range repo.db.courses {
		if !inCourseScope(crs, filter.Scope, enrolled) {
			continue
		}
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(crs.Title), s) &&
				!strings.Contains(strings.ToLower(crs.Description), s) {
				continue
			}
		}
		if filter.Status != "" && crs.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && crs.CreatedBy != filter.CreatedBy {
			continue
		}
		if !filter.Since.IsZero() && crs.CreatedAt.Before(filter.Since.UTC()) {
			continue
		}
		courses = append(courses, crs)
	}

	sortCourses(courses, ordering)

	count := len(courses)
	lo, hi := pageBounds(pages, count)
	return courses[lo:hi], count, nil
}

// sortCourses honors the requested ordering, newest first by default, with an
// id tie-break. Unknown fields are ignored.
func sortCourses(courses []course.Course, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "created_at":
				c = compareTimes(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				c = compareTimes(a.UpdatedAt, b.UpdatedAt)
			case "title":
				c = strings.Compare(a.Title, b.Title)
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

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return course.Course{}, err
	}
	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return err
	}
	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}

	// ownership tree walk, derived state first
	for tid, tsk := range repo.db.tasks {
		if tsk.CourseID != id {
			continue
		}
		for aid, att := range repo.db.attempts {
			if att.TaskID == tid {
				delete(repo.db.attempts, aid)
			}
		}
		for pid, tp := range repo.db.taskProgress {
			if tp.TaskID == tid {
				delete(repo.db.taskProgress, pid)
			}
		}
		for sid, sub := range repo.db.submissions {
			if sub.TaskID == tid {
				delete(repo.db.submissions, sid)
			}
		}
		for qid, q := range repo.db.questions {
			if q.TaskID == tid {
				delete(repo.db.questions, qid)
			}
		}
		delete(repo.db.tasks, tid)
	}
	for eid, enr := range repo.db.enrollments {
		if enr.CourseID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) CreateTask(_ context.Context, tsk course.Task, _ ...core.DBExecutor) (course.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return course.Task{}, err
	}
	for _, existing := range repo.db.tasks {
		if existing.CourseID == tsk.CourseID && existing.Order == tsk.Order {
			return course.Task{}, course.ErrDuplicateOrder
		}
	}
	tsk.ID = uuid.New().String()
	repo.db.tasks[tsk.ID] = tsk
	return tsk, nil
}

func (repo *courseRepository) GetTask(_ context.Context, id string, _ ...core.DBExecutor) (course.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tsk, ok := repo.db.tasks[id]; ok {
		return tsk, nil
	}
	return course.Task{}, course.ErrTaskNotFound
}

func (repo *courseRepository) ListCourseTasks(_ context.Context, courseID string, withInactive bool, _ ...core.DBExecutor) ([]course.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var tasks []course.Task
	for _, tsk := range repo.db.tasks {
		if tsk.CourseID != courseID {
			continue
		}
		if !withInactive && !tsk.IsActive {
			continue
		}
		tasks = append(tasks, tsk)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

func (repo *courseRepository) UpdateTask(_ context.Context, tsk course.Task, _ ...core.DBExecutor) (course.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.writeGate(); err != nil {
		return course.Task{}, err
	}
	if _, ok := repo.db.tasks[tsk.ID]; !ok {
		return course.Task{}, course.ErrTaskNotFound
	}
	for _, existing := range repo.db.tasks {
		if existing.ID != tsk.ID && existing.CourseID == tsk.CourseID && existing.Order == tsk.Order {
			return course.Task{}, course.ErrDuplicateOrder
		}
	}
	repo.db.tasks[tsk.ID] = tsk
	return tsk, nil
}

func (repo *courseRepository) CreateQuiz(ctx context.Context, qz course.Quiz, exec ...core.DBExecutor) (course.Quiz, error) {
	tsk, err := repo.CreateTask(ctx, qz.Task, exec...)
	if err != nil {
		return course.Quiz{}, err
	}
	qz.Task = tsk

	repo.db.Lock()
	defer repo.db.Unlock()
	if err = repo.db.writeGate(); err != nil {
		return course.Quiz{}, err
	}
	for i := range qz.Questions {
		q := &qz.Questions[i]
		q.ID = uuid.New().String()
		q.TaskID = tsk.ID
		for j := range q.Options {
			q.Options[j].ID = uuid.New().String()
			q.Options[j].QuestionID = q.ID
		}
		repo.db.questions[q.ID] = *q
	}
	return qz, nil
}

func (repo *courseRepository) GetQuiz(_ context.Context, taskID string, _ ...core.DBExecutor) (course.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tsk, ok := repo.db.tasks[taskID]
	if !ok {
		return course.Quiz{}, course.ErrTaskNotFound
	}
	if tsk.Type != course.TaskQuiz {
		return course.Quiz{}, course.ErrQuizNotFound
	}

	qz := course.Quiz{Task: tsk}
	for _, q := range repo.db.questions {
		if q.TaskID == taskID {
			qz.Questions = append(qz.Questions, q)
		}
	}
	sort.Slice(qz.Questions, func(i, j int) bool { return qz.Questions[i].Position < qz.Questions[j].Position })
	return qz, nil
}
