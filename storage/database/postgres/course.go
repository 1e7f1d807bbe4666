package pgrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/storage/database"
)

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{exec: exec}
}

func (repo courseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

const (
	courseCols = `id, title, description, created_by, status, visibility, pass_fraction, created_at, updated_at`
	taskCols   = `id, course_id, title, description, ord, type, deadline, max_score, is_active, created_at, updated_at`
)

// courseScopeCond translates an auth.CourseScope into a WHERE condition.
// Scope branches are ORed; None collapses to an empty result.
func courseScopeCond(scope auth.CourseScope, arg func(v interface{}) string) string {
	if scope.None {
		return "FALSE"
	}
	if scope.All {
		return ""
	}
	var ors []string
	if scope.CreatorID != "" {
		ors = append(ors, "created_by = "+arg(scope.CreatorID))
	}
	if scope.EnrolledUserID != "" {
		ors = append(ors, "id IN (SELECT course_id FROM enrollment WHERE user_id = "+arg(scope.EnrolledUserID)+")")
	}
	if scope.PublicPublished {
		ors = append(ors, "(status = 'PUBLISHED' AND visibility = 'PUBLIC')")
	}
	if len(ors) == 0 {
		return "FALSE"
	}
	return "(" + strings.Join(ors, " OR ") + ")"
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	query := `
INSERT INTO course (id, title, description, created_by, status, visibility, pass_fraction, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		crs.ID, crs.Title, crs.Description, crs.CreatedBy, crs.Status, crs.Visibility, crs.PassFraction, crs.CreatedAt, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, database.TrapError(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrNotFound
	}
	var rows []course.Course
	query := fmt.Sprintf(`SELECT %s FROM course WHERE id = $1`, courseCols)
	if err := selectCtx(ctx, repo.getExec(exec), &rows, query, id); err != nil {
		return course.Course{}, database.TrapError(err, "finding course")
	}
	if len(rows) == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return rows[0], nil
}

func (repo courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, int, error) {
	exe := repo.getExec(exec)

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if cond := courseScopeCond(filter.Scope, arg); cond != "" {
		conds = append(conds, cond)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		p := arg(val)
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "created_by = "+arg(filter.CreatedBy))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.Since.UTC()))
	}

	count, err := countCtx(ctx, exe, `SELECT COUNT(*) FROM course`+where(conds), args...)
	if err != nil {
		return nil, 0, database.TrapError(err, "counting courses")
	}
	pages, _ = pages.Clamp(count)

	query := fmt.Sprintf(`SELECT %s FROM course%s%s LIMIT %s OFFSET %s`,
		courseCols, where(conds), orderBy(ordering, newestFirst("created_at")), arg(pages.Limit()), arg(pages.Offset()))
	var courses []course.Course
	if err = selectCtx(ctx, exe, &courses, query, args...); err != nil {
		return nil, 0, database.TrapError(err, "querying courses")
	}
	return courses, count, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	query := `
UPDATE course
SET title = $2, description = $3, status = $4, visibility = $5, pass_fraction = $6, updated_at = $7
WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, query,
		crs.ID, crs.Title, crs.Description, crs.Status, crs.Visibility, crs.PassFraction, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, database.TrapError(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

// DeleteCourse removes the course and its ownership tree, derived state
// first. Meant to run inside a transaction.
func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	queries := []string{
		`DELETE FROM quiz_attempt WHERE task_id IN (SELECT id FROM task WHERE course_id = $1)`,
		`DELETE FROM task_progress WHERE task_id IN (SELECT id FROM task WHERE course_id = $1)`,
		`DELETE FROM submission WHERE task_id IN (SELECT id FROM task WHERE course_id = $1)`,
		`DELETE FROM quiz_option WHERE question_id IN (
			SELECT q.id FROM quiz_question q JOIN task t ON q.task_id = t.id WHERE t.course_id = $1)`,
		`DELETE FROM quiz_question WHERE task_id IN (SELECT id FROM task WHERE course_id = $1)`,
		`DELETE FROM task WHERE course_id = $1`,
		`DELETE FROM enrollment WHERE course_id = $1`,
		`DELETE FROM course WHERE id = $1`,
	}
	for _, query := range queries {
		if _, err := exe.ExecContext(ctx, query, id); err != nil {
			return database.TrapError(err, "deleting course")
		}
	}
	return nil
}

func (repo courseRepository) CreateTask(ctx context.Context, tsk course.Task, exec ...core.DBExecutor) (course.Task, error) {
	tsk.ID = uuid.New().String()
	query := `
INSERT INTO task (id, course_id, title, description, ord, type, deadline, max_score, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		tsk.ID, tsk.CourseID, tsk.Title, tsk.Description, tsk.Order, tsk.Type, tsk.Deadline, tsk.MaxScore, tsk.IsActive, tsk.CreatedAt, tsk.UpdatedAt)
	if err != nil {
		err = database.TrapError(err, "inserting task")
		if core.IsConflict(err) {
			return course.Task{}, course.ErrDuplicateOrder
		}
		return course.Task{}, err
	}
	return tsk, nil
}

func (repo courseRepository) GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (course.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Task{}, course.ErrTaskNotFound
	}
	var rows []course.Task
	query := fmt.Sprintf(`SELECT %s FROM task WHERE id = $1`, taskCols)
	if err := selectCtx(ctx, repo.getExec(exec), &rows, query, id); err != nil {
		return course.Task{}, database.TrapError(err, "finding task")
	}
	if len(rows) == 0 {
		return course.Task{}, course.ErrTaskNotFound
	}
	return rows[0], nil
}

func (repo courseRepository) ListCourseTasks(ctx context.Context, courseID string, withInactive bool, exec ...core.DBExecutor) ([]course.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM task WHERE course_id = $1`, taskCols)
	if !withInactive {
		query += ` AND is_active`
	}
	query += ` ORDER BY ord ASC`

	var tasks []course.Task
	if err := selectCtx(ctx, repo.getExec(exec), &tasks, query, courseID); err != nil {
		return nil, database.TrapError(err, "querying course tasks")
	}
	return tasks, nil
}

func (repo courseRepository) UpdateTask(ctx context.Context, tsk course.Task, exec ...core.DBExecutor) (course.Task, error) {
	query := `
UPDATE task
SET title = $2, description = $3, ord = $4, deadline = $5, max_score = $6, is_active = $7, updated_at = $8
WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, query,
		tsk.ID, tsk.Title, tsk.Description, tsk.Order, tsk.Deadline, tsk.MaxScore, tsk.IsActive, tsk.UpdatedAt)
	if err != nil {
		err = database.TrapError(err, "updating task")
		if core.IsConflict(err) {
			return course.Task{}, course.ErrDuplicateOrder
		}
		return course.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Task{}, course.ErrTaskNotFound
	}
	return tsk, nil
}

func (repo courseRepository) CreateQuiz(ctx context.Context, qz course.Quiz, exec ...core.DBExecutor) (course.Quiz, error) {
	exe := repo.getExec(exec)

	tsk, err := repo.CreateTask(ctx, qz.Task, exe)
	if err != nil {
		return course.Quiz{}, err
	}
	qz.Task = tsk

	for i := range qz.Questions {
		q := &qz.Questions[i]
		q.ID = uuid.New().String()
		q.TaskID = tsk.ID
		_, err = exe.ExecContext(ctx,
			`INSERT INTO quiz_question (id, task_id, prompt, position) VALUES ($1, $2, $3, $4)`,
			q.ID, q.TaskID, q.Prompt, q.Position)
		if err != nil {
			return course.Quiz{}, database.TrapError(err, "inserting quiz question")
		}
		for j := range q.Options {
			opt := &q.Options[j]
			opt.ID = uuid.New().String()
			opt.QuestionID = q.ID
			_, err = exe.ExecContext(ctx,
				`INSERT INTO quiz_option (id, question_id, text, position, is_correct) VALUES ($1, $2, $3, $4, $5)`,
				opt.ID, opt.QuestionID, opt.Text, opt.Position, opt.IsCorrect)
			if err != nil {
				return course.Quiz{}, database.TrapError(err, "inserting quiz option")
			}
		}
	}
	return qz, nil
}

func (repo courseRepository) GetQuiz(ctx context.Context, taskID string, exec ...core.DBExecutor) (course.Quiz, error) {
	exe := repo.getExec(exec)

	tsk, err := repo.GetTask(ctx, taskID, exe)
	if err != nil {
		return course.Quiz{}, err
	}
	if tsk.Type != course.TaskQuiz {
		return course.Quiz{}, course.ErrQuizNotFound
	}
	qz := course.Quiz{Task: tsk}

	var questions []course.Question
	err = selectCtx(ctx, exe, &questions,
		`SELECT id, task_id, prompt, position FROM quiz_question WHERE task_id = $1 ORDER BY position ASC`, taskID)
	if err != nil {
		return course.Quiz{}, database.TrapError(err, "querying quiz questions")
	}

	var options []course.Option
	err = selectCtx(ctx, exe, &options, `
SELECT o.id, o.question_id, o.text, o.position, o.is_correct
FROM quiz_option o
JOIN quiz_question q ON o.question_id = q.id
WHERE q.task_id = $1
ORDER BY q.position ASC, o.position ASC`, taskID)
	if err != nil {
		return course.Quiz{}, database.TrapError(err, "querying quiz options")
	}

	byQuestion := make(map[string][]course.Option, len(questions))
	for _, opt := range options {
		byQuestion[opt.QuestionID] = append(byQuestion[opt.QuestionID], opt)
	}
	for i := range questions {
		questions[i].Options = byQuestion[questions[i].ID]
	}
	qz.Questions = questions
	return qz, nil
}
