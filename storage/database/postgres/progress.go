package pgrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/storage/database"
)

type progressRepository struct {
	exec core.DBExecutor
}

// interface compliance checks
var (
	_ progress.Repository = (*progressRepository)(nil)
)

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{exec: exec}
}

func (repo progressRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

const (
	enrollmentCols   = `id, user_id, course_id, status, progress, enrolled_at, updated_at`
	taskProgressCols = `id, user_id, task_id, state, updated_at`
	submissionCols   = `id, task_id, user_id, content, submitted_at, score, graded_by, is_graded, updated_at`
	attemptCols      = `id, user_id, task_id, attempt_index, selections, score, passed, completed_at`

	ownedCoursesSub = `SELECT id FROM course WHERE created_by = %s`
	ownedTasksSub   = `SELECT t.id FROM task t JOIN course c ON t.course_id = c.id WHERE c.created_by = %s`
	courseTasksSub  = `SELECT id FROM task WHERE course_id = %s`
)

// studentScopeConds translates an auth.StudentDataScope into WHERE conditions
// for a table with a user_id column and the given course linkage. Conditions
// are ANDed; an empty scope, zero value included, collapses to an empty
// result.
func studentScopeConds(scope auth.StudentDataScope, courseLink string, arg func(v interface{}) string) []string {
	if scope.Empty() {
		return []string{"FALSE"}
	}
	var conds []string
	if scope.UserID != "" {
		conds = append(conds, "user_id = "+arg(scope.UserID))
	}
	if scope.CoursesOwnedBy != "" {
		conds = append(conds, fmt.Sprintf(courseLink, arg(scope.CoursesOwnedBy)))
	}
	return conds
}

func (repo progressRepository) GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (progress.Enrollment, error) {
	var rows []progress.Enrollment
	query := fmt.Sprintf(`SELECT %s FROM enrollment WHERE user_id = $1 AND course_id = $2`, enrollmentCols)
	if err := selectCtx(ctx, repo.getExec(exec), &rows, query, userID, courseID); err != nil {
		return progress.Enrollment{}, database.TrapError(err, "finding enrollment")
	}
	if len(rows) == 0 {
		return progress.Enrollment{}, progress.ErrEnrollmentNotFound
	}
	return rows[0], nil
}

func (repo progressRepository) ListEnrollments(ctx context.Context, filter progress.EnrollmentFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]progress.Enrollment, int, error) {
	exe := repo.getExec(exec)

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, studentScopeConds(filter.Scope, "course_id IN ("+ownedCoursesSub+")", arg)...)
	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.CourseID != "" {
		conds = append(conds, "course_id = "+arg(filter.CourseID))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}

	count, err := countCtx(ctx, exe, `SELECT COUNT(*) FROM enrollment`+where(conds), args...)
	if err != nil {
		return nil, 0, database.TrapError(err, "counting enrollments")
	}
	pages, _ = pages.Clamp(count)

	query := fmt.Sprintf(`SELECT %s FROM enrollment%s%s LIMIT %s OFFSET %s`,
		enrollmentCols, where(conds), orderBy(ordering, newestFirst("enrolled_at")), arg(pages.Limit()), arg(pages.Offset()))
	var enrs []progress.Enrollment
	if err = selectCtx(ctx, exe, &enrs, query, args...); err != nil {
		return nil, 0, database.TrapError(err, "querying enrollments")
	}
	return enrs, count, nil
}

// UpsertEnrollment inserts or refreshes the (user, course) enrollment; the
// original id and enrolled_at survive a conflict.
func (repo progressRepository) UpsertEnrollment(ctx context.Context, enr progress.Enrollment, exec ...core.DBExecutor) (progress.Enrollment, error) {
	if enr.ID == "" {
		enr.ID = uuid.New().String()
	}
	query := fmt.Sprintf(`
INSERT INTO enrollment (id, user_id, course_id, status, progress, enrolled_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, course_id)
DO UPDATE SET status = EXCLUDED.status, progress = EXCLUDED.progress, updated_at = EXCLUDED.updated_at
RETURNING %s`, enrollmentCols)

	var rows []progress.Enrollment
	err := selectCtx(ctx, repo.getExec(exec), &rows, query,
		enr.ID, enr.UserID, enr.CourseID, enr.Status, enr.Progress, enr.EnrolledAt, enr.UpdatedAt)
	if err != nil {
		return progress.Enrollment{}, database.TrapError(err, "upserting enrollment")
	}
	if len(rows) == 0 {
		return progress.Enrollment{}, errors.New("upserting enrollment: no row returned")
	}
	return rows[0], nil
}

func (repo progressRepository) ListTaskProgress(ctx context.Context, filter progress.TaskProgressFilter, exec ...core.DBExecutor) ([]progress.TaskProgress, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, studentScopeConds(filter.Scope, "task_id IN ("+ownedTasksSub+")", arg)...)
	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.TaskID != "" {
		conds = append(conds, "task_id = "+arg(filter.TaskID))
	}
	if filter.CourseID != "" {
		conds = append(conds, "task_id IN ("+fmt.Sprintf(courseTasksSub, arg(filter.CourseID))+")")
	}

	query := fmt.Sprintf(`SELECT %s FROM task_progress%s ORDER BY updated_at DESC, id ASC`, taskProgressCols, where(conds))
	var tps []progress.TaskProgress
	if err := selectCtx(ctx, repo.getExec(exec), &tps, query, args...); err != nil {
		return nil, database.TrapError(err, "querying task progress")
	}
	return tps, nil
}

func (repo progressRepository) UpsertTaskProgress(ctx context.Context, tp progress.TaskProgress, exec ...core.DBExecutor) (progress.TaskProgress, error) {
	if tp.ID == "" {
		tp.ID = uuid.New().String()
	}
	query := fmt.Sprintf(`
INSERT INTO task_progress (id, user_id, task_id, state, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, task_id)
DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
RETURNING %s`, taskProgressCols)

	var rows []progress.TaskProgress
	err := selectCtx(ctx, repo.getExec(exec), &rows, query, tp.ID, tp.UserID, tp.TaskID, tp.State, tp.UpdatedAt)
	if err != nil {
		return progress.TaskProgress{}, database.TrapError(err, "upserting task progress")
	}
	if len(rows) == 0 {
		return progress.TaskProgress{}, errors.New("upserting task progress: no row returned")
	}
	return rows[0], nil
}

func (repo progressRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (progress.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return progress.Submission{}, progress.ErrSubmissionNotFound
	}
	var rows []progress.Submission
	query := fmt.Sprintf(`SELECT %s FROM submission WHERE id = $1`, submissionCols)
	if err := selectCtx(ctx, repo.getExec(exec), &rows, query, id); err != nil {
		return progress.Submission{}, database.TrapError(err, "finding submission")
	}
	if len(rows) == 0 {
		return progress.Submission{}, progress.ErrSubmissionNotFound
	}
	return rows[0], nil
}

func (repo progressRepository) ListSubmissions(ctx context.Context, filter progress.SubmissionFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]progress.Submission, int, error) {
	exe := repo.getExec(exec)

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, studentScopeConds(filter.Scope, "task_id IN ("+ownedTasksSub+")", arg)...)
	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.TaskID != "" {
		conds = append(conds, "task_id = "+arg(filter.TaskID))
	}
	if filter.CourseID != "" {
		conds = append(conds, "task_id IN ("+fmt.Sprintf(courseTasksSub, arg(filter.CourseID))+")")
	}
	if filter.UngradedOnly {
		conds = append(conds, "NOT is_graded")
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "submitted_at >= "+arg(filter.Since.UTC()))
	}

	count, err := countCtx(ctx, exe, `SELECT COUNT(*) FROM submission`+where(conds), args...)
	if err != nil {
		return nil, 0, database.TrapError(err, "counting submissions")
	}
	pages, _ = pages.Clamp(count)

	query := fmt.Sprintf(`SELECT %s FROM submission%s%s LIMIT %s OFFSET %s`,
		submissionCols, where(conds), orderBy(ordering, newestFirst("submitted_at")), arg(pages.Limit()), arg(pages.Offset()))
	var subs []progress.Submission
	if err = selectCtx(ctx, exe, &subs, query, args...); err != nil {
		return nil, 0, database.TrapError(err, "querying submissions")
	}
	return subs, count, nil
}

func (repo progressRepository) CreateSubmission(ctx context.Context, sub progress.Submission, exec ...core.DBExecutor) (progress.Submission, error) {
	sub.ID = uuid.New().String()
	query := `
INSERT INTO submission (id, task_id, user_id, content, submitted_at, score, graded_by, is_graded, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		sub.ID, sub.TaskID, sub.UserID, sub.Content, sub.SubmittedAt, sub.Score, sub.GradedBy, sub.IsGraded, sub.UpdatedAt)
	if err != nil {
		err = database.TrapError(err, "inserting submission")
		if core.IsConflict(err) {
			return progress.Submission{}, progress.ErrAlreadySubmitted
		}
		return progress.Submission{}, err
	}
	return sub, nil
}

func (repo progressRepository) UpdateSubmission(ctx context.Context, sub progress.Submission, exec ...core.DBExecutor) (progress.Submission, error) {
	query := `
UPDATE submission
SET content = $2, score = $3, graded_by = $4, is_graded = $5, updated_at = $6
WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, query,
		sub.ID, sub.Content, sub.Score, sub.GradedBy, sub.IsGraded, sub.UpdatedAt)
	if err != nil {
		return progress.Submission{}, database.TrapError(err, "updating submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.Submission{}, progress.ErrSubmissionNotFound
	}
	return sub, nil
}

// attemptRow mirrors quiz_attempt; selections is raw jsonb.
type attemptRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	TaskID       string    `db:"task_id"`
	AttemptIndex int       `db:"attempt_index"`
	Selections   []byte    `db:"selections"`
	Score        int       `db:"score"`
	Passed       bool      `db:"passed"`
	CompletedAt  time.Time `db:"completed_at"`
}

func (r attemptRow) toAttempt() (progress.Attempt, error) {
	att := progress.Attempt{
		ID:           r.ID,
		UserID:       r.UserID,
		TaskID:       r.TaskID,
		AttemptIndex: r.AttemptIndex,
		Score:        r.Score,
		Passed:       r.Passed,
		CompletedAt:  r.CompletedAt,
	}
	if len(r.Selections) > 0 {
		if err := json.Unmarshal(r.Selections, &att.Selections); err != nil {
			return att, errors.Wrap(err, "decoding attempt selections")
		}
	}
	return att, nil
}

func (repo progressRepository) ListAttempts(ctx context.Context, filter progress.AttemptFilter, exec ...core.DBExecutor) ([]progress.Attempt, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, studentScopeConds(filter.Scope, "task_id IN ("+ownedTasksSub+")", arg)...)
	if filter.UserID != "" {
		conds = append(conds, "user_id = "+arg(filter.UserID))
	}
	if filter.TaskID != "" {
		conds = append(conds, "task_id = "+arg(filter.TaskID))
	}
	if filter.CourseID != "" {
		conds = append(conds, "task_id IN ("+fmt.Sprintf(courseTasksSub, arg(filter.CourseID))+")")
	}

	query := fmt.Sprintf(`SELECT %s FROM quiz_attempt%s ORDER BY completed_at DESC, id ASC`, attemptCols, where(conds))
	var rows []attemptRow
	if err := selectCtx(ctx, repo.getExec(exec), &rows, query, args...); err != nil {
		return nil, database.TrapError(err, "querying quiz attempts")
	}

	atts := make([]progress.Attempt, 0, len(rows))
	for _, r := range rows {
		att, err := r.toAttempt()
		if err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}
	return atts, nil
}

func (repo progressRepository) CreateAttempt(ctx context.Context, att progress.Attempt, exec ...core.DBExecutor) (progress.Attempt, error) {
	att.ID = uuid.New().String()
	selections, err := json.Marshal(att.Selections)
	if err != nil {
		return progress.Attempt{}, errors.Wrap(err, "encoding attempt selections")
	}

	query := `
INSERT INTO quiz_attempt (id, user_id, task_id, attempt_index, selections, score, passed, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = repo.getExec(exec).ExecContext(ctx, query,
		att.ID, att.UserID, att.TaskID, att.AttemptIndex, selections, att.Score, att.Passed, att.CompletedAt)
	if err != nil {
		return progress.Attempt{}, database.TrapError(err, "inserting quiz attempt")
	}
	return att, nil
}

func (repo progressRepository) CourseHasSubmissions(ctx context.Context, courseID string, exec ...core.DBExecutor) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM submission WHERE task_id IN (SELECT id FROM task WHERE course_id = $1))`
	exists, err := existsCtx(ctx, repo.getExec(exec), query, courseID)
	return exists, database.TrapError(err, "checking course submissions")
}

func (repo progressRepository) IsEnrolled(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM enrollment WHERE user_id = $1 AND course_id = $2)`
	exists, err := existsCtx(ctx, repo.getExec(exec), query, userID, courseID)
	return exists, database.TrapError(err, "checking enrollment")
}
