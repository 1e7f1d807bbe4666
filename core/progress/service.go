package progress

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrAlreadySubmitted   = core.NewConflictError("a submission for this task already exists")
	ErrForbidden          = core.NewForbiddenError("permission denied")
)

type (
	Repository interface {
		GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Enrollment, error)
		// ListEnrollments applies AND on available filter fields, within the
		// filter's scope, and returns the page plus the total match count.
		ListEnrollments(ctx context.Context, filter EnrollmentFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Enrollment, int, error)
		UpsertEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)

		ListTaskProgress(ctx context.Context, filter TaskProgressFilter, exec ...core.DBExecutor) ([]TaskProgress, error)
		UpsertTaskProgress(ctx context.Context, tp TaskProgress, exec ...core.DBExecutor) (TaskProgress, error)

		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		ListSubmissions(ctx context.Context, filter SubmissionFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Submission, int, error)
		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)

		ListAttempts(ctx context.Context, filter AttemptFilter, exec ...core.DBExecutor) ([]Attempt, error)
		CreateAttempt(ctx context.Context, att Attempt, exec ...core.DBExecutor) (Attempt, error)

		CourseHasSubmissions(ctx context.Context, courseID string, exec ...core.DBExecutor) (bool, error)
		IsEnrolled(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error)
	}

	// CourseStore is the slice of the course repository this service reads.
	CourseStore interface {
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error)
		GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (course.Task, error)
		ListCourseTasks(ctx context.Context, courseID string, withInactive bool, exec ...core.DBExecutor) ([]course.Task, error)
		GetQuiz(ctx context.Context, taskID string, exec ...core.DBExecutor) (course.Quiz, error)
	}

	// UserStore is the slice of the user repository this service reads.
	UserStore interface {
		GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error)
	}

	ServiceInterface interface {
		Enroll(ctx context.Context, p auth.Principal, ne NewEnrollment) (Enrollment, error)
		ListEnrollments(ctx context.Context, p auth.Principal, filter EnrollmentFilter, pages core.Pages, ordering []core.DBOrdering) ([]Enrollment, int, error)
		CompleteTextTask(ctx context.Context, p auth.Principal, taskID string) (TaskProgress, error)
		Submit(ctx context.Context, p auth.Principal, ns NewSubmission) (Submission, error)
		ListSubmissions(ctx context.Context, p auth.Principal, filter SubmissionFilter, pages core.Pages, ordering []core.DBOrdering) ([]Submission, int, error)
		GradeSubmission(ctx context.Context, p auth.Principal, submissionID string, g Grade) (Submission, error)
		AttemptQuiz(ctx context.Context, p auth.Principal, na NewAttempt) (Attempt, error)
		StudentProgress(ctx context.Context, p auth.Principal, studentID, courseID string) (CourseProgress, error)
		StudentQuizPerformance(ctx context.Context, p auth.Principal, studentID string, courseID string) ([]QuizPerformance, error)
		RecentActivity(ctx context.Context, p auth.Principal, studentID string, limit int) ([]ActivityEvent, error)
		RecomputeCourseProgress(ctx context.Context, courseID string, exec core.DBExecutor) error
	}

	service struct {
		repo     Repository
		courses  CourseStore
		users    UserStore
		atomic   core.Atomic
		mailSvc  core.EmailService
		validate *validator.Validate
		conf     *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	courses CourseStore,
	users UserStore,
	atomic core.Atomic,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
) *service {
	return &service{
		repo:     repo,
		courses:  courses,
		users:    users,
		atomic:   atomic,
		mailSvc:  mailSvc,
		validate: validate,
		conf:     conf,
	}
}

// Enroll enrolls the calling student in a course they may view.
func (svc *service) Enroll(ctx context.Context, p auth.Principal, ne NewEnrollment) (Enrollment, error) {
	if !p.IsStudent() {
		return Enrollment{}, ErrForbidden
	}
	if err := ne.Validate(svc.validate); err != nil {
		return Enrollment{}, err
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.courses.GetCourse(ctx, ne.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !auth.CanViewCourse(p, crs.Meta(), false /* enrolled */) {
		return Enrollment{}, course.ErrNotFound
	}

	now := time.Now().UTC()
	enr := Enrollment{
		UserID:     p.UserID,
		CourseID:   ne.CourseID,
		Status:     EnrollmentActive,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	err = svc.atomic.RunInTx(ctx, false /* serializable */, func(exec core.DBExecutor) error {
		enr, err = svc.repo.UpsertEnrollment(ctx, enr, exec)
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}

	if usr, uerr := svc.users.GetUser(ctx, user.GetFilter{ID: p.UserID}); uerr == nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      fmt.Sprintf("Welcome to %s", crs.Title),
			TemplateName: "welcome",
			TemplateData: struct {
				Name        string
				CourseTitle string
				CourseID    string
			}{usr.Name, crs.Title, crs.ID},
		})
	}
	return enr, nil
}

func (svc *service) ListEnrollments(ctx context.Context, p auth.Principal, filter EnrollmentFilter, pages core.Pages, ordering []core.DBOrdering) ([]Enrollment, int, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	filter.Scope = auth.ScopeStudentData(p)
	return svc.repo.ListEnrollments(ctx, filter, pages, ordering)
}

// CompleteTextTask marks a text task done for the calling student and
// recomputes their course progress in the same transaction. Idempotent.
func (svc *service) CompleteTextTask(ctx context.Context, p auth.Principal, taskID string) (TaskProgress, error) {
	if !p.IsStudent() {
		return TaskProgress{}, ErrForbidden
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	tsk, err := svc.courses.GetTask(ctx, taskID)
	if err != nil {
		return TaskProgress{}, err
	}
	if tsk.Type != course.TaskText {
		return TaskProgress{}, core.NewValidationError(nil, core.FieldError{Field: "task_id", Error: "only text tasks can be marked complete"})
	}
	if err = svc.mustBeEnrolled(ctx, p.UserID, tsk.CourseID); err != nil {
		return TaskProgress{}, err
	}

	tp := TaskProgress{
		UserID:    p.UserID,
		TaskID:    taskID,
		State:     StateCompleted,
		UpdatedAt: time.Now().UTC(),
	}
	err = svc.atomic.RunInTx(ctx, true /* serializable */, func(exec core.DBExecutor) error {
		if tp, err = svc.repo.UpsertTaskProgress(ctx, tp, exec); err != nil {
			return err
		}
		return svc.recomputeProgress(ctx, p.UserID, tsk.CourseID, exec)
	})
	if err != nil {
		return TaskProgress{}, err
	}
	return tp, nil
}

// Submit records a student's work for a submission task. One submission per
// (task, user); a duplicate surfaces as Conflict.
func (svc *service) Submit(ctx context.Context, p auth.Principal, ns NewSubmission) (Submission, error) {
	if !p.IsStudent() {
		return Submission{}, ErrForbidden
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Submission{}, err
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	tsk, err := svc.courses.GetTask(ctx, ns.TaskID)
	if err != nil {
		return Submission{}, err
	}
	if tsk.Type != course.TaskSubmission {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "task_id", Error: "task does not accept submissions"})
	}
	if err = svc.mustBeEnrolled(ctx, p.UserID, tsk.CourseID); err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	sub := Submission{
		TaskID:      ns.TaskID,
		UserID:      p.UserID,
		Content:     ns.Content,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	err = svc.atomic.RunInTx(ctx, true /* serializable */, func(exec core.DBExecutor) error {
		if sub, err = svc.repo.CreateSubmission(ctx, sub, exec); err != nil {
			return err
		}
		tp := TaskProgress{UserID: p.UserID, TaskID: ns.TaskID, State: StateInProgress, UpdatedAt: now}
		if tsk.MaxScore == 0 {
			tp.State = StateCompleted
		}
		if _, err = svc.repo.UpsertTaskProgress(ctx, tp, exec); err != nil {
			return err
		}
		return svc.recomputeProgress(ctx, p.UserID, tsk.CourseID, exec)
	})
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (svc *service) ListSubmissions(ctx context.Context, p auth.Principal, filter SubmissionFilter, pages core.Pages, ordering []core.DBOrdering) ([]Submission, int, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	filter.Scope = auth.ScopeStudentData(p)
	return svc.repo.ListSubmissions(ctx, filter, pages, ordering)
}

// GradeSubmission sets a submission's score. Idempotent: regrading with the
// same score is a no-op. The student is notified by email on a state change.
func (svc *service) GradeSubmission(ctx context.Context, p auth.Principal, submissionID string, g Grade) (Submission, error) {
	if !auth.CanGrade(p) {
		return Submission{}, ErrForbidden
	}
	if err := g.Validate(svc.validate); err != nil {
		return Submission{}, err
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	tsk, err := svc.courses.GetTask(ctx, sub.TaskID)
	if err != nil {
		return Submission{}, err
	}
	crs, err := svc.courses.GetCourse(ctx, tsk.CourseID)
	if err != nil {
		return Submission{}, err
	}
	// instructors only grade within their own courses; hide the rest
	if !p.IsAdmin() && crs.CreatedBy != p.UserID {
		return Submission{}, ErrSubmissionNotFound
	}
	if g.Score > tsk.MaxScore {
		return Submission{}, core.NewValidationError(nil, core.FieldError{
			Field: "score",
			Error: fmt.Sprintf("score cannot exceed the task maximum of %d", tsk.MaxScore),
		})
	}
	if sub.IsGraded && sub.Score.Int == g.Score {
		return sub, nil
	}

	sub.Score.SetValid(g.Score)
	sub.GradedBy.SetValid(p.UserID)
	sub.IsGraded = true
	sub.UpdatedAt = time.Now().UTC()
	err = svc.atomic.RunInTx(ctx, true /* serializable */, func(exec core.DBExecutor) error {
		if sub, err = svc.repo.UpdateSubmission(ctx, sub, exec); err != nil {
			return err
		}
		state := StateInProgress
		if tsk.MaxScore == 0 || float64(g.Score) >= PassingScore(crs.PassFraction, tsk.MaxScore) {
			state = StateCompleted
		}
		tp := TaskProgress{UserID: sub.UserID, TaskID: sub.TaskID, State: state, UpdatedAt: sub.UpdatedAt}
		if _, err = svc.repo.UpsertTaskProgress(ctx, tp, exec); err != nil {
			return err
		}
		return svc.recomputeProgress(ctx, sub.UserID, tsk.CourseID, exec)
	})
	if err != nil {
		return Submission{}, err
	}

	if usr, uerr := svc.users.GetUser(ctx, user.GetFilter{ID: sub.UserID}); uerr == nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      fmt.Sprintf("Your submission for %s has been graded", tsk.Title),
			TemplateName: "graded",
			TemplateData: struct {
				Name      string
				TaskTitle string
				TaskID    string
				Score     int
				MaxScore  int
			}{usr.Name, tsk.Title, tsk.ID, g.Score, tsk.MaxScore},
		})
	}
	return sub, nil
}

// AttemptQuiz scores and records a quiz attempt for the calling student.
func (svc *service) AttemptQuiz(ctx context.Context, p auth.Principal, na NewAttempt) (Attempt, error) {
	if !p.IsStudent() {
		return Attempt{}, ErrForbidden
	}
	if err := na.Validate(svc.validate); err != nil {
		return Attempt{}, err
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	tsk, err := svc.courses.GetTask(ctx, na.TaskID)
	if err != nil {
		return Attempt{}, err
	}
	if tsk.Type != course.TaskQuiz {
		return Attempt{}, core.NewValidationError(nil, core.FieldError{Field: "task_id", Error: "task is not a quiz"})
	}
	if err = svc.mustBeEnrolled(ctx, p.UserID, tsk.CourseID); err != nil {
		return Attempt{}, err
	}
	crs, err := svc.courses.GetCourse(ctx, tsk.CourseID)
	if err != nil {
		return Attempt{}, err
	}
	qz, err := svc.courses.GetQuiz(ctx, na.TaskID)
	if err != nil {
		return Attempt{}, err
	}

	score, passed := ScoreAttempt(qz, na.Selections, crs.PassFraction)
	att := Attempt{
		UserID:      p.UserID,
		TaskID:      na.TaskID,
		Selections:  na.Selections,
		Score:       score,
		Passed:      passed,
		CompletedAt: time.Now().UTC(),
	}
	err = svc.atomic.RunInTx(ctx, true /* serializable */, func(exec core.DBExecutor) error {
		prev, lerr := svc.repo.ListAttempts(ctx, AttemptFilter{UserID: p.UserID, TaskID: na.TaskID, Scope: auth.StudentDataScope{All: true}}, exec)
		if lerr != nil {
			return lerr
		}
		att.AttemptIndex = len(prev) + 1
		if att, lerr = svc.repo.CreateAttempt(ctx, att, exec); lerr != nil {
			return lerr
		}
		state := StateInProgress
		if passed {
			state = StateCompleted
		}
		tp := TaskProgress{UserID: p.UserID, TaskID: na.TaskID, State: state, UpdatedAt: att.CompletedAt}
		// a later failing attempt never un-completes the task
		if !passed {
			if done, derr := svc.taskAlreadyCompleted(ctx, p.UserID, na.TaskID, exec); derr != nil {
				return derr
			} else if done {
				tp.State = StateCompleted
			}
		}
		if _, lerr = svc.repo.UpsertTaskProgress(ctx, tp, exec); lerr != nil {
			return lerr
		}
		return svc.recomputeProgress(ctx, p.UserID, tsk.CourseID, exec)
	})
	if err != nil {
		return Attempt{}, err
	}
	return att, nil
}

// StudentProgress returns the calculator's output for one (student, course)
// pair, scoped to what p may see.
func (svc *service) StudentProgress(ctx context.Context, p auth.Principal, studentID, courseID string) (CourseProgress, error) {
	scope := auth.ScopeStudentData(p).Narrow(studentID)
	if scope.None {
		return CourseProgress{}, ErrEnrollmentNotFound
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	if !p.IsAdmin() && p.IsInstructor() && crs.CreatedBy != p.UserID {
		return CourseProgress{}, course.ErrNotFound
	}
	enr, err := svc.repo.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	tasks, err := svc.courses.ListCourseTasks(ctx, courseID, true /* withInactive */)
	if err != nil {
		return CourseProgress{}, err
	}
	data, err := svc.studentCourseData(ctx, studentID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	return ComputeProgress(enr, tasks, data, crs.PassFraction), nil
}

// StudentQuizPerformance returns a per-quiz breakdown for a student, over
// one course or, with a blank courseID, all their enrolled courses.
func (svc *service) StudentQuizPerformance(ctx context.Context, p auth.Principal, studentID, courseID string) ([]QuizPerformance, error) {
	scope := auth.ScopeStudentData(p).Narrow(studentID)
	if scope.None {
		return nil, ErrEnrollmentNotFound
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	courseIDs := []string{courseID}
	if courseID == "" {
		enrs, _, err := svc.repo.ListEnrollments(ctx, EnrollmentFilter{UserID: studentID, Scope: scope}, core.Pages{Size: core.MaxPageSize}, nil)
		if err != nil {
			return nil, err
		}
		courseIDs = courseIDs[:0]
		for _, enr := range enrs {
			courseIDs = append(courseIDs, enr.CourseID)
		}
	}

	var perf []QuizPerformance
	for _, cid := range courseIDs {
		if p.IsInstructor() && !p.IsAdmin() {
			crs, err := svc.courses.GetCourse(ctx, cid)
			if err != nil {
				return nil, err
			}
			if crs.CreatedBy != p.UserID {
				continue
			}
		}
		tasks, err := svc.courses.ListCourseTasks(ctx, cid, true /* withInactive */)
		if err != nil {
			return nil, err
		}
		atts, err := svc.repo.ListAttempts(ctx, AttemptFilter{UserID: studentID, CourseID: cid, Scope: scope})
		if err != nil {
			return nil, err
		}
		perf = append(perf, ComputeQuizPerformance(tasks, groupAttempts(atts))...)
	}
	return perf, nil
}

// RecentActivity merges a student's submissions, attempts and task-progress
// changes into one timeline, newest first.
func (svc *service) RecentActivity(ctx context.Context, p auth.Principal, studentID string, limit int) ([]ActivityEvent, error) {
	scope := auth.ScopeStudentData(p).Narrow(studentID)
	if scope.None {
		return nil, ErrEnrollmentNotFound
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	subs, _, err := svc.repo.ListSubmissions(ctx, SubmissionFilter{UserID: studentID, Scope: scope}, core.Pages{Size: core.MaxPageSize}, nil)
	if err != nil {
		return nil, err
	}
	atts, err := svc.repo.ListAttempts(ctx, AttemptFilter{UserID: studentID, Scope: scope})
	if err != nil {
		return nil, err
	}
	tps, err := svc.repo.ListTaskProgress(ctx, TaskProgressFilter{UserID: studentID, Scope: scope})
	if err != nil {
		return nil, err
	}

	var subEvts, attEvts, tpEvts []ActivityEvent
	for _, sub := range subs {
		subEvts = append(subEvts, ActivityEvent{Kind: ActivitySubmission, TaskID: sub.TaskID, OccurredAt: sub.SubmittedAt})
	}
	for _, att := range atts {
		attEvts = append(attEvts, ActivityEvent{Kind: ActivityQuizAttempt, TaskID: att.TaskID, OccurredAt: att.CompletedAt})
	}
	for _, tp := range tps {
		tpEvts = append(tpEvts, ActivityEvent{Kind: ActivityTaskProgress, TaskID: tp.TaskID, OccurredAt: tp.UpdatedAt})
	}
	return MergeActivity(limit, subEvts, attEvts, tpEvts), nil
}

// RecomputeCourseProgress refreshes every enrollment's cached progress for a
// course, inside the caller's transaction. Course-side task writes call this
// so the cache never outlives the task list it was computed from.
func (svc *service) RecomputeCourseProgress(ctx context.Context, courseID string, exec core.DBExecutor) error {
	pages := core.Pages{Number: 1, Size: core.MaxPageSize}
	for {
		enrs, count, err := svc.repo.ListEnrollments(ctx, EnrollmentFilter{CourseID: courseID, Scope: auth.StudentDataScope{All: true}}, pages, nil, exec)
		if err != nil {
			return err
		}
		for _, enr := range enrs {
			if err = svc.recomputeProgress(ctx, enr.UserID, courseID, exec); err != nil {
				return err
			}
		}
		if pages.Number*pages.Size >= count {
			return nil
		}
		pages.Number++
	}
}

// recomputeProgress refreshes the enrollment's progress cache from the rows
// visible to the enclosing transaction.
func (svc *service) recomputeProgress(ctx context.Context, userID, courseID string, exec core.DBExecutor) error {
	crs, err := svc.courses.GetCourse(ctx, courseID, exec)
	if err != nil {
		return err
	}
	enr, err := svc.repo.GetEnrollment(ctx, userID, courseID, exec)
	if err != nil {
		return err
	}
	tasks, err := svc.courses.ListCourseTasks(ctx, courseID, true /* withInactive */, exec)
	if err != nil {
		return err
	}
	data, err := svc.studentCourseData(ctx, userID, courseID, exec)
	if err != nil {
		return err
	}

	percent := CoursePercentComplete(tasks, data, crs.PassFraction)
	enr.Progress = percent
	enr.Status = CourseStatusFor(enr, percent)
	enr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpsertEnrollment(ctx, enr, exec)
	return errors.Wrap(err, "caching enrollment progress")
}

func (svc *service) studentCourseData(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (StudentCourseData, error) {
	all := auth.StudentDataScope{All: true}
	data := StudentCourseData{
		TaskProgress: make(map[string]TaskProgress),
		Submissions:  make(map[string]Submission),
	}

	tps, err := svc.repo.ListTaskProgress(ctx, TaskProgressFilter{UserID: userID, CourseID: courseID, Scope: all}, exec...)
	if err != nil {
		return data, err
	}
	for _, tp := range tps {
		data.TaskProgress[tp.TaskID] = tp
	}

	subs, _, err := svc.repo.ListSubmissions(ctx, SubmissionFilter{UserID: userID, CourseID: courseID, Scope: all}, core.Pages{Size: core.MaxPageSize}, nil, exec...)
	if err != nil {
		return data, err
	}
	for _, sub := range subs {
		data.Submissions[sub.TaskID] = sub
	}

	atts, err := svc.repo.ListAttempts(ctx, AttemptFilter{UserID: userID, CourseID: courseID, Scope: all}, exec...)
	if err != nil {
		return data, err
	}
	data.Attempts = groupAttempts(atts)
	return data, nil
}

func (svc *service) taskAlreadyCompleted(ctx context.Context, userID, taskID string, exec core.DBExecutor) (bool, error) {
	tps, err := svc.repo.ListTaskProgress(ctx, TaskProgressFilter{UserID: userID, TaskID: taskID, Scope: auth.StudentDataScope{All: true}}, exec)
	if err != nil {
		return false, err
	}
	for _, tp := range tps {
		if tp.State == StateCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (svc *service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, svc.conf.Server.StoreTimeout)
}

func (svc *service) mustBeEnrolled(ctx context.Context, userID, courseID string) error {
	enrolled, err := svc.repo.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !enrolled {
		return ErrEnrollmentNotFound
	}
	return nil
}

func groupAttempts(atts []Attempt) map[string][]Attempt {
	grouped := make(map[string][]Attempt)
	for _, att := range atts {
		grouped[att.TaskID] = append(grouped[att.TaskID], att)
	}
	return grouped
}
