package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("course not found")
	ErrTaskNotFound   = core.NewNotFoundError("task not found")
	ErrQuizNotFound   = core.NewNotFoundError("quiz not found")
	ErrNotQuiz        = core.NewValidationError(errors.New("task is not a quiz"))
	ErrDuplicateOrder = core.NewConflictError("a task with this order already exists in the course")
	ErrForbidden      = core.NewForbiddenError("permission denied")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		// FilterCourses applies AND on available QueryFilter fields, within the
		// filter's scope, and returns the page plus the total match count.
		FilterCourses(ctx context.Context, filter QueryFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, int, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateTask(ctx context.Context, tsk Task, exec ...core.DBExecutor) (Task, error)
		GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (Task, error)
		// ListCourseTasks returns the course's tasks ordered by Task.Order.
		// Inactive tasks are included only when withInactive is set.
		ListCourseTasks(ctx context.Context, courseID string, withInactive bool, exec ...core.DBExecutor) ([]Task, error)
		UpdateTask(ctx context.Context, tsk Task, exec ...core.DBExecutor) (Task, error)

		CreateQuiz(ctx context.Context, qz Quiz, exec ...core.DBExecutor) (Quiz, error)
		// GetQuiz loads the quiz for a quiz-type task, questions and options
		// in position order.
		GetQuiz(ctx context.Context, taskID string, exec ...core.DBExecutor) (Quiz, error)
	}

	// SubmissionChecker reports whether any submissions exist for a course.
	// Satisfied by the progress repository.
	SubmissionChecker interface {
		CourseHasSubmissions(ctx context.Context, courseID string, exec ...core.DBExecutor) (bool, error)
	}

	// EnrollmentChecker reports whether a user is enrolled in a course.
	// Satisfied by the progress repository.
	EnrollmentChecker interface {
		IsEnrolled(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (bool, error)
	}

	// ProgressRefresher recomputes every enrollment's cached progress for a
	// course, inside the enclosing transaction. Satisfied by the progress
	// service. Task writes change the denominator of the cache, so they must
	// refresh it before committing.
	ProgressRefresher interface {
		RecomputeCourseProgress(ctx context.Context, courseID string, exec core.DBExecutor) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, p auth.Principal, nc NewCourse) (Course, error)
		Get(ctx context.Context, p auth.Principal, id string) (Course, error)
		Filter(ctx context.Context, p auth.Principal, filter QueryFilter, pages core.Pages, ordering []core.DBOrdering) ([]Course, int, error)
		Update(ctx context.Context, p auth.Principal, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, p auth.Principal, id string) error

		AddTask(ctx context.Context, p auth.Principal, courseID string, nt NewTask) (Task, error)
		GetTask(ctx context.Context, p auth.Principal, id string) (Task, error)
		ListTasks(ctx context.Context, p auth.Principal, courseID string) ([]Task, error)
		UpdateTask(ctx context.Context, p auth.Principal, id string, ut UpdateTask) (Task, error)

		AddQuiz(ctx context.Context, p auth.Principal, courseID string, nq NewQuiz) (Quiz, error)
		GetQuiz(ctx context.Context, p auth.Principal, taskID string) (Quiz, error)
	}

	service struct {
		repo        Repository
		subChk      SubmissionChecker
		enrlChk     EnrollmentChecker
		progRefresh ProgressRefresher
		atomic      core.Atomic
		validate    *validator.Validate
		conf        *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	subChk SubmissionChecker,
	enrlChk EnrollmentChecker,
	progRefresh ProgressRefresher,
	atomic core.Atomic,
	validate *validator.Validate,
	conf *core.Config,
) *service {
	return &service{
		repo:        repo,
		subChk:      subChk,
		enrlChk:     enrlChk,
		progRefresh: progRefresh,
		atomic:      atomic,
		validate:    validate,
		conf:        conf,
	}
}

func (svc *service) Create(ctx context.Context, p auth.Principal, nc NewCourse) (Course, error) {
	if !auth.CanCreateCourse(p) {
		return Course{}, ErrForbidden
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	passFraction := svc.conf.PassFraction
	if nc.PassFraction != nil {
		passFraction = *nc.PassFraction
	}
	now := time.Now().UTC()
	crs := Course{
		Title:        nc.Title,
		Description:  nc.Description,
		CreatedBy:    p.UserID,
		Status:       StatusDraft,
		Visibility:   nc.Visibility,
		PassFraction: passFraction,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

// Get returns the course if p may view it; an invisible course is
// indistinguishable from an absent one.
func (svc *service) Get(ctx context.Context, p auth.Principal, id string) (Course, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	enrolled, err := svc.enrolled(ctx, p, id)
	if err != nil {
		return Course{}, err
	}
	if !auth.CanViewCourse(p, crs.Meta(), enrolled) {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (svc *service) Filter(ctx context.Context, p auth.Principal, filter QueryFilter, pages core.Pages, ordering []core.DBOrdering) ([]Course, int, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	filter.Clean()
	filter.Scope = auth.ScopeCourses(p)
	return svc.repo.FilterCourses(ctx, filter, pages, ordering)
}

func (svc *service) Update(ctx context.Context, p auth.Principal, id string, uc UpdateCourse) (Course, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.Get(ctx, p, id)
	if err != nil {
		return Course{}, err
	}
	if !auth.CanEditCourse(p, crs.Meta()) {
		return Course{}, ErrForbidden
	}
	if err = uc.Validate(svc.validate); err != nil {
		return Course{}, err
	}

	if uc.Title != nil {
		crs.Title = *uc.Title
	}
	if uc.Description != nil {
		crs.Description = *uc.Description
	}
	if uc.Status != nil {
		crs.Status = *uc.Status
	}
	if uc.Visibility != nil {
		crs.Visibility = *uc.Visibility
	}
	if uc.PassFraction != nil {
		crs.PassFraction = *uc.PassFraction
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete archives a course that has submissions instead of removing it, so
// student records survive. An admin deleting an archived course removes it
// for good.
func (svc *service) Delete(ctx context.Context, p auth.Principal, id string) error {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if !auth.CanEditCourse(p, crs.Meta()) {
		return ErrForbidden
	}

	hasSubs, err := svc.subChk.CourseHasSubmissions(ctx, id)
	if err != nil {
		return err
	}
	if hasSubs {
		crs.Status = StatusArchived
		crs.UpdatedAt = time.Now().UTC()
		_, err = svc.repo.UpdateCourse(ctx, crs)
		return err
	}
	if crs.Status == StatusArchived && !p.IsAdmin() {
		return ErrForbidden
	}
	// course deletion is a tree walk; all or nothing
	return svc.atomic.RunInTx(ctx, false /* serializable */, func(exec core.DBExecutor) error {
		return svc.repo.DeleteCourse(ctx, id, exec)
	})
}

func (svc *service) AddTask(ctx context.Context, p auth.Principal, courseID string, nt NewTask) (Task, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.Get(ctx, p, courseID)
	if err != nil {
		return Task{}, err
	}
	if !auth.CanEditCourse(p, crs.Meta()) {
		return Task{}, ErrForbidden
	}
	if err = nt.Validate(svc.validate); err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	tsk := Task{
		CourseID:    courseID,
		Title:       nt.Title,
		Description: nt.Description,
		Order:       nt.Order,
		Type:        nt.Type,
		Deadline:    nt.Deadline,
		MaxScore:    nt.MaxScore,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = svc.atomic.RunInTx(ctx, true /* serializable */, func(exec core.DBExecutor) error {
		if tsk, err = svc.repo.CreateTask(ctx, tsk, exec); err != nil {
			return err
		}
		return svc.progRefresh.RecomputeCourseProgress(ctx, courseID, exec)
	})
	if err != nil {
		return Task{}, err
	}
	return tsk, nil
}

func (svc *service) GetTask(ctx context.Context, p auth.Principal, id string) (Task, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	tsk, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	// task visibility follows the course's
	if _, err = svc.Get(ctx, p, tsk.CourseID); err != nil {
		if core.IsNotFound(err) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}
	return tsk, nil
}

// ListTasks returns a course's active tasks in order; course editors also see
// inactive ones.
func (svc *service) ListTasks(ctx context.Context, p auth.Principal, courseID string) ([]Task, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.Get(ctx, p, courseID)
	if err != nil {
		return nil, err
	}
	return svc.repo.ListCourseTasks(ctx, courseID, auth.CanEditCourse(p, crs.Meta()))
}

func (svc *service) UpdateTask(ctx context.Context, p auth.Principal, id string, ut UpdateTask) (Task, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	tsk, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	crs, err := svc.Get(ctx, p, tsk.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}
	if !auth.CanEditCourse(p, crs.Meta()) {
		return Task{}, ErrForbidden
	}
	if err = ut.Validate(svc.validate); err != nil {
		return Task{}, err
	}
	// a quiz's max score stays equal to its question count
	if ut.MaxScore != nil && tsk.Type == TaskQuiz {
		return Task{}, core.NewValidationError(nil, core.FieldError{
			Field: "max_score",
			Error: "a quiz's max score is derived from its question count",
		})
	}

	if ut.Title != nil {
		tsk.Title = *ut.Title
	}
	if ut.Description != nil {
		tsk.Description = *ut.Description
	}
	if ut.Order != nil {
		tsk.Order = *ut.Order
	}
	if ut.Deadline != nil {
		tsk.Deadline = *ut.Deadline
	}
	if ut.MaxScore != nil {
		tsk.MaxScore = *ut.MaxScore
	}
	if ut.IsActive != nil {
		tsk.IsActive = *ut.IsActive
	}
	tsk.UpdatedAt = time.Now().UTC()
	err = svc.atomic.RunInTx(ctx, true /* serializable */, func(exec core.DBExecutor) error {
		if tsk, err = svc.repo.UpdateTask(ctx, tsk, exec); err != nil {
			return err
		}
		return svc.progRefresh.RecomputeCourseProgress(ctx, tsk.CourseID, exec)
	})
	if err != nil {
		return Task{}, err
	}
	return tsk, nil
}

// AddQuiz creates a quiz-type task together with its questions and options.
func (svc *service) AddQuiz(ctx context.Context, p auth.Principal, courseID string, nq NewQuiz) (Quiz, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.Get(ctx, p, courseID)
	if err != nil {
		return Quiz{}, err
	}
	if !auth.CanEditCourse(p, crs.Meta()) {
		return Quiz{}, ErrForbidden
	}
	if err = nq.Validate(svc.validate); err != nil {
		return Quiz{}, err
	}

	now := time.Now().UTC()
	qz := Quiz{
		Task: Task{
			CourseID:    courseID,
			Title:       nq.Task.Title,
			Description: nq.Task.Description,
			Order:       nq.Task.Order,
			Type:        TaskQuiz,
			Deadline:    nq.Task.Deadline,
			MaxScore:    len(nq.Questions),
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	for i, q := range nq.Questions {
		question := Question{Prompt: q.Prompt, Position: i}
		for j, opt := range q.Options {
			question.Options = append(question.Options, Option{
				Text:      opt.Text,
				Position:  j,
				IsCorrect: opt.IsCorrect,
			})
		}
		qz.Questions = append(qz.Questions, question)
	}
	err = svc.atomic.RunInTx(ctx, true /* serializable */, func(exec core.DBExecutor) error {
		if qz, err = svc.repo.CreateQuiz(ctx, qz, exec); err != nil {
			return err
		}
		return svc.progRefresh.RecomputeCourseProgress(ctx, courseID, exec)
	})
	return qz, err
}

func (svc *service) GetQuiz(ctx context.Context, p auth.Principal, taskID string) (Quiz, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	tsk, err := svc.GetTask(ctx, p, taskID)
	if err != nil {
		return Quiz{}, err
	}
	if tsk.Type != TaskQuiz {
		return Quiz{}, ErrNotQuiz
	}
	return svc.repo.GetQuiz(ctx, taskID)
}

func (svc *service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, svc.conf.Server.StoreTimeout)
}

func (svc *service) enrolled(ctx context.Context, p auth.Principal, courseID string) (bool, error) {
	if !p.IsStudent() {
		return false, nil
	}
	return svc.enrlChk.IsEnrolled(ctx, p.UserID, courseID)
}
