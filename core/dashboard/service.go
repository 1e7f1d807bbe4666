package dashboard

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("dashboard not found")
	ErrForbidden = core.NewForbiddenError("permission denied")
)

const (
	recentLimit    = 10
	signupWindow   = 5
	submissionDays = 7
)

type (
	// UserInfo is the caller slice every dashboard payload carries.
	UserInfo struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}

	StudentCourse struct {
		CourseID         string  `json:"course_id"`
		CourseTitle      string  `json:"course_title"`
		EnrollmentStatus string  `json:"enrollment_status"`
		Progress         float64 `json:"progress"`
	}

	StudentTotals struct {
		TotalCourses      int     `json:"total_courses"`
		CompletedCourses  int     `json:"completed_courses"`
		InProgressCourses int     `json:"in_progress_courses"`
		AverageProgress   float64 `json:"average_progress"`
	}

	StudentDashboard struct {
		UserInfo        UserInfo                   `json:"user_info"`
		Courses         []StudentCourse            `json:"courses"`
		Progress        StudentTotals              `json:"progress"`
		QuizPerformance []progress.QuizPerformance `json:"quiz_performance"`
		RecentActivity  []progress.ActivityEvent   `json:"recent_activity"`
	}

	InstructorCourse struct {
		CourseID            string  `json:"course_id"`
		Title               string  `json:"title"`
		StudentCount        int     `json:"student_count"`
		AvgProgress         float64 `json:"avg_progress"`
		PendingGradingCount int     `json:"pending_grading_count"`
	}

	InstructorDashboard struct {
		UserInfo                        UserInfo              `json:"user_info"`
		Courses                         []InstructorCourse    `json:"courses"`
		RecentSubmissionsNeedingGrading []progress.Submission `json:"recent_submissions_needing_grading"`
	}

	PlatformTotals struct {
		Users             int `json:"users"`
		Courses           int `json:"courses"`
		ActiveEnrollments int `json:"active_enrollments"`
		SubmissionsLast7d int `json:"submissions_last_7d"`
	}

	AdminDashboard struct {
		UserInfo       UserInfo        `json:"user_info"`
		PlatformTotals PlatformTotals  `json:"platform_totals"`
		RecentSignups  []user.User     `json:"recent_signups"`
		RecentCourses  []course.Course `json:"recent_courses"`
	}

	CourseAnalytics struct {
		CourseID            string  `json:"course_id"`
		Title               string  `json:"title"`
		StudentCount        int     `json:"student_count"`
		AvgProgress         float64 `json:"avg_progress"`
		CompletionRate      float64 `json:"completion_rate"`
		PendingGradingCount int     `json:"pending_grading_count"`
	}

	TaskAnalytics struct {
		TaskID         string  `json:"task_id"`
		Title          string  `json:"title"`
		Type           string  `json:"type"`
		Order          int     `json:"order"`
		CompletedCount int     `json:"completed_count"`
		CompletionRate float64 `json:"completion_rate"`
	}
)

type (
	// CourseStore is the slice of the course repository this service reads.
	CourseStore interface {
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error)
		FilterCourses(ctx context.Context, filter course.QueryFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, int, error)
		ListCourseTasks(ctx context.Context, courseID string, withInactive bool, exec ...core.DBExecutor) ([]course.Task, error)
	}

	// UserStore is the slice of the user repository this service reads.
	UserStore interface {
		GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error)
		FilterUsers(ctx context.Context, filter user.QueryFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, int, error)
	}

	// ProgressStore is the slice of the progress repository this service
	// reads for cross-student aggregates.
	ProgressStore interface {
		ListEnrollments(ctx context.Context, filter progress.EnrollmentFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]progress.Enrollment, int, error)
		ListSubmissions(ctx context.Context, filter progress.SubmissionFilter, pages core.Pages, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]progress.Submission, int, error)
		ListTaskProgress(ctx context.Context, filter progress.TaskProgressFilter, exec ...core.DBExecutor) ([]progress.TaskProgress, error)
	}

	ServiceInterface interface {
		ForPrincipal(ctx context.Context, p auth.Principal) (interface{}, error)
		Student(ctx context.Context, p auth.Principal, studentID string) (StudentDashboard, error)
		Instructor(ctx context.Context, p auth.Principal) (InstructorDashboard, error)
		Admin(ctx context.Context, p auth.Principal) (AdminDashboard, error)
		CourseAnalytics(ctx context.Context, p auth.Principal, courseID string) (CourseAnalytics, error)
		TaskAnalytics(ctx context.Context, p auth.Principal, courseID string) ([]TaskAnalytics, error)
	}

	service struct {
		users   UserStore
		courses CourseStore
		prog    ProgressStore
		progSvc progress.ServiceInterface
		logger  core.Logger
		conf    *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(users UserStore, courses CourseStore, prog ProgressStore, progSvc progress.ServiceInterface, logger core.Logger, conf *core.Config) *service {
	return &service{
		users:   users,
		courses: courses,
		prog:    prog,
		progSvc: progSvc,
		logger:  logger,
		conf:    conf,
	}
}

// ForPrincipal dispatches to the payload matching the caller's role. The
// aggregator never branches on identity beyond this dispatch.
func (svc *service) ForPrincipal(ctx context.Context, p auth.Principal) (interface{}, error) {
	switch {
	case p.IsAdmin():
		return svc.Admin(ctx, p)
	case p.IsInstructor():
		return svc.Instructor(ctx, p)
	case p.IsStudent():
		return svc.Student(ctx, p, p.UserID)
	default:
		return nil, ErrForbidden
	}
}

// Student assembles the student payload for studentID. Callable by the
// student themselves or an admin.
func (svc *service) Student(ctx context.Context, p auth.Principal, studentID string) (StudentDashboard, error) {
	if !auth.CanViewProgressOf(p, studentID) {
		return StudentDashboard{}, ErrNotFound
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: studentID})
	if err != nil {
		return StudentDashboard{}, err
	}

	enrs, _, err := svc.prog.ListEnrollments(ctx,
		progress.EnrollmentFilter{UserID: studentID, Scope: auth.StudentDataScope{All: true}},
		core.Pages{Size: core.MaxPageSize}, nil)
	if err != nil {
		return StudentDashboard{}, err
	}

	db := StudentDashboard{UserInfo: userInfo(usr)}
	var progressSum float64
	for _, enr := range enrs {
		crs, cerr := svc.courses.GetCourse(ctx, enr.CourseID)
		if cerr != nil {
			return StudentDashboard{}, cerr
		}
		if crs.Title == "" {
			svc.logger.Warn("excluding blank-titled course from student dashboard", "course_id", crs.ID, "user_id", studentID)
			continue
		}
		status := progress.CourseStatusFor(enr, enr.Progress)
		db.Courses = append(db.Courses, StudentCourse{
			CourseID:         crs.ID,
			CourseTitle:      crs.Title,
			EnrollmentStatus: status,
			Progress:         enr.Progress,
		})
		db.Progress.TotalCourses++
		progressSum += enr.Progress
		switch status {
		case progress.EnrollmentCompleted:
			db.Progress.CompletedCourses++
		case progress.EnrollmentActive:
			db.Progress.InProgressCourses++
		}
	}
	if db.Progress.TotalCourses > 0 {
		db.Progress.AverageProgress = progressSum / float64(db.Progress.TotalCourses)
	}

	if db.QuizPerformance, err = svc.progSvc.StudentQuizPerformance(ctx, p, studentID, ""); err != nil {
		return StudentDashboard{}, err
	}
	if db.RecentActivity, err = svc.progSvc.RecentActivity(ctx, p, studentID, recentLimit); err != nil {
		return StudentDashboard{}, err
	}
	return db, nil
}

// Instructor assembles the instructor payload: per-course enrollment stats
// and the grading queue.
func (svc *service) Instructor(ctx context.Context, p auth.Principal) (InstructorDashboard, error) {
	if !p.IsInstructor() && !p.IsAdmin() {
		return InstructorDashboard{}, ErrForbidden
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: p.UserID})
	if err != nil {
		return InstructorDashboard{}, err
	}

	courses, _, err := svc.courses.FilterCourses(ctx,
		course.QueryFilter{Scope: auth.CourseScope{CreatorID: p.UserID}},
		core.Pages{Size: core.MaxPageSize}, nil)
	if err != nil {
		return InstructorDashboard{}, err
	}

	db := InstructorDashboard{UserInfo: userInfo(usr)}
	for _, crs := range courses {
		stats, serr := svc.courseStats(ctx, crs.ID)
		if serr != nil {
			return InstructorDashboard{}, serr
		}
		db.Courses = append(db.Courses, InstructorCourse{
			CourseID:            crs.ID,
			Title:               crs.Title,
			StudentCount:        stats.studentCount,
			AvgProgress:         stats.avgProgress,
			PendingGradingCount: stats.pendingGrading,
		})
	}

	db.RecentSubmissionsNeedingGrading, _, err = svc.prog.ListSubmissions(ctx,
		progress.SubmissionFilter{UngradedOnly: true, Scope: auth.ScopeStudentData(p)},
		core.Pages{Size: recentLimit}, nil)
	if err != nil {
		return InstructorDashboard{}, err
	}
	return db, nil
}

// Admin assembles the platform-wide payload.
func (svc *service) Admin(ctx context.Context, p auth.Principal) (AdminDashboard, error) {
	if !p.IsAdmin() {
		return AdminDashboard{}, ErrForbidden
	}
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: p.UserID})
	if err != nil {
		return AdminDashboard{}, err
	}
	db := AdminDashboard{UserInfo: userInfo(usr)}

	newestFirst := []core.DBOrdering{{Field: "created_at"}, {Field: "id", Ascending: true}}

	signups, userCount, err := svc.users.FilterUsers(ctx, user.QueryFilter{}, core.Pages{Size: signupWindow}, newestFirst)
	if err != nil {
		return AdminDashboard{}, err
	}
	db.RecentSignups = signups
	db.PlatformTotals.Users = userCount

	recentCourses, courseCount, err := svc.courses.FilterCourses(ctx,
		course.QueryFilter{Scope: auth.CourseScope{All: true}},
		core.Pages{Size: signupWindow}, newestFirst)
	if err != nil {
		return AdminDashboard{}, err
	}
	db.RecentCourses = recentCourses
	db.PlatformTotals.Courses = courseCount

	_, activeCount, err := svc.prog.ListEnrollments(ctx,
		progress.EnrollmentFilter{Status: progress.EnrollmentActive, Scope: auth.StudentDataScope{All: true}},
		core.Pages{Size: 1}, nil)
	if err != nil {
		return AdminDashboard{}, err
	}
	db.PlatformTotals.ActiveEnrollments = activeCount

	weekAgo := time.Now().UTC().AddDate(0, 0, -submissionDays)
	_, subCount, err := svc.prog.ListSubmissions(ctx,
		progress.SubmissionFilter{Since: weekAgo, Scope: auth.StudentDataScope{All: true}},
		core.Pages{Size: 1}, nil)
	if err != nil {
		return AdminDashboard{}, err
	}
	db.PlatformTotals.SubmissionsLast7d = subCount
	return db, nil
}

// CourseAnalytics returns course-level stats for its owner or an admin;
// anyone else gets NotFound.
func (svc *service) CourseAnalytics(ctx context.Context, p auth.Principal, courseID string) (CourseAnalytics, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	crs, err := svc.ownedCourse(ctx, p, courseID)
	if err != nil {
		return CourseAnalytics{}, err
	}
	stats, err := svc.courseStats(ctx, courseID)
	if err != nil {
		return CourseAnalytics{}, err
	}
	return CourseAnalytics{
		CourseID:            crs.ID,
		Title:               crs.Title,
		StudentCount:        stats.studentCount,
		AvgProgress:         stats.avgProgress,
		CompletionRate:      stats.completionRate,
		PendingGradingCount: stats.pendingGrading,
	}, nil
}

// TaskAnalytics returns per-task completion rates for a course.
func (svc *service) TaskAnalytics(ctx context.Context, p auth.Principal, courseID string) ([]TaskAnalytics, error) {
	ctx, cancel := svc.storeCtx(ctx)
	defer cancel()

	if _, err := svc.ownedCourse(ctx, p, courseID); err != nil {
		return nil, err
	}
	tasks, err := svc.courses.ListCourseTasks(ctx, courseID, false /* withInactive */)
	if err != nil {
		return nil, err
	}
	_, studentCount, err := svc.prog.ListEnrollments(ctx,
		progress.EnrollmentFilter{CourseID: courseID, Scope: auth.StudentDataScope{All: true}},
		core.Pages{Size: 1}, nil)
	if err != nil {
		return nil, err
	}
	tps, err := svc.prog.ListTaskProgress(ctx,
		progress.TaskProgressFilter{CourseID: courseID, Scope: auth.StudentDataScope{All: true}})
	if err != nil {
		return nil, err
	}

	completedByTask := make(map[string]int)
	for _, tp := range tps {
		if tp.State == progress.StateCompleted {
			completedByTask[tp.TaskID]++
		}
	}

	analytics := make([]TaskAnalytics, 0, len(tasks))
	for _, tsk := range tasks {
		ta := TaskAnalytics{
			TaskID:         tsk.ID,
			Title:          tsk.Title,
			Type:           tsk.Type,
			Order:          tsk.Order,
			CompletedCount: completedByTask[tsk.ID],
		}
		if studentCount > 0 {
			ta.CompletionRate = float64(ta.CompletedCount) / float64(studentCount)
		}
		analytics = append(analytics, ta)
	}
	return analytics, nil
}

type courseStats struct {
	studentCount   int
	avgProgress    float64
	completionRate float64
	pendingGrading int
}

func (svc *service) courseStats(ctx context.Context, courseID string) (courseStats, error) {
	var stats courseStats
	all := auth.StudentDataScope{All: true}

	enrs, total, err := svc.prog.ListEnrollments(ctx,
		progress.EnrollmentFilter{CourseID: courseID, Scope: all},
		core.Pages{Size: core.MaxPageSize}, nil)
	if err != nil {
		return stats, err
	}
	stats.studentCount = total

	var progressSum float64
	var completed int
	for _, enr := range enrs {
		progressSum += enr.Progress
		if enr.Progress >= 100 {
			completed++
		}
	}
	if n := len(enrs); n > 0 {
		stats.avgProgress = progressSum / float64(n)
		stats.completionRate = float64(completed) / float64(n)
	}

	_, pending, err := svc.prog.ListSubmissions(ctx,
		progress.SubmissionFilter{CourseID: courseID, UngradedOnly: true, Scope: all},
		core.Pages{Size: 1}, nil)
	if err != nil {
		return stats, err
	}
	stats.pendingGrading = pending
	return stats, nil
}

func (svc *service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, svc.conf.Server.StoreTimeout)
}

func (svc *service) ownedCourse(ctx context.Context, p auth.Principal, courseID string) (course.Course, error) {
	crs, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if !auth.CanEditCourse(p, crs.Meta()) {
		// existence leak prevention
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func userInfo(usr user.User) UserInfo {
	return UserInfo{
		ID:       usr.ID,
		Name:     usr.Name,
		Username: usr.Username,
		Email:    usr.Email,
		Role:     usr.Role,
	}
}
