package dashboard_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	testutil "github.com/trezcool/darasa/tests"
)

var ctx = context.Background()

// warnRecorder captures Warn calls; everything else goes to the test logger.
type warnRecorder struct {
	testutil.Logger
	warnings []string
}

func (l *warnRecorder) Warn(msg string, args ...interface{}) {
	l.warnings = append(l.warnings, msg)
}

type testEnv struct {
	db       *dummydb.DB
	usrRepo  user.Repository
	crsRepo  course.Repository
	progRepo progress.Repository
	progSvc  progress.ServiceInterface
	crsSvc   course.ServiceInterface
	svc      dashboard.ServiceInterface
	logger   *warnRecorder
	student  user.User
	studentP auth.Principal
	teacher  user.User
	teacherP auth.Principal
	admin    user.User
	adminP   auth.Principal
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup(): %v", err)
	}
	conf := testutil.NewConfig()
	validate, _ := testutil.NewValidator()
	usrRepo := dummydb.NewUserRepository(db)
	crsRepo := dummydb.NewCourseRepository(db)
	progRepo := dummydb.NewProgressRepository(db)
	atomic := dummydb.NewAtomic(db)
	progSvc := progress.NewService(
		progRepo, crsRepo, usrRepo,
		atomic,
		emailsvc.NewConsoleServiceMock(conf),
		validate, conf,
	)
	crsSvc := course.NewService(crsRepo, progRepo, progRepo, progSvc, atomic, validate, conf)
	logger := &warnRecorder{}
	svc := dashboard.NewService(usrRepo, crsRepo, progRepo, progSvc, logger, conf)

	env := &testEnv{db: db, usrRepo: usrRepo, crsRepo: crsRepo, progRepo: progRepo, progSvc: progSvc, crsSvc: crsSvc, svc: svc, logger: logger}
	env.student = testutil.CreateUser(t, usrRepo, "Jane Doe", "jane", "jane@test.darasa", "", auth.RoleStudent, true)
	env.studentP = auth.Principal{UserID: env.student.ID, Role: auth.RoleStudent}
	env.teacher = testutil.CreateUser(t, usrRepo, "John Smith", "john", "john@test.darasa", "", auth.RoleInstructor, true)
	env.teacherP = auth.Principal{UserID: env.teacher.ID, Role: auth.RoleInstructor, IsStaff: true}
	env.admin = testutil.CreateUser(t, usrRepo, "Root", "root", "root@test.darasa", "", auth.RoleAdmin, true)
	env.adminP = auth.Principal{UserID: env.admin.ID, Role: auth.RoleAdmin, IsStaff: true}
	return env
}

func TestStudentDashboard(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	testutil.Enroll(t, env.progRepo, env.student.ID, crs.ID)

	db, err := env.svc.Student(ctx, env.studentP, env.student.ID)
	if err != nil {
		t.Fatalf("Student(): %v", err)
	}
	if db.UserInfo.ID != env.student.ID || db.UserInfo.Role != auth.RoleStudent {
		t.Errorf("UserInfo = %+v; want the student's", db.UserInfo)
	}
	if len(db.Courses) != 1 {
		t.Fatalf("Courses len = %d; want 1", len(db.Courses))
	}
	got := db.Courses[0]
	if got.CourseTitle != "Algebra I" || got.EnrollmentStatus != progress.EnrollmentActive || got.Progress != 0 {
		t.Errorf("course = %+v; want Algebra I active at 0%%", got)
	}
	want := dashboard.StudentTotals{TotalCourses: 1, CompletedCourses: 0, InProgressCourses: 1, AverageProgress: 0}
	if db.Progress != want {
		t.Errorf("totals = %+v; want %+v", db.Progress, want)
	}

	// a student only gets their own dashboard
	_, err = env.svc.Student(ctx, env.studentP, env.teacher.ID)
	if errors.Cause(err) != dashboard.ErrNotFound {
		t.Errorf("foreign Student() = %v; want %v", err, dashboard.ErrNotFound)
	}
	// an admin gets anyone's
	if _, err = env.svc.Student(ctx, env.adminP, env.student.ID); err != nil {
		t.Errorf("admin Student() = %v; want success", err)
	}
}

// The dashboard reads the cached progress, so course-side task writes must
// leave the cache agreeing with the calculator.
func TestStudentDashboardTracksTaskChanges(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	read := testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	testutil.Enroll(t, env.progRepo, env.student.ID, crs.ID)

	if _, err := env.progSvc.CompleteTextTask(ctx, env.studentP, read.ID); err != nil {
		t.Fatalf("CompleteTextTask(): %v", err)
	}
	db, err := env.svc.Student(ctx, env.studentP, env.student.ID)
	if err != nil {
		t.Fatalf("Student(): %v", err)
	}
	if got := db.Courses[0]; got.Progress != 100 || got.EnrollmentStatus != progress.EnrollmentCompleted {
		t.Fatalf("course = %+v; want completed at 100%%", got)
	}

	// the instructor adds a second task; the payload follows the calculator
	if _, err = env.crsSvc.AddTask(ctx, env.teacherP, crs.ID, course.NewTask{Title: "Read chapter 2", Order: 2, Type: course.TaskText}); err != nil {
		t.Fatalf("AddTask(): %v", err)
	}
	if db, err = env.svc.Student(ctx, env.studentP, env.student.ID); err != nil {
		t.Fatalf("Student(): %v", err)
	}
	got := db.Courses[0]
	if got.Progress != 50 || got.EnrollmentStatus != progress.EnrollmentActive {
		t.Errorf("course = %+v; want active at 50%%", got)
	}
	cp, err := env.progSvc.StudentProgress(ctx, env.studentP, env.student.ID, crs.ID)
	if err != nil {
		t.Fatalf("StudentProgress(): %v", err)
	}
	if got.Progress != cp.PercentComplete {
		t.Errorf("dashboard = %v, calculator = %v; they must agree", got.Progress, cp.PercentComplete)
	}
}

func TestStudentDashboardExcludesBlankTitledCourses(t *testing.T) {
	env := setup(t)
	good := testutil.CreateCourse(t, env.crsRepo, "Algebra I", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	broken := testutil.CreateCourse(t, env.crsRepo, "", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	testutil.Enroll(t, env.progRepo, env.student.ID, good.ID)
	testutil.Enroll(t, env.progRepo, env.student.ID, broken.ID)

	db, err := env.svc.Student(ctx, env.studentP, env.student.ID)
	if err != nil {
		t.Fatalf("Student(): %v", err)
	}
	if len(db.Courses) != 1 || db.Courses[0].CourseID != good.ID {
		t.Errorf("Courses = %+v; want the titled course only", db.Courses)
	}
	if db.Progress.TotalCourses != 1 {
		t.Errorf("TotalCourses = %d; want 1", db.Progress.TotalCourses)
	}
	if len(env.logger.warnings) == 0 {
		t.Error("excluding a blank-titled course must log a warning")
	}
}

func TestInstructorDashboard(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	essay := testutil.CreateTask(t, env.crsRepo, crs.ID, "Essay", 1, course.TaskSubmission, 10)
	testutil.Enroll(t, env.progRepo, env.student.ID, crs.ID)
	if _, err := env.progSvc.Submit(ctx, env.studentP, progress.NewSubmission{TaskID: essay.ID, Content: "work"}); err != nil {
		t.Fatalf("Submit(): %v", err)
	}

	db, err := env.svc.Instructor(ctx, env.teacherP)
	if err != nil {
		t.Fatalf("Instructor(): %v", err)
	}
	if len(db.Courses) != 1 {
		t.Fatalf("Courses len = %d; want 1", len(db.Courses))
	}
	got := db.Courses[0]
	if got.StudentCount != 1 || got.PendingGradingCount != 1 {
		t.Errorf("course = %+v; want 1 student, 1 pending grade", got)
	}
	if len(db.RecentSubmissionsNeedingGrading) != 1 {
		t.Errorf("grading queue len = %d; want 1", len(db.RecentSubmissionsNeedingGrading))
	}

	// students never see the instructor payload
	_, err = env.svc.Instructor(ctx, env.studentP)
	if !core.IsForbidden(err) {
		t.Errorf("student Instructor() = %v; want forbidden", err)
	}
}

func TestAdminDashboard(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	essay := testutil.CreateTask(t, env.crsRepo, crs.ID, "Essay", 1, course.TaskSubmission, 10)
	testutil.Enroll(t, env.progRepo, env.student.ID, crs.ID)
	if _, err := env.progSvc.Submit(ctx, env.studentP, progress.NewSubmission{TaskID: essay.ID, Content: "work"}); err != nil {
		t.Fatalf("Submit(): %v", err)
	}

	db, err := env.svc.Admin(ctx, env.adminP)
	if err != nil {
		t.Fatalf("Admin(): %v", err)
	}
	want := dashboard.PlatformTotals{Users: 3, Courses: 1, ActiveEnrollments: 1, SubmissionsLast7d: 1}
	if db.PlatformTotals != want {
		t.Errorf("totals = %+v; want %+v", db.PlatformTotals, want)
	}
	if len(db.RecentSignups) != 3 || len(db.RecentCourses) != 1 {
		t.Errorf("recents = %d signups, %d courses; want 3 and 1", len(db.RecentSignups), len(db.RecentCourses))
	}

	_, err = env.svc.Admin(ctx, env.teacherP)
	if !core.IsForbidden(err) {
		t.Errorf("instructor Admin() = %v; want forbidden", err)
	}
}

func TestForPrincipal(t *testing.T) {
	env := setup(t)

	if _, err := env.svc.ForPrincipal(ctx, env.studentP); err != nil {
		t.Errorf("ForPrincipal(student) = %v; want success", err)
	}
	if _, err := env.svc.ForPrincipal(ctx, env.teacherP); err != nil {
		t.Errorf("ForPrincipal(instructor) = %v; want success", err)
	}
	if _, err := env.svc.ForPrincipal(ctx, env.adminP); err != nil {
		t.Errorf("ForPrincipal(admin) = %v; want success", err)
	}
	if _, err := env.svc.ForPrincipal(ctx, auth.Anonymous()); !core.IsForbidden(err) {
		t.Errorf("ForPrincipal(anonymous) = %v; want forbidden", err)
	}
}

func TestCourseAnalytics(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	read := testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	testutil.Enroll(t, env.progRepo, env.student.ID, crs.ID)
	other := testutil.CreateUser(t, env.usrRepo, "Bob", "bob", "bob@test.darasa", "", auth.RoleStudent, true)
	testutil.Enroll(t, env.progRepo, other.ID, crs.ID)

	// one of two students completes the single task
	if _, err := env.progSvc.CompleteTextTask(ctx, env.studentP, read.ID); err != nil {
		t.Fatalf("CompleteTextTask(): %v", err)
	}

	ca, err := env.svc.CourseAnalytics(ctx, env.teacherP, crs.ID)
	if err != nil {
		t.Fatalf("CourseAnalytics(): %v", err)
	}
	if ca.StudentCount != 2 || ca.AvgProgress != 50 || ca.CompletionRate != 0.5 {
		t.Errorf("analytics = %+v; want 2 students, 50%% avg, 0.5 completion", ca)
	}

	// a foreign instructor cannot even learn the course exists
	rival := testutil.CreateUser(t, env.usrRepo, "Rival", "rival", "rival@test.darasa", "", auth.RoleInstructor, true)
	_, err = env.svc.CourseAnalytics(ctx, auth.Principal{UserID: rival.ID, Role: auth.RoleInstructor, IsStaff: true}, crs.ID)
	if errors.Cause(err) != course.ErrNotFound {
		t.Errorf("foreign CourseAnalytics() = %v; want %v", err, course.ErrNotFound)
	}

	// admins see every course's analytics
	if _, err = env.svc.CourseAnalytics(ctx, env.adminP, crs.ID); err != nil {
		t.Errorf("admin CourseAnalytics() = %v; want success", err)
	}
}

func TestTaskAnalytics(t *testing.T) {
	env := setup(t)
	crs := testutil.CreateCourse(t, env.crsRepo, "Algebra I", env.teacher.ID, course.StatusPublished, course.VisibilityPublic, 0.5)
	read := testutil.CreateTask(t, env.crsRepo, crs.ID, "Read chapter 1", 1, course.TaskText, 0)
	testutil.CreateTask(t, env.crsRepo, crs.ID, "Essay", 2, course.TaskSubmission, 10)
	testutil.Enroll(t, env.progRepo, env.student.ID, crs.ID)
	other := testutil.CreateUser(t, env.usrRepo, "Bob", "bob", "bob@test.darasa", "", auth.RoleStudent, true)
	testutil.Enroll(t, env.progRepo, other.ID, crs.ID)

	if _, err := env.progSvc.CompleteTextTask(ctx, env.studentP, read.ID); err != nil {
		t.Fatalf("CompleteTextTask(): %v", err)
	}

	tas, err := env.svc.TaskAnalytics(ctx, env.teacherP, crs.ID)
	if err != nil {
		t.Fatalf("TaskAnalytics(): %v", err)
	}
	if len(tas) != 2 {
		t.Fatalf("len = %d; want 2", len(tas))
	}
	if tas[0].TaskID != read.ID || tas[0].CompletedCount != 1 || tas[0].CompletionRate != 0.5 {
		t.Errorf("read task = %+v; want 1 completion, rate 0.5", tas[0])
	}
	if tas[1].CompletedCount != 0 || tas[1].CompletionRate != 0 {
		t.Errorf("essay task = %+v; want no completions", tas[1])
	}
}
