package tests

import (
	"os"
	"testing"

	. "github.com/trezcool/darasa/apps/api/echo"
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

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func TestMain(m *testing.M) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)
	os.Exit(m.Run())
}

type testEnv struct {
	app      *Server
	conf     *core.Config
	db       *dummydb.DB
	usrRepo  user.Repository
	crsRepo  course.Repository
	progRepo progress.Repository
}

// setup builds a full server on a fresh in-memory store.
func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup(): %v", err)
	}

	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()

	usrRepo := dummydb.NewUserRepository(db)
	crsRepo := dummydb.NewCourseRepository(db)
	progRepo := dummydb.NewProgressRepository(db)
	atomic := dummydb.NewAtomic(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	progSvc := progress.NewService(progRepo, crsRepo, usrRepo, atomic, mailSvc, validate, conf)
	crsSvc := course.NewService(crsRepo, progRepo, progRepo, progSvc, atomic, validate, conf)
	dashSvc := dashboard.NewService(usrRepo, crsRepo, progRepo, progSvc, logger, conf)

	app := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		CourseSvc:    crsSvc,
		ProgressSvc:  progSvc,
		DashboardSvc: dashSvc,
		Validate:     validate,
		Translator:   translator,
	})
	return &testEnv{app: app, conf: conf, db: db, usrRepo: usrRepo, crsRepo: crsRepo, progRepo: progRepo}
}

func (env *testEnv) student(t *testing.T, name, uname string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, env.usrRepo, name, uname, uname+"@test.darasa", "PassW0rd!", auth.RoleStudent, true)
	return usr, getToken(t, env.conf, usr)
}

func (env *testEnv) instructor(t *testing.T, name, uname string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, env.usrRepo, name, uname, uname+"@test.darasa", "PassW0rd!", auth.RoleInstructor, true)
	return usr, getToken(t, env.conf, usr)
}

func (env *testEnv) admin(t *testing.T, name, uname string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, env.usrRepo, name, uname, uname+"@test.darasa", "PassW0rd!", auth.RoleAdmin, true)
	return usr, getToken(t, env.conf, usr)
}
