package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/progress"
)

type studentApi struct {
	progSvc progress.ServiceInterface
	dashSvc dashboard.ServiceInterface
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		progSvc: deps.ProgressSvc,
		dashSvc: deps.DashboardSvc,
	}

	sg := g.Group("/students", jwt)
	sg.GET("/:id/progress", api.progress)
	sg.GET("/:id/quiz-performance", api.quizPerformance)
	sg.GET("/:id/activity", api.activity)
	sg.GET("/:id/dashboard", api.dashboard)

	g.GET("/dashboard", api.myDashboard, jwt)
}

// Handlers

// progress reports the calculator's output for one student; with a `course`
// query param for that course only, otherwise for every enrolled course.
func (api *studentApi) progress(ctx echo.Context) error {
	p := contextPrincipal(ctx)
	studentID := ctx.Param("id")

	if courseID := ctx.QueryParam("course"); courseID != "" {
		prog, err := api.progSvc.StudentProgress(ctx.Request().Context(), p, studentID, courseID)
		if err != nil {
			return errors.Wrap(err, "computing student progress")
		}
		return ctx.JSON(http.StatusOK, []progress.CourseProgress{prog})
	}

	enrs, _, err := api.progSvc.ListEnrollments(ctx.Request().Context(), p,
		progress.EnrollmentFilter{UserID: studentID}, core.Pages{Size: core.MaxPageSize}, nil)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}

	// a student with no visible enrollments is indistinguishable from an
	// unknown one
	if len(enrs) == 0 && !auth.CanViewProgressOf(p, studentID) {
		return errHttpNotFound
	}

	progs := make([]progress.CourseProgress, 0, len(enrs))
	for _, enr := range enrs {
		prog, perr := api.progSvc.StudentProgress(ctx.Request().Context(), p, studentID, enr.CourseID)
		if perr != nil {
			return errors.Wrap(perr, "computing student progress")
		}
		progs = append(progs, prog)
	}
	return ctx.JSON(http.StatusOK, progs)
}

func (api *studentApi) quizPerformance(ctx echo.Context) error {
	perf, err := api.progSvc.StudentQuizPerformance(
		ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), ctx.QueryParam("course"))
	if err != nil {
		return errors.Wrap(err, "computing quiz performance")
	}
	if perf == nil {
		perf = []progress.QuizPerformance{}
	}
	return ctx.JSON(http.StatusOK, perf)
}

func (api *studentApi) activity(ctx echo.Context) error {
	limit := progress.DefaultActivityLimit
	if n, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && n > 0 {
		limit = n
	}

	events, err := api.progSvc.RecentActivity(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), limit)
	if err != nil {
		return errors.Wrap(err, "listing recent activity")
	}
	if events == nil {
		events = []progress.ActivityEvent{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *studentApi) dashboard(ctx echo.Context) error {
	db, err := api.dashSvc.Student(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "assembling student dashboard")
	}
	return ctx.JSON(http.StatusOK, db)
}

// myDashboard returns the payload matching the caller's role.
func (api *studentApi) myDashboard(ctx echo.Context) error {
	db, err := api.dashSvc.ForPrincipal(ctx.Request().Context(), contextPrincipal(ctx))
	if err != nil {
		return errors.Wrap(err, "assembling dashboard")
	}
	return ctx.JSON(http.StatusOK, db)
}
