package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/progress"
)

type courseApi struct {
	svc      course.ServiceInterface
	dashSvc  dashboard.ServiceInterface
	progSvc  progress.ServiceInterface
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt, optionalJWT echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		dashSvc:  deps.DashboardSvc,
		progSvc:  deps.ProgressSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/courses")

	// visibility rules make these safe for anonymous callers
	cg.GET("", api.query, optionalJWT)
	cg.GET("/:id", api.retrieve, optionalJWT)
	cg.GET("/:id/tasks", api.queryTasks, optionalJWT)

	cg.POST("", api.create, jwt, staffMiddleware())
	cg.PATCH("/:id", api.update, jwt, staffMiddleware())
	cg.DELETE("/:id", api.destroy, jwt, staffMiddleware())
	cg.POST("/:id/tasks", api.addTask, jwt, staffMiddleware())
	cg.POST("/:id/quizzes", api.addQuiz, jwt, staffMiddleware())
	cg.GET("/:id/analytics", api.analytics, jwt, staffMiddleware())
	cg.GET("/:id/task-analytics", api.taskAnalytics, jwt, staffMiddleware())
	cg.GET("/:id/student-progress", api.studentProgress, jwt)

	tg := g.Group("/tasks")
	tg.GET("/:id", api.retrieveTask, optionalJWT)
	tg.PATCH("/:id", api.updateTask, jwt, staffMiddleware())
	tg.GET("/:id/quiz", api.retrieveQuiz, jwt)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	pages := bindPages(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "created_at", "updated_at", "title", "status")

	courses, count, err := api.svc.Filter(ctx.Request().Context(), contextPrincipal(ctx), *filter, pages, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, newPage(ctx, pages, count, courses))
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), contextPrincipal(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	crs, err := api.svc.Update(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) queryTasks(ctx echo.Context) error {
	tasks, err := api.svc.ListTasks(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing course tasks")
	}
	if tasks == nil {
		tasks = []course.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *courseApi) addTask(ctx echo.Context) error {
	var data course.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}

	tsk, err := api.svc.AddTask(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding task")
	}
	return ctx.JSON(http.StatusCreated, tsk)
}

func (api *courseApi) addQuiz(ctx echo.Context) error {
	var data course.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}

	qz, err := api.svc.AddQuiz(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *courseApi) retrieveTask(ctx echo.Context) error {
	tsk, err := api.svc.GetTask(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding task by ID")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *courseApi) updateTask(ctx echo.Context) error {
	var data course.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}

	tsk, err := api.svc.UpdateTask(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *courseApi) retrieveQuiz(ctx echo.Context) error {
	qz, err := api.svc.GetQuiz(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding quiz by task ID")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *courseApi) analytics(ctx echo.Context) error {
	stats, err := api.dashSvc.CourseAnalytics(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing course analytics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *courseApi) taskAnalytics(ctx echo.Context) error {
	stats, err := api.dashSvc.TaskAnalytics(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing task analytics")
	}
	if stats == nil {
		stats = []dashboard.TaskAnalytics{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

// studentProgress reports one student's calculator output for the course;
// without a `user` query param it reports the caller's own.
func (api *courseApi) studentProgress(ctx echo.Context) error {
	p := contextPrincipal(ctx)
	studentID := ctx.QueryParam("user")
	if studentID == "" {
		studentID = p.UserID
	}

	prog, err := api.progSvc.StudentProgress(ctx.Request().Context(), p, studentID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing student progress")
	}
	return ctx.JSON(http.StatusOK, prog)
}
