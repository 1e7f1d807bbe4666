package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/progress"
)

type progressApi struct {
	svc progress.ServiceInterface
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{svc: deps.ProgressSvc}

	eg := g.Group("/enrollments", jwt)
	eg.POST("", api.enroll)
	eg.GET("", api.queryEnrollments)

	g.POST("/task-progress/:task_id/complete", api.completeTask, jwt)

	sg := g.Group("/submissions", jwt)
	sg.POST("", api.submit)
	sg.GET("", api.querySubmissions)
	sg.POST("/:id/grade", api.grade, staffMiddleware())

	g.POST("/quiz-attempts", api.attemptQuiz, jwt)
}

// Handlers

func (api *progressApi) enroll(ctx echo.Context) error {
	var data progress.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), contextPrincipal(ctx), data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *progressApi) queryEnrollments(ctx echo.Context) error {
	filter := progress.EnrollmentFilter{
		UserID:   ctx.QueryParam("user"),
		CourseID: ctx.QueryParam("course"),
		Status:   ctx.QueryParam("status"),
	}
	pages := bindPages(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "enrolled_at", "updated_at", "progress", "status")

	enrs, count, err := api.svc.ListEnrollments(ctx.Request().Context(), contextPrincipal(ctx), filter, pages, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []progress.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, newPage(ctx, pages, count, enrs))
}

func (api *progressApi) completeTask(ctx echo.Context) error {
	tp, err := api.svc.CompleteTextTask(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("task_id"))
	if err != nil {
		return errors.Wrap(err, "completing task")
	}
	return ctx.JSON(http.StatusCreated, tp)
}

func (api *progressApi) submit(ctx echo.Context) error {
	var data progress.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), contextPrincipal(ctx), data)
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *progressApi) querySubmissions(ctx echo.Context) error {
	filter := progress.SubmissionFilter{
		UserID:       ctx.QueryParam("user"),
		TaskID:       ctx.QueryParam("task"),
		CourseID:     ctx.QueryParam("course"),
		UngradedOnly: ctx.QueryParam("ungraded") == "true",
	}
	pages := bindPages(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx, "submitted_at", "updated_at")

	subs, count, err := api.svc.ListSubmissions(ctx.Request().Context(), contextPrincipal(ctx), filter, pages, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []progress.Submission{}
	}
	return ctx.JSON(http.StatusOK, newPage(ctx, pages, count, subs))
}

func (api *progressApi) grade(ctx echo.Context) error {
	var data progress.Grade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}

	sub, err := api.svc.GradeSubmission(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *progressApi) attemptQuiz(ctx echo.Context) error {
	var data progress.NewAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttempt")
	}

	att, err := api.svc.AttemptQuiz(ctx.Request().Context(), contextPrincipal(ctx), data)
	if err != nil {
		return errors.Wrap(err, "recording quiz attempt")
	}
	return ctx.JSON(http.StatusCreated, att)
}
