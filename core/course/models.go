package course

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
)

// Course statuses
const (
	StatusDraft      = "DRAFT"
	StatusPublished  = "PUBLISHED"
	StatusArchived   = "ARCHIVED"
	StatusDeprecated = "DEPRECATED"
)

// Course visibilities
const (
	VisibilityPublic  = "PUBLIC"
	VisibilityPrivate = "PRIVATE"
)

// Task types
const (
	TaskText       = "text"
	TaskQuiz       = "quiz"
	TaskSubmission = "submission"
)

type Course struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	Status      string    `json:"status" db:"status"`
	Visibility  string    `json:"visibility" db:"visibility"`
	// PassFraction is the passing threshold for this course's quizzes and
	// graded submissions, as a fraction of the maximum score.
	PassFraction float64   `json:"pass_fraction" db:"pass_fraction"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (c *Course) IsPublished() bool {
	return c.Status == StatusPublished
}

func (c *Course) IsPublic() bool {
	return c.Visibility == VisibilityPublic
}

func (c *Course) Meta() auth.CourseMeta {
	return auth.CourseMeta{
		CreatedBy: c.CreatedBy,
		Published: c.IsPublished(),
		Public:    c.IsPublic(),
	}
}

// Task is a single learning task in a course. Order is unique within the
// course and gap-tolerant.
type Task struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Order       int       `json:"order" db:"ord"`
	Type        string    `json:"type" db:"type"`
	Deadline    null.Time `json:"deadline" db:"deadline"`
	MaxScore    int       `json:"max_score" db:"max_score"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Question struct {
	ID       string   `json:"id" db:"id"`
	TaskID   string   `json:"task_id" db:"task_id"`
	Prompt   string   `json:"prompt" db:"prompt"`
	Position int      `json:"position" db:"position"`
	Options  []Option `json:"options"`
}

// CorrectOption returns the single option marked correct.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

type Option struct {
	ID         string `json:"id" db:"id"`
	QuestionID string `json:"question_id" db:"question_id"`
	Text       string `json:"text" db:"text"`
	Position   int    `json:"position" db:"position"`
	IsCorrect  bool   `json:"is_correct" db:"is_correct"`
}

// Quiz is a quiz-type Task together with its ordered questions and options.
type Quiz struct {
	Task      Task       `json:"task"`
	Questions []Question `json:"questions"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description"`
	Visibility   string   `json:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	PassFraction *float64 `json:"pass_fraction" validate:"omitempty,gte=0,lte=1"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	if nc.Visibility == "" {
		nc.Visibility = VisibilityPrivate
	}
	return validate.Struct(nc)
}

// UpdateCourse defines a partial update; nil fields are left untouched.
type UpdateCourse struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Status       *string  `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED DEPRECATED"`
	Visibility   *string  `json:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	PassFraction *float64 `json:"pass_fraction" validate:"omitempty,gte=0,lte=1"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Title != nil {
		title := core.CleanString(*uc.Title)
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
		}
		uc.Title = &title
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

// NewTask contains information needed to add a task to a course.
// Quiz tasks are created through NewQuiz instead.
type NewTask struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Order       int       `json:"order" validate:"gte=0"`
	Type        string    `json:"type" validate:"required,oneof=text submission"`
	Deadline    null.Time `json:"deadline"`
	MaxScore    int       `json:"max_score" validate:"gte=0"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	if nt.Type == TaskText {
		nt.MaxScore = 0
	}
	return validate.Struct(nt)
}

// UpdateTask defines a partial task update; the type is immutable.
type UpdateTask struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Order       *int       `json:"order" validate:"omitempty,gte=0"`
	Deadline    *null.Time `json:"deadline"`
	MaxScore    *int       `json:"max_score" validate:"omitempty,gte=0"`
	IsActive    *bool      `json:"is_active"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	if ut.Title != nil {
		title := core.CleanString(*ut.Title)
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
		}
		ut.Title = &title
	}
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	return validate.Struct(ut)
}

type (
	// NewQuiz contains information needed to add a quiz task with its
	// questions in one shot. The task's max score is the question count.
	NewQuiz struct {
		Task      NewQuizTask   `json:"task"`
		Questions []NewQuestion `json:"questions" validate:"required,min=1,dive"`
	}

	NewQuizTask struct {
		Title       string    `json:"title" validate:"required"`
		Description string    `json:"description"`
		Order       int       `json:"order" validate:"gte=0"`
		Deadline    null.Time `json:"deadline"`
	}

	NewQuestion struct {
		Prompt  string      `json:"prompt" validate:"required"`
		Options []NewOption `json:"options" validate:"required,min=2,dive"`
	}

	NewOption struct {
		Text      string `json:"text" validate:"required"`
		IsCorrect bool   `json:"is_correct"`
	}
)

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Task.Title = core.CleanString(nq.Task.Title)
	nq.Task.Description = core.CleanString(nq.Task.Description)
	for i := range nq.Questions {
		q := &nq.Questions[i]
		q.Prompt = core.CleanString(q.Prompt)
		var correct int
		for j := range q.Options {
			q.Options[j].Text = core.CleanString(q.Options[j].Text)
			if q.Options[j].IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return core.NewValidationError(nil, core.FieldError{
				Field: fmt.Sprintf("questions[%d].options", i),
				Error: "exactly one option must be marked correct",
			})
		}
	}
	return validate.Struct(nq)
}

// QueryFilter applies AND on available fields; Scope is resolved from the
// caller's Principal before the query reaches the store.
type QueryFilter struct {
	Search    string `query:"search"`
	Status    string `query:"status"`
	CreatedBy string `query:"-"`
	Since     time.Time
	Scope     auth.CourseScope
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status)
}
