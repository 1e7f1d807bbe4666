package progress

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
)

// Enrollment statuses
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
)

// Task progress states
const (
	StateNotStarted = "not_started"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
)

// Activity event kinds
const (
	ActivitySubmission   = "submission"
	ActivityQuizAttempt  = "quiz_attempt"
	ActivityTaskProgress = "task_progress"
)

// Enrollment is a (user, course) participation. Progress is a cache of the
// calculator's output, recomputed inside the same transaction as any write
// that affects it.
type Enrollment struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	CourseID   string    `json:"course_id" db:"course_id"`
	Status     string    `json:"status" db:"status"`
	Progress   float64   `json:"progress" db:"progress"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`   // UTC
}

// TaskProgress is a (user, task) state row; absent rows read as not_started.
type TaskProgress struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	State     string    `json:"state" db:"state"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type Submission struct {
	ID          string      `json:"id" db:"id"`
	TaskID      string      `json:"task_id" db:"task_id"`
	UserID      string      `json:"user_id" db:"user_id"`
	Content     string      `json:"content" db:"content"`
	SubmittedAt time.Time   `json:"submitted_at" db:"submitted_at"` // UTC
	Score       null.Int    `json:"score" db:"score"`
	GradedBy    null.String `json:"graded_by" db:"graded_by"`
	IsGraded    bool        `json:"is_graded" db:"is_graded"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// Attempt is one completed traversal of a quiz by one user.
// Selections maps question id to the selected option id.
type Attempt struct {
	ID           string            `json:"id" db:"id"`
	UserID       string            `json:"user_id" db:"user_id"`
	TaskID       string            `json:"task_id" db:"task_id"`
	AttemptIndex int               `json:"attempt_index" db:"attempt_index"`
	Selections   map[string]string `json:"selections" db:"-"`
	Score        int               `json:"score" db:"score"`
	Passed       bool              `json:"passed" db:"passed"`
	CompletedAt  time.Time         `json:"completed_at" db:"completed_at"` // UTC
}

// ActivityEvent is one entry of a user's merged activity timeline.
type ActivityEvent struct {
	Kind       string    `json:"kind"`
	TaskID     string    `json:"task_id"`
	TaskTitle  string    `json:"task_title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"` // UTC
}

// NewEnrollment contains information needed to enroll a student.
type NewEnrollment struct {
	CourseID string `json:"course_id" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID)
	return validate.Struct(ne)
}

// NewSubmission contains information needed to submit work for a task.
type NewSubmission struct {
	TaskID  string `json:"task_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.TaskID = core.CleanString(ns.TaskID)
	ns.Content = core.CleanString(ns.Content)
	return validate.Struct(ns)
}

// Grade sets a submission's score.
type Grade struct {
	Score int `json:"score" validate:"gte=0"`
}

func (g *Grade) Validate(validate *validator.Validate) error {
	return validate.Struct(g)
}

// NewAttempt contains a student's quiz selections, question id → option id.
type NewAttempt struct {
	TaskID     string            `json:"task_id" validate:"required"`
	Selections map[string]string `json:"selections" validate:"required,min=1"`
}

func (na *NewAttempt) Validate(validate *validator.Validate) error {
	na.TaskID = core.CleanString(na.TaskID)
	return validate.Struct(na)
}

type (
	// EnrollmentFilter applies AND on available fields, within Scope.
	EnrollmentFilter struct {
		UserID   string
		CourseID string
		Status   string
		Scope    auth.StudentDataScope
	}

	// SubmissionFilter applies AND on available fields, within Scope.
	SubmissionFilter struct {
		UserID       string
		TaskID       string
		CourseID     string
		UngradedOnly bool
		Since        time.Time
		Scope        auth.StudentDataScope
	}

	// AttemptFilter applies AND on available fields, within Scope.
	AttemptFilter struct {
		UserID   string
		TaskID   string
		CourseID string
		Scope    auth.StudentDataScope
	}

	// TaskProgressFilter applies AND on available fields, within Scope.
	TaskProgressFilter struct {
		UserID   string
		TaskID   string
		CourseID string
		Scope    auth.StudentDataScope
	}
)
