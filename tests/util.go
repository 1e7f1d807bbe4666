package testutil

import (
	"context"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/user"
)

// NewConfig returns a self-contained test configuration; nothing is read from
// the environment.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "Darasa",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Darasa", Address: "noreply@localhost"},
		PassFraction:     0.5,
		Server: core.ServerConfig{
			Host:                      "localhost",
			Addr:                      ":0",
			ShutdownTimeout:           5 * time.Second,
			StoreTimeout:              10 * time.Second,
			JWTExpirationDelta:        4 * time.Hour,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
		},
	}
}

// NewValidator returns a validator with all app validations registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// Logger is a plain stdout logger for tests.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return &Logger{} }

func (l Logger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) { l.print("FATAL", msg, args); panic(msg) }

func (l Logger) print(level, msg string, args []interface{}) {
	log.Printf("%s : %s %v", level, msg, args)
}

// Fixtures

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title, createdBy, status, visibility string,
	passFraction float64,
	createdAt ...time.Time,
) course.Course {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs := course.Course{
		Title:        title,
		CreatedBy:    createdBy,
		Status:       status,
		Visibility:   visibility,
		PassFraction: passFraction,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return crs
}

func CreateTask(
	t *testing.T,
	repo course.Repository,
	courseID, title string,
	order int,
	typ string,
	maxScore int,
) course.Task {
	t.Helper()
	now := time.Now().UTC()
	tsk := course.Task{
		CourseID:  courseID,
		Title:     title,
		Order:     order,
		Type:      typ,
		MaxScore:  maxScore,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tsk, err := repo.CreateTask(context.Background(), tsk)
	if err != nil {
		t.Fatalf("CreateTask(): %v", err)
	}
	return tsk
}

// CreateQuiz adds a quiz task with numQuestions questions of three options
// each; the first option of every question is the correct one.
func CreateQuiz(
	t *testing.T,
	repo course.Repository,
	courseID, title string,
	order, numQuestions int,
) course.Quiz {
	t.Helper()
	now := time.Now().UTC()
	qz := course.Quiz{
		Task: course.Task{
			CourseID:  courseID,
			Title:     title,
			Order:     order,
			Type:      course.TaskQuiz,
			MaxScore:  numQuestions,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for i := 0; i < numQuestions; i++ {
		q := course.Question{Prompt: "Question?", Position: i}
		for j := 0; j < 3; j++ {
			q.Options = append(q.Options, course.Option{
				Text:      "Option",
				Position:  j,
				IsCorrect: j == 0,
			})
		}
		qz.Questions = append(qz.Questions, q)
	}
	qz, err := repo.CreateQuiz(context.Background(), qz)
	if err != nil {
		t.Fatalf("CreateQuiz(): %v", err)
	}
	return qz
}

func Enroll(t *testing.T, repo progress.Repository, userID, courseID string) progress.Enrollment {
	t.Helper()
	now := time.Now().UTC()
	enr, err := repo.UpsertEnrollment(context.Background(), progress.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     progress.EnrollmentActive,
		EnrolledAt: now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("Enroll(): %v", err)
	}
	return enr
}

// CorrectSelections answers every question of qz correctly.
func CorrectSelections(qz course.Quiz) map[string]string {
	sels := make(map[string]string, len(qz.Questions))
	for _, q := range qz.Questions {
		if opt := q.CorrectOption(); opt != nil {
			sels[q.ID] = opt.ID
		}
	}
	return sels
}

// WrongSelections answers every question of qz incorrectly.
func WrongSelections(qz course.Quiz) map[string]string {
	sels := make(map[string]string, len(qz.Questions))
	for _, q := range qz.Questions {
		for _, opt := range q.Options {
			if !opt.IsCorrect {
				sels[q.ID] = opt.ID
				break
			}
		}
	}
	return sels
}
