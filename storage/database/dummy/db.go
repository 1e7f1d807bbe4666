package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/user"
)

// DB is the in-memory store used by tests and local development. All tables
// share one lock; values are copied in and out so callers never alias rows.
type DB struct {
	sync.RWMutex
	users        map[string]user.User
	courses      map[string]course.Course
	tasks        map[string]course.Task
	questions    map[string]course.Question
	enrollments  map[string]progress.Enrollment
	taskProgress map[string]progress.TaskProgress
	submissions  map[string]progress.Submission
	attempts     map[string]progress.Attempt

	// write-failure injection for rollback tests
	failAfter int
	failErr   error
}

func Open() (*DB, error) {
	return &DB{
		users:        make(map[string]user.User),
		courses:      make(map[string]course.Course),
		tasks:        make(map[string]course.Task),
		questions:    make(map[string]course.Question),
		enrollments:  make(map[string]progress.Enrollment),
		taskProgress: make(map[string]progress.TaskProgress),
		submissions:  make(map[string]progress.Submission),
		attempts:     make(map[string]progress.Attempt),
	}, nil
}

// FailAfterWrites makes the store fail with err once n further writes have
// succeeded. A single shot; cleared when it fires.
func (db *DB) FailAfterWrites(n int, err error) {
	db.Lock()
	defer db.Unlock()
	db.failAfter = n
	db.failErr = err
}

// writeGate must be called (under lock) by every mutating operation.
func (db *DB) writeGate() error {
	if db.failErr == nil {
		return nil
	}
	if db.failAfter > 0 {
		db.failAfter--
		return nil
	}
	err := db.failErr
	db.failErr = nil
	return err
}

type snapshot struct {
	users        map[string]user.User
	courses      map[string]course.Course
	tasks        map[string]course.Task
	questions    map[string]course.Question
	enrollments  map[string]progress.Enrollment
	taskProgress map[string]progress.TaskProgress
	submissions  map[string]progress.Submission
	attempts     map[string]progress.Attempt
}

func (db *DB) snapshot() snapshot {
	return snapshot{
		users:        copyUsers(db.users),
		courses:      copyCourses(db.courses),
		tasks:        copyTasks(db.tasks),
		questions:    copyQuestions(db.questions),
		enrollments:  copyEnrollments(db.enrollments),
		taskProgress: copyTaskProgress(db.taskProgress),
		submissions:  copySubmissions(db.submissions),
		attempts:     copyAttempts(db.attempts),
	}
}

func (db *DB) restore(snap snapshot) {
	db.users = snap.users
	db.courses = snap.courses
	db.tasks = snap.tasks
	db.questions = snap.questions
	db.enrollments = snap.enrollments
	db.taskProgress = snap.taskProgress
	db.submissions = snap.submissions
	db.attempts = snap.attempts
}

func copyUsers(src map[string]user.User) map[string]user.User {
	dst := make(map[string]user.User, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyCourses(src map[string]course.Course) map[string]course.Course {
	dst := make(map[string]course.Course, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyTasks(src map[string]course.Task) map[string]course.Task {
	dst := make(map[string]course.Task, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyEnrollments(src map[string]progress.Enrollment) map[string]progress.Enrollment {
	dst := make(map[string]progress.Enrollment, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyTaskProgress(src map[string]progress.TaskProgress) map[string]progress.TaskProgress {
	dst := make(map[string]progress.TaskProgress, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copySubmissions(src map[string]progress.Submission) map[string]progress.Submission {
	dst := make(map[string]progress.Submission, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyQuestions(src map[string]course.Question) map[string]course.Question {
	dst := make(map[string]course.Question, len(src))
	for k, q := range src {
		opts := make([]course.Option, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		dst[k] = q
	}
	return dst
}

func copyAttempts(src map[string]progress.Attempt) map[string]progress.Attempt {
	dst := make(map[string]progress.Attempt, len(src))
	for k, att := range src {
		sels := make(map[string]string, len(att.Selections))
		for q, o := range att.Selections {
			sels[q] = o
		}
		att.Selections = sels
		dst[k] = att
	}
	return dst
}

// atomic implements core.Atomic by snapshotting the whole store and
// restoring it when fn fails, so rollback semantics match the real database.
type atomic struct {
	db *DB
}

var _ core.Atomic = (*atomic)(nil) // interface compliance check

func NewAtomic(db *DB) *atomic {
	return &atomic{db: db}
}

func (a *atomic) RunInTx(_ context.Context, _ bool, fn func(exec core.DBExecutor) error) error {
	a.db.Lock()
	snap := a.db.snapshot()
	a.db.Unlock()

	defer func() {
		if p := recover(); p != nil {
			a.db.Lock()
			a.db.restore(snap)
			a.db.Unlock()
			panic(p)
		}
	}()

	if err := fn(nil); err != nil {
		a.db.Lock()
		a.db.restore(snap)
		a.db.Unlock()
		return err
	}
	return nil
}
