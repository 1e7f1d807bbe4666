package auth

// Query scopes narrow any list query to what a Principal may see, before it
// reaches the store. They never elevate: a Principal that may see nothing
// gets an empty-result scope, not an error. The whole visibility table lives
// here; repositories only translate scopes into WHERE clauses.

type (
	// CourseScope narrows course queries.
	CourseScope struct {
		All             bool   // no narrowing (admin)
		CreatorID       string // courses created by this user
		EnrolledUserID  string // courses this user is enrolled in
		PublicPublished bool   // PUBLISHED+PUBLIC courses
		None            bool   // nothing visible
	}

	// StudentDataScope narrows enrollment, submission, quiz-attempt and
	// task-progress queries.
	StudentDataScope struct {
		All            bool   // no narrowing (admin)
		UserID         string // rows belonging to this user
		CoursesOwnedBy string // rows for tasks/courses created by this user
		None           bool   // nothing visible
	}
)

// Empty reports whether the scope admits no rows at all. The zero value is
// empty: full visibility always takes an explicit All.
func (s StudentDataScope) Empty() bool {
	return s.None || (!s.All && s.UserID == "" && s.CoursesOwnedBy == "")
}

// ScopeCourses resolves the visibility of courses for p:
// admin sees all; an instructor their own plus public-published; a student
// their enrollments plus public-published; anonymous public-published only.
func ScopeCourses(p Principal) CourseScope {
	switch {
	case p.IsAdmin():
		return CourseScope{All: true}
	case p.IsInstructor():
		return CourseScope{CreatorID: p.UserID, PublicPublished: true}
	case p.IsStudent():
		return CourseScope{EnrolledUserID: p.UserID, PublicPublished: true}
	default:
		return CourseScope{PublicPublished: true}
	}
}

// ScopeStudentData resolves the visibility of per-student rows for p:
// admin sees all; an instructor rows for their own courses; a student their
// own rows; anonymous nothing.
func ScopeStudentData(p Principal) StudentDataScope {
	switch {
	case p.IsAdmin():
		return StudentDataScope{All: true}
	case p.IsInstructor():
		return StudentDataScope{CoursesOwnedBy: p.UserID}
	case p.IsStudent():
		return StudentDataScope{UserID: p.UserID}
	default:
		return StudentDataScope{None: true}
	}
}

// Narrow further restricts a StudentDataScope to a single student. For a
// scope that cannot contain that student's rows the result is None.
func (s StudentDataScope) Narrow(studentID string) StudentDataScope {
	switch {
	case s.Empty():
		return StudentDataScope{None: true}
	case s.All:
		return StudentDataScope{UserID: studentID}
	case s.UserID != "":
		if s.UserID != studentID {
			return StudentDataScope{None: true}
		}
		return s
	default: // CoursesOwnedBy
		return StudentDataScope{UserID: studentID, CoursesOwnedBy: s.CoursesOwnedBy}
	}
}
