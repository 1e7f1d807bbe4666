package auth

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

var (
	AllRoles   = []string{RoleStudent, RoleInstructor, RoleAdmin}
	StaffRoles = []string{RoleInstructor, RoleAdmin}

	rolePriorities = map[string]int{
		RoleAdmin:      3,
		RoleInstructor: 2,
		RoleStudent:    1,
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func IsValidRole(role string) bool {
	return rolePriorities[role] > 0
}

// Principal is an authenticated caller with a resolved role; the zero value
// is an anonymous caller.
type Principal struct {
	UserID  string
	Role    string
	IsStaff bool
}

func Anonymous() Principal {
	return Principal{}
}

func (p Principal) IsAnonymous() bool {
	return p.UserID == ""
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsInstructor() bool {
	return p.Role == RoleInstructor
}

func (p Principal) IsStudent() bool {
	return p.Role == RoleStudent
}

// CourseMeta is the slice of a course the capability predicates care about.
type CourseMeta struct {
	CreatedBy string
	Published bool
	Public    bool
}

// CanViewCourse reports whether p may see a course at all.
// enrolled is p's enrollment in that course, resolved by the caller.
func CanViewCourse(p Principal, c CourseMeta, enrolled bool) bool {
	switch {
	case p.IsAdmin():
		return true
	case p.IsInstructor():
		return c.CreatedBy == p.UserID || (c.Published && c.Public)
	case p.IsStudent():
		return enrolled || (c.Published && c.Public)
	default: // anonymous
		return c.Published && c.Public
	}
}

// CanEditCourse reports whether p may modify a course.
func CanEditCourse(p Principal, c CourseMeta) bool {
	if p.IsAdmin() {
		return true
	}
	return p.IsInstructor() && c.CreatedBy == p.UserID
}

func CanCreateCourse(p Principal) bool {
	return p.IsAdmin() || p.IsInstructor()
}

// CanGrade reports whether p may grade submissions at all; ownership of the
// submission's course is checked separately via ScopeStudentData.
func CanGrade(p Principal) bool {
	return p.IsAdmin() || p.IsInstructor()
}

// CanViewProgressOf reports whether p may see a student's progress without
// consulting the store. Instructors additionally see students of their own
// courses; that case requires the ownership scope and is resolved by the
// services through ScopeStudentData.
func CanViewProgressOf(p Principal, studentID string) bool {
	return p.IsAdmin() || (!p.IsAnonymous() && p.UserID == studentID)
}
