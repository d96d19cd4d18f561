package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/temario/core"
)

// Role is the single role a User holds.
type Role string

const (
	RoleStudent  Role = "estudiante"
	RoleTeacher  Role = "docente"
	RoleReviewer Role = "revisor"
	RoleAdmin    Role = "admin"
)

var (
	AllRoles = []Role{RoleStudent, RoleTeacher, RoleReviewer, RoleAdmin}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Reviewer", Value: RoleReviewer},
		{Name: "Admin", Value: RoleAdmin},
	}
)

// Valid reports whether r is one of AllRoles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

// ParseRole cleans s and returns the matching Role.
func ParseRole(s string) (Role, bool) {
	r := Role(core.CleanString(s, true /* lower */))
	return r, r.Valid()
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	OrganizationID string    `json:"organization_id,omitempty"`
	IsSuper        bool      `json:"is_super"`
	IsActive       bool      `json:"is_active"`
	PasswordHash   []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
	LastLogin      time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool  { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool  { return u.Role == RoleTeacher }
func (u *User) IsReviewer() bool { return u.Role == RoleReviewer }
func (u *User) IsAdmin() bool    { return u.Role == RoleAdmin }

// CanManageUsers reports whether u may register and list other users.
func (u *User) CanManageUsers() bool { return u.IsSuper || u.IsAdmin() }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            Role   `json:"role" validate:"required,role"`
	OrganizationID  string `json:"organization_id"`
	IsSuper         bool   `json:"is_super"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
	nu.OrganizationID = core.CleanString(nu.OrganizationID)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

type GetFilter struct {
	ID              string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search         string `query:"search"`
	Roles          []Role `query:"role"`
	OrganizationID string `query:"organization_id"`
	IsActive       *bool  `query:"is_active"`
	NoOrganization bool   `query:"-"` // only users outside any organization, OrganizationID is ignored
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.OrganizationID == "" && !qf.NoOrganization && qf.IsActive == nil
}

// ScopeTo restricts the filter to what usr may list: a super user lists everyone,
// anyone else only their own organization, or org-less users when they have none.
func (qf *QueryFilter) ScopeTo(usr *User) {
	if usr.IsSuper {
		return
	}
	qf.OrganizationID = usr.OrganizationID
	qf.NoOrganization = usr.OrganizationID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.OrganizationID = core.CleanString(qf.OrganizationID)
}
