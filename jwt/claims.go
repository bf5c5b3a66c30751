package jwt

import (
	"time"

	"github.com/MrEthical07/portalauth/permission"
)

// TokenUse separates session credentials from renewal credentials so a
// token minted for one purpose never verifies as the other.
type TokenUse string

const (
	UseAccess  TokenUse = "access"
	UseRefresh TokenUse = "refresh"
)

// RoleAttributes is the closed set of role-scoped claim shapes. Switch on the
// concrete type ([Student], [Employer], [Professor], [Admin]) to branch on role.
type RoleAttributes interface {
	Role() permission.Role
	roleAttributes()
}

type Student struct{}

// Employer carries the company profile the employer account manages.
type Employer struct {
	CompanyProfileID string
}

type Professor struct{}

type Admin struct{}

func (Student) Role() permission.Role   { return permission.RoleStudent }
func (Employer) Role() permission.Role  { return permission.RoleEmployer }
func (Professor) Role() permission.Role { return permission.RoleProfessor }
func (Admin) Role() permission.Role     { return permission.RoleAdmin }

func (Student) roleAttributes()   {}
func (Employer) roleAttributes()  {}
func (Professor) roleAttributes() {}
func (Admin) roleAttributes()     {}

// AttributesFor builds the attribute variant for role. companyProfileID is
// only kept for employers.
func AttributesFor(role permission.Role, companyProfileID string) (RoleAttributes, error) {
	switch role {
	case permission.RoleStudent:
		return Student{}, nil
	case permission.RoleEmployer:
		return Employer{CompanyProfileID: companyProfileID}, nil
	case permission.RoleProfessor:
		return Professor{}, nil
	case permission.RoleAdmin:
		return Admin{}, nil
	default:
		return nil, permission.ErrUnknownRole
	}
}

// Claims is the decoded content of a credential. Session credentials carry
// Attributes, Status and Verified as captured at issuance; renewal credentials
// carry only SubjectID and TokenID.
type Claims struct {
	SubjectID  string
	TokenID    string
	Attributes RoleAttributes
	Status     permission.Status
	Verified   bool
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Role returns the role carried by the attribute variant, or RoleUnknown.
func (c Claims) Role() permission.Role {
	if c.Attributes == nil {
		return permission.RoleUnknown
	}
	return c.Attributes.Role()
}

// CompanyProfileID returns the employer attribute, or "" for other roles.
func (c Claims) CompanyProfileID() string {
	if e, ok := c.Attributes.(Employer); ok {
		return e.CompanyProfileID
	}
	return ""
}
