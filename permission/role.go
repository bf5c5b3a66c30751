package permission

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownRole is returned when a role name does not match any portal role.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownStatus is returned when a status name does not match any account status.
	ErrUnknownStatus = errors.New("unknown account status")
)

// Role is the immutable portal role assigned at registration.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleEmployer
	RoleProfessor
	RoleAdmin
)

var roleNames = [...]string{
	RoleUnknown:   "",
	RoleStudent:   "STUDENT",
	RoleEmployer:  "EMPLOYER",
	RoleProfessor: "PROFESSOR",
	RoleAdmin:     "ADMIN",
}

// Roles lists every assignable role in declaration order.
func Roles() []Role {
	return []Role{RoleStudent, RoleEmployer, RoleProfessor, RoleAdmin}
}

func (r Role) String() string {
	if int(r) >= len(roleNames) {
		return ""
	}
	return roleNames[r]
}

// Valid reports whether r is one of the four portal roles.
func (r Role) Valid() bool {
	return r >= RoleStudent && r <= RoleAdmin
}

// ParseRole maps a case-insensitive role name to a Role.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, r := range Roles() {
		if roleNames[r] == name {
			return r, nil
		}
	}
	return RoleUnknown, ErrUnknownRole
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Status is the administrative account status. Only the admin status
// action mutates it.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusApproved
	StatusSuspended
	StatusRejected
)

var statusNames = [...]string{
	StatusUnknown:   "",
	StatusPending:   "PENDING",
	StatusApproved:  "APPROVED",
	StatusSuspended: "SUSPENDED",
	StatusRejected:  "REJECTED",
}

func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return ""
	}
	return statusNames[s]
}

func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusRejected
}

// Disabled reports whether the status blocks login and renewal.
func (s Status) Disabled() bool {
	return s == StatusSuspended || s == StatusRejected
}

// ParseStatus maps a case-insensitive status name to a Status.
func ParseStatus(s string) (Status, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for st := StatusPending; st <= StatusRejected; st++ {
		if statusNames[st] == name {
			return st, nil
		}
	}
	return StatusUnknown, ErrUnknownStatus
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrUnknownStatus
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
