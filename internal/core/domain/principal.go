package domain

// UserType discriminates the user populations served by the platform.
type UserType string

const (
	// UserTypeSystem identifies back-office operator accounts.
	UserTypeSystem UserType = "system"
	// UserTypeMember identifies consumer-facing member accounts.
	UserTypeMember UserType = "member"
)

// Valid reports whether the user type is one of the known populations.
func (t UserType) Valid() bool {
	return t == UserTypeSystem || t == UserTypeMember
}

// RolePrefix is prepended to role names when they are surfaced as authorities.
const RolePrefix = "ROLE_"

// Principal identifies an authenticated subject. It is produced by a
// user-lookup back end and is read-only to the authentication core.
type Principal struct {
	SubjectID       string
	UserType        UserType
	CredentialsHash string
	Enabled         bool
	Authorities     []string
}

// HasAuthority reports whether the principal carries the named authority.
func (p Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}
