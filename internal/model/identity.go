package model

// Role identifies which authentication strategy admitted a caller.
type Role string

// Roles granted by the auth gate.
const (
	RoleAdmin   Role = "admin"
	RoleMachine Role = "machine"
	RoleUser    Role = "user"
)

// Processor names recorded on deliveries for identities without an avatar.
const (
	ProcessorSystem  = "system"
	ProcessorMachine = "machine"
)

// Identity is the authenticated caller injected into the request context.
// User is nil for admin and machine identities.
type Identity struct {
	Role Role
	User *User
	// Key is the API key the caller presented.
	Key string
}

// IsAdmin reports whether the identity was admitted by the master key.
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// HasAccount reports whether the identity is backed by a user record.
func (i *Identity) HasAccount() bool {
	return i.User != nil
}

// Avatar returns the backing user's avatar, or "" when there is none.
func (i *Identity) Avatar() string {
	if i.User == nil {
		return ""
	}
	return i.User.Avatar
}

// ProcessedBy names the identity on a delivery record.
func (i *Identity) ProcessedBy() string {
	switch {
	case i.User != nil:
		return i.User.Avatar
	case i.Role == RoleMachine:
		return ProcessorMachine
	default:
		return ProcessorSystem
	}
}
