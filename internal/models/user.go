package models

// Role is the authorization level of a user.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleViewer:
		return true
	}
	return false
}

// AuthProvider identifies how a user proves their identity.
type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

// User represents a customer or staff identity in the credential store.
// PasswordDigest is nil for accounts created through a federated provider.
type User struct {
	Base
	Name           string        `gorm:"not null" json:"name"`
	Email          string        `gorm:"uniqueIndex;not null" json:"email"`
	PasswordDigest *string       `json:"-"`
	PhoneNumber    string        `json:"phone_number"`
	Role           Role          `gorm:"type:varchar(16);not null;default:'user';index" json:"role"`
	AuthProvider   AuthProvider  `gorm:"type:varchar(16);not null;default:'local'" json:"auth_provider"`
	Image          string        `json:"image"`
	Security       *UserSecurity `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Identity is the public projection of a user handed out after login.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Identity returns the public projection of u. The digest never leaves the service layer.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
