package models

// User roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// User represents an authenticated customer or pharmacy administrator.
type User struct {
	BaseModel
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
	Role         string `gorm:"not null;default:client" json:"role"`
	PasswordHash string `json:"-"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsAdmin reports whether the user may use the admin endpoints.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
