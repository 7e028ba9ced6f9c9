package models

import "time"

// PasswordResetToken is one forgot-password attempt. The token identifies the
// attempt and the code is what the user received out of band.
type PasswordResetToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"index;not null" json:"email"`
	Token     string     `gorm:"uniqueIndex;not null" json:"-"`
	Code      string     `gorm:"not null" json:"-"`
	Attempts  int        `gorm:"not null;default:0" json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the attempt can no longer be used at now.
func (t PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
