package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey"      json:"id"`
	Username              string     `gorm:"uniqueIndex;not null"      json:"username"`
	Email                 string     `gorm:"not null"                  json:"email"`
	PasswordHash          string     `gorm:"not null"                  json:"-"`
	Role                  string     `gorm:"not null;default:user"     json:"role"`
	Verified              bool       `gorm:"not null;default:false"    json:"verified"`
	VerificationCode      string     `                                 json:"-"`
	VerificationExpiresAt *time.Time `gorm:"index"                     json:"-"`
	CreatedAt             time.Time  `                                 json:"created_at"`
	UpdatedAt             time.Time  `                                 json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// TokenPair is the one live access/refresh combination of a user. The unique
// index on UserID keeps it at most one row per user.
type TokenPair struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	AccessToken  string    `gorm:"not null"              json:"-"`
	RefreshToken string    `gorm:"not null"              json:"-"`
	// RefreshExpiresAt mirrors the refresh token exp so cleanup can purge in SQL.
	RefreshExpiresAt time.Time `gorm:"index;not null"    json:"refresh_expires_at"`
	CreatedAt        time.Time `                         json:"created_at"`
	UpdatedAt        time.Time `                         json:"updated_at"`
}

func (p *TokenPair) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &TokenPair{})
}
