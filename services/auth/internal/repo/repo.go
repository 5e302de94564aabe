package repo

import (
	"gorm.io/gorm"
)

// GormRepo is the relational adapter for both the credential store (users)
// and the token registry (token_pairs).
type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}
