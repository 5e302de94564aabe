package transport

import (
	"time"

	"github.com/Skotchmaster/shop_auth/services/auth/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Email    string `json:"email"    validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type VerifyRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code"     validate:"required,alphanum"`
}

type ResendRequest struct {
	Username string `json:"username" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN user admin"`
}

type ListUsersQuery struct {
	Page int `query:"page" validate:"omitempty,min=1"`
	Size int `query:"size" validate:"omitempty,min=1,max=100"`
}

type LoginResult struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	AccessExp    int64    `json:"access_exp"`
	RefreshExp   int64    `json:"refresh_exp"`
	Roles        []string `json:"roles"`
	IsAdmin      bool     `json:"is_admin"`
}

type RefreshResult struct {
	AccessToken string `json:"access_token"`
	AccessExp   int64  `json:"access_exp"`
}

type ValidateResult struct {
	Valid bool `json:"valid"`
}

type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

type UserList struct {
	Items []UserView `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
}

func NewUserView(u *models.User) UserView {
	return UserView{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}
