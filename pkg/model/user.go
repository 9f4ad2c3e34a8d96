package model

import (
	"slices"
	"time"
)

type Role string

const (
	RoleStandard  Role = "standard"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

var Roles = []Role{RoleStandard, RoleOrganizer, RoleAdmin}

func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// MaxPasswordBytes is bcrypt's input limit. Multibyte runes count per byte.
const MaxPasswordBytes = 72

type User struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name         string    `json:"name" bson:"name" validate:"required,min=2,max=50"`
	Email        string    `json:"email" bson:"email" validate:"required,email,max=254"`
	PasswordHash string    `json:"-" bson:"password_hash" validate:"required"`
	Role         Role      `json:"role" bson:"role" validate:"required,user_role"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72,password_bytes"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,user_role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type UserUpdate struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6,max=72,password_bytes"`
}

type RoleUpdate struct {
	Role Role `json:"role" validate:"required,user_role"`
}
