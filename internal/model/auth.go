package model

import "github.com/google/uuid"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,clinic_role"`
	Phone    string `json:"phone"`
}

// LoginRequest carries no binding tags: missing fields get a dedicated message.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Status string           `json:"status"`
	Token  string           `json:"token"`
	Data   RegisterUserData `json:"data"`
}

type RegisterUserData struct {
	User *User `json:"user"`
}

type LoginResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
}

// TokenClaims is what the auth middleware stores on the request context.
type TokenClaims struct {
	UserID uuid.UUID
	Role   Role
	Name   string
}
