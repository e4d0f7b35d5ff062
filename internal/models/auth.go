package models

import "github.com/golang-jwt/jwt/v5"

// Roles recognised on the generation API.
const (
	RolePlanner = "planner"
	RoleViewer  = "viewer"
	RoleAdmin   = "admin"
)

// Principal describes the caller resolved from a bearer token.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// JWTClaims represents the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
