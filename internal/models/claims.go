package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims are the JWT claims carried by authenticated callers.
type UserClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
