package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the portal token claims issued by the school server's auth
// endpoint. UserID namespaces persisted read-state.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
