package types

import "github.com/golang-jwt/jwt/v5"

// Claims is the bearer token payload. Subject holds the numeric user id.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) IsStaff() bool {
	return c.Role == string(ROLE_STAFF) || c.Role == string(ROLE_ADMIN)
}
