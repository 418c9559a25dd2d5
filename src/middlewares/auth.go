package middlewares

import (
	"errors"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"

	"tablebook/src/logger"
	"tablebook/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errUnauthorized = errors.New("unauthorized")

// Auth verifies the bearer token signed with secret and exposes the caller as
// "id", "role" and "claims" on the context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		log := logger.Get()
		bearerToken := ctx.Request.Header.Get("Authorization")
		reqToken, ok := strings.CutPrefix(bearerToken, "Bearer ")
		if !ok || reqToken == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized.Error()})
			return
		}
		claims := &types.Claims{}
		tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tkn.Valid {
			if err != nil && !errors.Is(err, jwt.ErrTokenSignatureInvalid) && !errors.Is(err, jwt.ErrTokenMalformed) {
				log.Debug().Err(err).Msg("token rejected")
			}
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized.Error()})
			return
		}
		uid, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || uid == 0 {
			log.Debug().Str("sub", claims.Subject).Msg("token subject is not a user id")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized.Error()})
			return
		}

		ctx.Set("id", uint(uid))
		ctx.Set("role", claims.Role)
		ctx.Set("claims", claims)
		ctx.Next()
	}
}

// AuthMiddleware reads the signing secret from JWT_SECRET.
func AuthMiddleware(ctx *gin.Context) {
	Auth([]byte(os.Getenv("JWT_SECRET")))(ctx)
}

// RequireRole lets through callers whose token carries one of roles.
func RequireRole(roles ...types.UserRole) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !HasRole(ctx, roles...) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden"})
			return
		}
		ctx.Next()
	}
}

func HasRole(ctx *gin.Context, roles ...types.UserRole) bool {
	return slices.Contains(roles, types.UserRole(ctx.GetString("role")))
}

func IsStaff(ctx *gin.Context) bool {
	return HasRole(ctx, types.ROLE_STAFF, types.ROLE_ADMIN)
}
