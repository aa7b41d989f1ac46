package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// jwtClaims carries the admin capability inside a signed bearer token
type jwtClaims struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// ClaimsFromBearerToken returns a ClaimsFromRequest function that validates
// an HS256-signed bearer token and maps its is_admin claim onto the
// capability credential. A missing or malformed token is an authentication
// error; a valid token without the admin claim still yields Claims with
// Admin=false, and the executor rejects it.
func ClaimsFromBearerToken(secret string) func(*http.Request) (quotareset.Claims, error) {
	return func(r *http.Request) (quotareset.Claims, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return quotareset.Claims{}, fmt.Errorf("missing authorization header")
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return quotareset.Claims{}, fmt.Errorf("malformed authorization header")
		}

		token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			return quotareset.Claims{}, fmt.Errorf("invalid token: %w", err)
		}

		claims, ok := token.Claims.(*jwtClaims)
		if !ok || !token.Valid {
			return quotareset.Claims{}, fmt.Errorf("invalid token claims")
		}

		return quotareset.Claims{
			Subject: claims.UserID,
			Admin:   claims.IsAdmin,
		}, nil
	}
}
