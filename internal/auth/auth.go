// Package auth issues and checks the bearer tokens that guard the admin API.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// RoleAdmin is the only role the admin API accepts.
const RoleAdmin = "admin"

// ContextKey is where RequireAdmin stores the token subject on the gin context.
const ContextKey = "admin_subject"

// ErrUnauthorized is wrapped by every verification failure.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Claims are the token's payload.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

// Issuer signs and verifies HS256 admin tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. now defaults to time.Now.
func NewIssuer(secret string, ttl time.Duration, now func() time.Time) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue mints an admin token for subject and returns it with its expiry.
func (i *Issuer) Issue(subject string) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("auth: subject is required")
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Role: RoleAdmin,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign: %w", err)
	}
	return token, exp, nil
}

// Verify checks a token's signature, expiry and role.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrUnauthorized)
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token is not valid", ErrUnauthorized)
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: role %q", ErrUnauthorized, claims.Role)
	}
	return &claims, nil
}

// RequireAdmin rejects requests without a valid "Authorization: Bearer" token.
func RequireAdmin(i *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := i.Verify(strings.TrimSpace(tokenString))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ContextKey, claims.Subject)
		c.Next()
	}
}
