package auth

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Role gates write access to attendance records.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// AuthContext is the authenticated session of one request. It lives exactly as long as
// the access token it was parsed from.
type AuthContext struct {
	UserID    string
	FullName  string
	Role      Role
	Provider  string
	TokenID   string
	ExpiresAt time.Time
}

// IsAdmin reports whether the session may mutate attendance records.
func (a AuthContext) IsAdmin() bool { return a.Role == RoleAdmin }

const ginKey = "auth.context"

// Attach stores the session on the gin context.
func Attach(c *gin.Context, ac AuthContext) { c.Set(ginKey, ac) }

// FromGin returns the session stored by RequireAuth.
func FromGin(c *gin.Context) (AuthContext, bool) {
	v, ok := c.Get(ginKey)
	if !ok {
		return AuthContext{}, false
	}
	ac, ok := v.(AuthContext)
	return ac, ok
}
