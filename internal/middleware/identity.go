package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// that read them back.  Handlers, the rate limiter and the cache all go
// through these so the key names live in one place.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// Roles carried in the "role" claim.
const (
	RoleOwner    = "OWNER"
	RoleCustomer = "CUSTOMER"
)

// UserID returns the authenticated user id, or false for anonymous requests.
func UserID(c echo.Context) (uint64, bool) {
	return toUserID(c.Get(userIDKey))
}

// Role returns the role claim of the authenticated user, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}

// userKey renders the user id for cache and rate limit keys.  It returns
// "guest" when no user is authenticated.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}

func toUserID(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case uint64:
		return t, t != 0
	case int:
		return uint64(t), t > 0
	case int64:
		return uint64(t), t > 0
	case float64: // numbers decoded from JWT claims
		if t < 1 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil && n != 0
	}
	return 0, false
}
