package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	keyUserID = "user_id"
	keyEmail  = "email"
)

// UserID returns the id of the user RequireSession authenticated.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(keyUserID).(uint64)
	return id, ok && id != 0
}

// Email returns the session's email, or "" outside the session gate.
func Email(c echo.Context) string {
	s, _ := c.Get(keyEmail).(string)
	return s
}

// currentUserID is the user component of rate limit keys; "anon" when the
// request is not authenticated.
func currentUserID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
