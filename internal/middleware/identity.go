package middleware

// identity.go holds helpers shared across middleware files for naming the
// caller of a request.

import "github.com/labstack/echo/v4"

// anonymous is the identity of callers without a verified token.
const anonymous = "anon"

// Subject returns the token subject stored by JWTAuth, or "anon" when the
// request is not authenticated.
func Subject(c echo.Context) string {
	if s, ok := c.Get(ctxSubject).(string); ok && s != "" {
		return s
	}
	return anonymous
}
