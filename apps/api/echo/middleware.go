package echoapi

import (
	"github.com/labstack/echo/v4"
)

// userManagerMiddleware lets through admins and super users only.
func userManagerMiddleware(auth *authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := auth.requireUser(ctx)
			if err != nil {
				return err
			}
			if !usr.CanManageUsers() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
