package middlewares

import (
	"strings"

	t_token "secure_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenEmail get email form token, set c.locals name
	TokenEmail = "Email"
)

// JWTMiddleware validates JWT from the auth query, the cookie or the Authorization header
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query(QueryToken)

		// 查詢參數中沒有 token，則嘗試從 Cookie 中獲取
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				tokenStr = strings.TrimPrefix(h, "Bearer ")
			}
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthenticated",
			})
		}

		claims, err := t_token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthenticated",
			})
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenEmail, claims.Email)

		return c.Next()
	}
}

// MemberFromLocals read the identity set by JWTMiddleware
func MemberFromLocals(locals func(key string) interface{}) (memberID, email string, ok bool) {
	memberID, ok = locals(TokenMemberID).(string)
	if !ok || memberID == "" {
		return "", "", false
	}
	email, _ = locals(TokenEmail).(string)
	return memberID, email, true
}
