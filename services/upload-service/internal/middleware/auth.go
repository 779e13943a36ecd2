package middleware

import (
	"errors"

	authsdk "terminal-terrace/auth-sdk"
	"terminal-terrace/response"
	"terminal-terrace/upload-service/internal/dto"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserKey = "auth_user"
	ContextUserID  = "user_id"
)

// JWTAuth JWT 认证中间件（必需认证）
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := parseUser(c, secret)
		if err != nil {
			dto.StatusErrorResponse(c, response.NewBusinessError(
				response.WithErrorCode(response.Unauthorized),
				response.WithErrorMessage(authMessage(err)),
				response.WithError(err),
			))
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalJWTAuth 可选的 JWT 认证中间件（不强制要求认证，但如果有token则解析）
func OptionalJWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := parseUser(c, secret); err == nil {
			setUser(c, user)
		}
		c.Next()
	}
}

// CurrentUser 取出中间件解析的用户，未登录时返回 nil
func CurrentUser(c *gin.Context) *authsdk.UserContext {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*authsdk.UserContext)
	return user
}

func parseUser(c *gin.Context, secret string) (*authsdk.UserContext, error) {
	token, err := authsdk.ExtractTokenFromRequest(c.Request)
	if err != nil {
		return nil, err
	}
	return authsdk.ParseToken(token, secret)
}

func setUser(c *gin.Context, user *authsdk.UserContext) {
	c.Set(ContextUserKey, user)
	c.Set(ContextUserID, user.UserID)
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, authsdk.ErrNoToken):
		return "未提供认证令牌"
	case errors.Is(err, authsdk.ErrExpiredToken):
		return "认证令牌已过期"
	default:
		return "无效的认证令牌"
	}
}
