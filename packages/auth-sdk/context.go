package authsdk

import (
	"net/http"
	"strings"
)

// AccessTokenCookie 前端登录后写入的 cookie 名
const AccessTokenCookie = "access_token"

// ExtractTokenFromRequest 从 HTTP 请求中提取 JWT token
// 支持三种方式：
// 1. access_token cookie
// 2. Authorization header (Bearer token)
// 3. X-Access-Token header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", ErrInvalidToken
		}
		return strings.TrimPrefix(authHeader, "Bearer "), nil
	}

	if token := r.Header.Get("X-Access-Token"); token != "" {
		return token, nil
	}

	return "", ErrNoToken
}

// GetUserFromRequest 从 HTTP 请求获取用户信息
// 如果没有 token 或解析失败，返回空的 UserContext（UserID=0）
func GetUserFromRequest(r *http.Request, secret string) *UserContext {
	token, err := ExtractTokenFromRequest(r)
	if err != nil {
		return &UserContext{}
	}

	user, err := ParseToken(token, secret)
	if err != nil {
		return &UserContext{}
	}

	return user
}
