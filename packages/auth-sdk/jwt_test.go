package authsdk

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestParseToken(t *testing.T) {
	valid, err := SignToken(UserContext{UserID: 7, Username: "alice"}, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := SignToken(UserContext{UserID: 7}, testSecret, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr error
	}{
		{"有效令牌", valid, testSecret, nil},
		{"空令牌", "", testSecret, ErrNoToken},
		{"过期令牌", expired, testSecret, ErrExpiredToken},
		{"密钥不匹配", valid, "other-secret", ErrInvalidToken},
		{"格式错误", "not-a-jwt", testSecret, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := ParseToken(tt.token, tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 7, user.UserID)
			assert.Equal(t, "alice", user.Username)
		})
	}
}

func TestExtractTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *http.Request)
		want    string
		wantErr error
	}{
		{
			name: "cookie 优先",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "c"})
				r.Header.Set("Authorization", "Bearer h")
			},
			want: "c",
		},
		{
			name:  "Bearer header",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer h") },
			want:  "h",
		},
		{
			name:    "Authorization 格式错误",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantErr: ErrInvalidToken,
		},
		{
			name:  "X-Access-Token",
			setup: func(r *http.Request) { r.Header.Set("X-Access-Token", "x") },
			want:  "x",
		},
		{
			name:    "没有 token",
			setup:   func(r *http.Request) {},
			wantErr: ErrNoToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", nil)
			tt.setup(r)

			got, err := ExtractTokenFromRequest(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetUserFromRequest_Anonymous(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", nil)
	r.Header.Set("Authorization", "Bearer broken")

	user := GetUserFromRequest(r, testSecret)
	assert.True(t, user.IsAnonymous())
}
