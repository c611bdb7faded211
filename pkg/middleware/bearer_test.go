package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestBearerToken はAuthorizationヘッダーからのトークン取り出しを検証する。
func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "Bearer形式", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "スキーム名の大文字小文字は区別しない", header: "bearer abc", want: "abc"},
		{name: "ヘッダーなし", header: "", want: ""},
		{name: "Basic認証", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "トークンなし", header: "Bearer", want: ""},
		{name: "空白のみのトークン", header: "Bearer    ", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodPost, "/posts", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}

			if got := BearerToken(c); got != tt.want {
				t.Errorf("BearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
