package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い場合やBearer形式でない場合は空文字列を返す。
func BearerToken(c *gin.Context) string {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
