package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/postboard/internal/auth"
	"github.com/nao1215/postboard/internal/post"
)

// errorMapping は内部エラーとHTTPステータス・メッセージの対応。
type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable は上から順にerrors.Isで照合される。
var errorTable = []errorMapping{
	{post.ErrValidation, http.StatusBadRequest, "Missing required fields: title, description, photo, and body are required."},
	{auth.ErrMissingFields, http.StatusBadRequest, "Email and password are required."},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials."},
	{auth.ErrMissingToken, http.StatusUnauthorized, "Authentication token required."},
	{auth.ErrInvalidToken, http.StatusForbidden, "Invalid or expired token."},
	{post.ErrNotFound, http.StatusNotFound, "Post not found."},
}

// statusFor はエラーに対応するステータスとメッセージを返す。
// 対応表にないエラー（*post.StorageError を含む）は500になる。
func statusFor(err error) (int, string, bool) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.message, true
		}
	}
	return http.StatusInternalServerError, "", false
}

// respondError はエラーを対応表に従ってレスポンスに変換し、処理を中断する。
// 500の場合はfallbackをメッセージとし、エラーをログに記録する。
func (s *Server) respondError(c *gin.Context, err error, fallback string) {
	status, message, known := statusFor(err)
	if known {
		c.AbortWithStatusJSON(status, gin.H{"message": message})
		return
	}

	log.Printf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, fallback, err)
	if fallback == "" {
		fallback = "An unexpected error occurred."
	}
	body := gin.H{"message": fallback}
	if s.exposeDetail {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
