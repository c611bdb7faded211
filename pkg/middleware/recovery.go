package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// internalErrorMessage はクライアントに返す500エラーの固定メッセージ。
const internalErrorMessage = "Internal Server Error"

// ErrorBody は構造化エラーレスポンスのJSONボディを組み立てる。
// 形式: {"error": {"message": ..., "status": ...}}
func ErrorBody(status int, message string) gin.H {
	return gin.H{"error": gin.H{
		"message": message,
		"status":  status,
	}}
}

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にスタックトレースをログに出力し、構造化された500エラーを返す。
// exposeDetailがtrueの場合のみ、パニック値とスタックをレスポンスに含める。
func Recovery(exposeDetail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				log.Printf("[PANIC] %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, r, stack)

				body := ErrorBody(http.StatusInternalServerError, internalErrorMessage)
				if exposeDetail {
					inner := body["error"].(gin.H)
					inner["detail"] = fmt.Sprint(r)
					inner["stack"] = string(stack)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
			}
		}()
		c.Next()
	}
}

// NotFound は未定義ルートに構造化された404を返すハンドラ。
// router.NoRoute に登録して使用する。
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorBody(http.StatusNotFound, "Route not found"))
	}
}
