// Package server は投稿APIのHTTPサーバーとリクエストハンドラを提供する。
//
// ハンドラはPost StoreとAuthorization Gateへの薄い委譲のみを行い、
// 内部エラーはerrors.goの対応表に従ってHTTPステータスに変換する。
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/postboard/internal/auth"
	"github.com/nao1215/postboard/internal/config"
	"github.com/nao1215/postboard/internal/post"
	"github.com/nao1215/postboard/pkg/middleware"
)

// Server は投稿サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はrouterを公開するHTTPサーバー。
	httpServer *http.Server
	// store は投稿の永続化を担当するPost Store。
	store post.Store
	// gate はトークンの発行と検証を担当するAuthorization Gate。
	gate *auth.Gate
	// exposeDetail は500応答に内部エラーの詳細を含めるかどうか。
	exposeDetail bool
}

// NewServer は依存を受け取って新しいサーバーを生成する。
// storeのクローズは呼び出し元の責務。
func NewServer(cfg *config.Config, store post.Store, gate *auth.Gate) *Server {
	exposeDetail := !cfg.IsProduction()

	router := gin.New()
	router.Use(middleware.Recovery(exposeDetail))
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:       router,
		store:        store,
		gate:         gate,
		exposeDetail: exposeDetail,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、Shutdownが呼ばれるまでブロックする。
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストの完了を待ってサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to the Posts API!")
	})

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "postboard"})
	})

	// ログイン（認証不要）
	s.router.POST("/login", s.handleLogin())

	posts := s.router.Group("/posts")
	{
		// 投稿一覧取得
		posts.GET("", s.handleList())
		// 投稿詳細取得
		posts.GET("/:id", s.handleGetByID())
		// 投稿作成（Bearerトークン必須）
		posts.POST("", s.requireAuth(), s.handleCreate())
		// お気に入り登録
		posts.POST("/:id/favorite", s.handleFavorite())
	}

	s.router.NoRoute(middleware.NotFound())
}

// requireAuth はBearerトークンを検証するミドルウェアを返す。
// 検証に成功した場合、コンテキストに "email" と "role" を設定する。
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bearer以外のスキームはトークン未提示として扱い、403ではなく401を返す
		id, err := s.gate.Authorize(middleware.BearerToken(c))
		if err != nil {
			s.respondError(c, err, "")
			return
		}
		c.Set("email", id.Email)
		c.Set("role", id.Role)
		c.Next()
	}
}
