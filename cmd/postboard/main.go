// 投稿サービスのエントリポイント。
// 設定を読み込み、Post StoreとAuthorization Gateを組み立ててHTTPサーバーを起動する。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nao1215/postboard/internal/auth"
	"github.com/nao1215/postboard/internal/config"
	"github.com/nao1215/postboard/internal/post"
	"github.com/nao1215/postboard/internal/server"
	"github.com/redis/go-redis/v9"
)

// shutdownTimeout は処理中リクエストの完了を待つ最大時間。
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("投稿サービスが異常終了しました: %v", err)
		os.Exit(1)
	}
}

// run はサービスを組み立てて起動し、停止までブロックする。
// 返す前に投稿ストアとRedisクライアントを閉じる。
func run() error {
	// .envは任意。存在しなければ環境変数のみを使う
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf(".envの読み込みに失敗: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cache, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("投稿ストアの初期化に失敗: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("投稿ストアのクローズに失敗: %v", err)
		}
		if cache != nil {
			_ = cache.Close()
		}
	}()

	gate := auth.NewGate(cfg.JWTSecret, cfg.TokenTTL, auth.WithAccount(auth.Account{
		Email:        cfg.LoginEmail,
		PasswordHash: cfg.LoginPasswordHash,
	}))
	srv := server.NewServer(cfg, store, gate)

	log.Printf("投稿サービスを起動します: :%s (env=%s, db=%s)", cfg.Port, cfg.Env, cfg.DBDriver)
	return serve(ctx, srv)
}

// runner はserveが起動・停止するサーバー。
type runner interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// serve はsrvを起動し、ctxが終了したら処理中リクエストを待って停止する。
// 起動に失敗した場合はそのエラーを返す。
func serve(ctx context.Context, srv runner) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("シャットダウンを開始します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return <-errCh
}

// openStore は設定に応じたPost Storeを開く。
// REDIS_ADDRが設定されている場合はRedisキャッシュを前段に置き、そのクライアントも返す。
func openStore(ctx context.Context, cfg *config.Config) (post.Store, *redis.Client, error) {
	var (
		store post.Store
		err   error
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store, err = post.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		store, err = post.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.RedisAddr == "" {
		return store, nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		// キャッシュは任意のため、疎通できなくても起動は継続する
		log.Printf("Redisに接続できません。キャッシュなしで起動します: %v", err)
		_ = client.Close()
		return store, nil, nil
	}
	return post.NewCachedStore(client, store, cfg.CacheTTL), client, nil
}
