// Package config は環境変数からサービスの設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// EnvProduction は本番環境を表すAPP_ENVの値。
	EnvProduction = "production"
	// DriverSQLite はSQLiteバックエンドを表すDB_DRIVERの値。
	DriverSQLite = "sqlite"
	// DriverPostgres はPostgreSQLバックエンドを表すDB_DRIVERの値。
	DriverPostgres = "postgres"

	// defaultJWTSecret は開発用の署名鍵。本番環境では使用できない。
	defaultJWTSecret = "dev-secret-key"
)

// Config はサービス全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// Env は実行環境（development, production など）。
	Env string
	// JWTSecret はトークン署名用の秘密鍵。
	JWTSecret string
	// TokenTTL はトークンの有効期間。
	TokenTTL time.Duration
	// DBDriver は投稿ストアのバックエンド（sqlite または postgres）。
	DBDriver string
	// SQLitePath はSQLiteデータベースファイルのパス。
	SQLitePath string
	// DatabaseURL はPostgreSQLの接続文字列。
	DatabaseURL string
	// RedisAddr はキャッシュ用Redisのアドレス。空の場合キャッシュは無効。
	RedisAddr string
	// CacheTTL はキャッシュエントリの有効期間。
	CacheTTL time.Duration
	// LoginEmail は事前登録されたログイン用メールアドレス。
	LoginEmail string
	// LoginPasswordHash はログイン用パスワードのbcryptハッシュ。空の場合は照合しない。
	LoginPasswordHash string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
}

// Load は環境変数から設定を読み込む。
// 期間の書式が不正な場合はエラーを返す。値の妥当性はValidateで確認する。
func Load() (*Config, error) {
	tokenTTL, err := durationEnv("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := durationEnv("CACHE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:              getEnvOr("PORT", "3000"),
		Env:               getEnvOr("APP_ENV", "development"),
		JWTSecret:         getEnvOr("JWT_SECRET", defaultJWTSecret),
		TokenTTL:          tokenTTL,
		DBDriver:          getEnvOr("DB_DRIVER", DriverSQLite),
		SQLitePath:        getEnvOr("SQLITE_PATH", "posts.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		CacheTTL:          cacheTTL,
		LoginEmail:        getEnvOr("LOGIN_EMAIL", "test@example.com"),
		LoginPasswordHash: os.Getenv("LOGIN_PASSWORD_HASH"),
		AllowedOrigins:    splitList(getEnvOr("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}, nil
}

// Validate は設定値の組み合わせが妥当かを確認する。
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATHが空です"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DB_DRIVER=postgres にはDATABASE_URLが必要です"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知のDB_DRIVERです: %q", c.DBDriver))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTLは正の値である必要があります"))
	}
	if c.RedisAddr != "" && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTLは正の値である必要があります"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRETが空です"))
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("本番環境では開発用のJWT_SECRETを使用できません"))
	}
	return errors.Join(errs...)
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%sの形式が不正です: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
