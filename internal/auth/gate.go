// Package auth はCredential（Bearerトークン）の発行と検証を行うAuthorization Gateを提供する。
//
// トークンはHS256で署名されたJWTで、サーバー側に状態を持たない。
// 失効は有効期限によってのみ起こる。
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleUser はログインしたユーザーに付与されるロール。
const RoleUser = "user"

var (
	// ErrMissingFields はメールアドレスまたはパスワードが空であることを表す。
	ErrMissingFields = errors.New("メールアドレスとパスワードは必須です")
	// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しないことを表す。
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが正しくありません")
	// ErrMissingToken はトークンが提示されていないことを表す。
	ErrMissingToken = errors.New("認証トークンが必要です")
	// ErrInvalidToken はトークンの署名が不正か期限切れであることを表す。
	ErrInvalidToken = errors.New("トークンが無効または期限切れです")
)

// Identity はトークンに含まれる認証済みIDのクレーム。
type Identity struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Credential はログイン成功時に発行されるトークン。
type Credential struct {
	Token     string
	Identity  Identity
	ExpiresAt time.Time
}

// Account は事前登録された唯一のログインID。
// PasswordHashが空の場合、空でない任意のメールアドレスとパスワードを受け付ける。
type Account struct {
	Email string
	// PasswordHash はbcryptハッシュ。
	PasswordHash string
}

// Gate はAuthorization Gate。生成後は読み取り専用で、並行に利用できる。
type Gate struct {
	secret  []byte
	ttl     time.Duration
	account Account
	now     func() time.Time
}

// Option はGateの生成オプション。
type Option func(*Gate)

// WithClock はトークンの発行・検証に使う時計を差し替える。
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithAccount はログインを許可するアカウントを設定する。
func WithAccount(a Account) Option {
	return func(g *Gate) { g.account = a }
}

// NewGate は署名鍵とトークン有効期間からGateを生成する。
func NewGate(secret string, ttl time.Duration, opts ...Option) *Gate {
	g := &Gate{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login は入力を検証してCredentialを発行する。
func (g *Gate) Login(email, password string) (Credential, error) {
	if email == "" || password == "" {
		return Credential{}, ErrMissingFields
	}
	if err := g.verify(email, password); err != nil {
		return Credential{}, err
	}

	id := Identity{Email: email, Role: RoleUser}
	issuedAt := g.now()
	expiresAt := issuedAt.Add(g.ttl)
	token, err := signToken(g.secret, id, issuedAt, expiresAt)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, Identity: id, ExpiresAt: expiresAt}, nil
}

// Authorize はトークンを検証し、含まれるIDを返す。
func (g *Gate) Authorize(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	claims, err := parseToken(g.secret, token, g.now)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{Email: claims.Email, Role: claims.Role}, nil
}

// verify はアカウントにパスワードハッシュが設定されている場合のみ照合する。
func (g *Gate) verify(email, password string) error {
	if g.account.PasswordHash == "" {
		return nil
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(g.account.Email)) == 1
	// メールアドレスが異なってもbcryptの比較は行い、応答時間を揃える
	hashErr := bcrypt.CompareHashAndPassword([]byte(g.account.PasswordHash), []byte(password))
	if !emailOK || hashErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
