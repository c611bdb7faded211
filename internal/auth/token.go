package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// issuer はトークンの発行者クレーム。
const issuer = "postboard"

// Claims はCredential（JWT）のペイロードを表す。
type Claims struct {
	jwt.RegisteredClaims
	// Email は認証済みユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーのロール。現状は常に "user"。
	Role string `json:"role"`
}

// signToken はIDと有効期限からHS256で署名したトークンを生成する。
func signToken(secret []byte, id Identity, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    issuer,
		},
		Email: id.Email,
		Role:  id.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// parseToken は署名・有効期限・発行者を検証してクレームを返す。
func parseToken(secret []byte, tokenString string, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("トークンが無効です")
	}
	if claims.Email == "" {
		return nil, errors.New("emailクレームがありません")
	}
	return claims, nil
}
