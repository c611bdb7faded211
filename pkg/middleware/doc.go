// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、未定義ルートの404応答、
// Bearerトークンの取り出しなど、ルーター全体で共通して使用する処理を含む。
package middleware
