// Package post は投稿（Post）の永続化を担当するPost Storeを提供する。
//
// 投稿は作成・ID指定取得・一覧取得・お気に入り設定の4操作のみを持ち、
// 削除や全体更新は行わない。バックエンドとしてSQLite（デフォルト）と
// PostgreSQLを選択でき、任意でRedisによるキャッシュを前段に置ける。
//
// エラーは次の3種類に分類される:
//   - ErrValidation: 必須フィールドの欠落（*ValidationError）
//   - ErrNotFound: 指定IDの投稿が存在しない
//   - *StorageError: 永続化層の障害
package post
