package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Post は永続化された投稿を表す。
// 呼び出し元には常に値のコピーが渡される。
type Post struct {
	// ID は作成時にストアが採番する一意識別子。
	ID string `json:"id"`
	// Title はタイトル。
	Title string `json:"title"`
	// Description は概要。
	Description string `json:"description"`
	// Photo は写真のURL。
	Photo string `json:"photo"`
	// Body は本文。
	Body string `json:"body"`
	// IsFavourite はお気に入りに登録されているかどうか。
	IsFavourite bool `json:"isFavourite"`
	// CreatedAt は作成日時（UTC）。
	CreatedAt time.Time `json:"created_at"`
}

// Draft は投稿作成時の入力。
type Draft struct {
	Title       string
	Description string
	Photo       string
	Body        string
}

// Validate は必須フィールドがすべて空でないことを確認する。
func (d Draft) Validate() error {
	var missing []string
	if d.Title == "" {
		missing = append(missing, "title")
	}
	if d.Description == "" {
		missing = append(missing, "description")
	}
	if d.Photo == "" {
		missing = append(missing, "photo")
	}
	if d.Body == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Store はPost Storeの操作を表す。
type Store interface {
	// Create は入力を検証して投稿を永続化し、採番済みの投稿を返す。
	Create(ctx context.Context, d Draft) (Post, error)
	// Get は指定IDの投稿を返す。存在しない場合はErrNotFound。
	Get(ctx context.Context, id string) (Post, error)
	// List は全投稿を作成日時の降順で返す。
	List(ctx context.Context) ([]Post, error)
	// SetFavorite はお気に入りフラグを設定し、更新後の投稿を返す。
	SetFavorite(ctx context.Context, id string, value bool) (Post, error)
	// Close はストアが保持する接続を閉じる。
	Close() error
}

var (
	// ErrValidation は入力が不正であることを表す。
	ErrValidation = errors.New("入力が不正です")
	// ErrNotFound は指定IDの投稿が存在しないことを表す。
	ErrNotFound = errors.New("投稿が見つかりません")
)

// ValidationError は欠落している必須フィールドを保持する。
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("必須フィールドがありません: %s", strings.Join(e.Fields, ", "))
}

// Is によりerrors.Is(err, ErrValidation)が成立する。
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError は永続化層で発生した障害を表す。
type StorageError struct {
	// Op は失敗した操作名。
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ストレージ操作 %s に失敗: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// timeLayout はDBに保存する作成日時の形式。
// 固定長のため文字列比較と時刻順が一致する。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
