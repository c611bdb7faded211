package post

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/nao1215/postboard/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// SQLiteStore はSQLiteをバックエンドとするPost Store。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db   *sql.DB
	opts options
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite はSQLiteデータベースを開き、マイグレーションを適用したストアを返す。
// pathに ":memory:" を指定するとインメモリデータベースになる。
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// 書き込みを直列化する。インメモリDBは接続ごとに別物になるため必須。
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベース疎通確認に失敗: %w", err)
	}

	s, err := NewSQLiteStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore は既存の接続からストアを生成する。スキーマは自動で適用される。
func NewSQLiteStore(ctx context.Context, db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db, opts: applyOptions(opts)}, nil
}

const selectColumns = `id, title, description, photo, body, is_favourite, created_at`

// Create は投稿を検証して挿入する。
func (s *SQLiteStore) Create(ctx context.Context, d Draft) (Post, error) {
	if err := d.Validate(); err != nil {
		return Post{}, err
	}

	p := Post{
		ID:          s.opts.newID(),
		Title:       d.Title,
		Description: d.Description,
		Photo:       d.Photo,
		Body:        d.Body,
		IsFavourite: false,
		CreatedAt:   s.opts.now().UTC(),
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, description, photo, body, is_favourite, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		p.ID, p.Title, p.Description, p.Photo, p.Body, formatTime(p.CreatedAt),
	); err != nil {
		return Post{}, storageErr("create", err)
	}

	// 保存形式に丸めた値を返し、Getの結果と一致させる
	p.CreatedAt, _ = parseTime(formatTime(p.CreatedAt))
	return p, nil
}

// Get は指定IDの投稿を返す。
func (s *SQLiteStore) Get(ctx context.Context, id string) (Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, storageErr("get", err)
	}
	return p, nil
}

// List は全投稿を作成日時の降順で返す。同時刻の投稿は後に挿入されたものが先になる。
func (s *SQLiteStore) List(ctx context.Context) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM posts ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer func() { _ = rows.Close() }()

	posts := make([]Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, storageErr("list", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return posts, nil
}

// SetFavorite はお気に入りフラグを更新する。
func (s *SQLiteStore) SetFavorite(ctx context.Context, id string, value bool) (Post, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET is_favourite = ? WHERE id = ?`, value, id)
	if err != nil {
		return Post{}, storageErr("set_favorite", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Post{}, storageErr("set_favorite", err)
	}
	if n == 0 {
		return Post{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		log.Printf("データベースのクローズに失敗: %v", err)
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (Post, error) {
	var (
		p         Post
		createdAt string
	)
	if err := r.Scan(&p.ID, &p.Title, &p.Description, &p.Photo, &p.Body, &p.IsFavourite, &createdAt); err != nil {
		return Post{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Post{}, fmt.Errorf("作成日時の解析に失敗: %w", err)
	}
	p.CreatedAt = t
	return p, nil
}
