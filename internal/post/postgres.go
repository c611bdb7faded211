package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// postRecord はpostsテーブルの行に対応するgormモデル。
type postRecord struct {
	Seq         int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string    `gorm:"column:id;type:text;uniqueIndex;not null"`
	Title       string    `gorm:"column:title;type:text;not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	Photo       string    `gorm:"column:photo;type:text;not null"`
	Body        string    `gorm:"column:body;type:text;not null"`
	IsFavourite bool      `gorm:"column:is_favourite;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
}

func (postRecord) TableName() string {
	return "posts"
}

func (r postRecord) toPost() Post {
	return Post{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Photo:       r.Photo,
		Body:        r.Body,
		IsFavourite: r.IsFavourite,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// PostgresStore はPostgreSQLをバックエンドとするPost Store。
type PostgresStore struct {
	db   *gorm.DB
	opts options
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres はPostgreSQLに接続し、postsテーブルをマイグレーションしたストアを返す。
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("PostgreSQLへの接続に失敗: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&postRecord{}); err != nil {
		return nil, fmt.Errorf("postsテーブルのマイグレーションに失敗: %w", err)
	}

	return NewPostgresStore(db, opts...), nil
}

// NewPostgresStore は既存のgorm接続からストアを生成する。マイグレーションは行わない。
func NewPostgresStore(db *gorm.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, opts: applyOptions(opts)}
}

// Create は投稿を検証して挿入する。
func (s *PostgresStore) Create(ctx context.Context, d Draft) (Post, error) {
	if err := d.Validate(); err != nil {
		return Post{}, err
	}

	rec := postRecord{
		ID:          s.opts.newID(),
		Title:       d.Title,
		Description: d.Description,
		Photo:       d.Photo,
		Body:        d.Body,
		IsFavourite: false,
		// PostgreSQLのtimestampはマイクロ秒精度
		CreatedAt: s.opts.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Post{}, storageErr("create", err)
	}
	return rec.toPost(), nil
}

// Get は指定IDの投稿を返す。
func (s *PostgresStore) Get(ctx context.Context, id string) (Post, error) {
	var rec postRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, storageErr("get", err)
	}
	return rec.toPost(), nil
}

// List は全投稿を作成日時の降順で返す。同時刻の投稿は後に挿入されたものが先になる。
func (s *PostgresStore) List(ctx context.Context) ([]Post, error) {
	var recs []postRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("seq DESC").Find(&recs).Error; err != nil {
		return nil, storageErr("list", err)
	}

	posts := make([]Post, 0, len(recs))
	for _, r := range recs {
		posts = append(posts, r.toPost())
	}
	return posts, nil
}

// SetFavorite はお気に入りフラグを更新する。
func (s *PostgresStore) SetFavorite(ctx context.Context, id string, value bool) (Post, error) {
	res := s.db.WithContext(ctx).Model(&postRecord{}).Where("id = ?", id).Update("is_favourite", value)
	if res.Error != nil {
		return Post{}, storageErr("set_favorite", res.Error)
	}
	if res.RowsAffected == 0 {
		return Post{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Close は下位のデータベース接続を閉じる。
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("データベース接続の取得に失敗: %w", err)
	}
	return sqlDB.Close()
}
