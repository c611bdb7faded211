package post

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheKeyPrefix は同じRedisに置かれる他のデータとの衝突を避けるための接頭辞。
const cacheKeyPrefix = "postid:"

// CachedStore はRedisを読み込みキャッシュとして前段に置くPost Store。
// キャッシュの障害はログに記録するだけで、常に下位ストアの結果を返す。
type CachedStore struct {
	client redis.Cmdable
	next   Store
	ttl    time.Duration
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore はnextをRedisキャッシュで包んだストアを返す。
func NewCachedStore(client redis.Cmdable, next Store, ttl time.Duration) *CachedStore {
	return &CachedStore{client: client, next: next, ttl: ttl}
}

// Create は下位ストアに作成し、結果をキャッシュに書き込む。
func (s *CachedStore) Create(ctx context.Context, d Draft) (Post, error) {
	p, err := s.next.Create(ctx, d)
	if err != nil {
		return Post{}, err
	}
	s.store(ctx, p)
	return p, nil
}

// Get はキャッシュを優先し、ミス時は下位ストアから取得してキャッシュする。
// ミス時の書き込みはSETNXで行い、読み込み中に更新系が書いた新しい値を上書きしない。
func (s *CachedStore) Get(ctx context.Context, id string) (Post, error) {
	if p, ok := s.load(ctx, id); ok {
		return p, nil
	}
	p, err := s.next.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	s.fill(ctx, p)
	return p, nil
}

// List はキャッシュを使わず下位ストアに委譲する。
func (s *CachedStore) List(ctx context.Context) ([]Post, error) {
	return s.next.List(ctx)
}

// SetFavorite は下位ストアを更新し、更新後の投稿でキャッシュを上書きする。
func (s *CachedStore) SetFavorite(ctx context.Context, id string, value bool) (Post, error) {
	p, err := s.next.SetFavorite(ctx, id, value)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			// 更新の成否が不明なため古いエントリを残さない
			s.evict(ctx, id)
		}
		return Post{}, err
	}
	s.store(ctx, p)
	return p, nil
}

// Close は下位ストアを閉じる。Redisクライアントは呼び出し元が管理する。
func (s *CachedStore) Close() error {
	return s.next.Close()
}

// store は更新系の結果でキャッシュを上書きする。
func (s *CachedStore) store(ctx context.Context, p Post) {
	s.put(ctx, p, false)
}

// fill はキーが存在しない場合のみ投稿をキャッシュする。
func (s *CachedStore) fill(ctx context.Context, p Post) {
	s.put(ctx, p, true)
}

func (s *CachedStore) put(ctx context.Context, p Post, onlyIfAbsent bool) {
	value, err := json.Marshal(p)
	if err != nil {
		log.Printf("キャッシュ用のシリアライズに失敗: id=%s: %v", p.ID, err)
		return
	}
	if onlyIfAbsent {
		err = s.client.SetNX(ctx, cacheKey(p.ID), value, s.ttl).Err()
	} else {
		err = s.client.Set(ctx, cacheKey(p.ID), value, s.ttl).Err()
	}
	if err != nil {
		log.Printf("キャッシュへの書き込みに失敗: id=%s: %v", p.ID, err)
	}
}

func (s *CachedStore) load(ctx context.Context, id string) (Post, bool) {
	raw, err := s.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Post{}, false
	}
	if err != nil {
		log.Printf("キャッシュの読み込みに失敗: id=%s: %v", id, err)
		return Post{}, false
	}
	var p Post
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Printf("キャッシュエントリが破損しています: id=%s: %v", id, err)
		s.evict(ctx, id)
		return Post{}, false
	}
	return p, true
}

func (s *CachedStore) evict(ctx context.Context, id string) {
	if err := s.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		log.Printf("キャッシュの削除に失敗: id=%s: %v", id, err)
	}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}
