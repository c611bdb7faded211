package post

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis はGet/Set/SetNX/Delだけをメモリ上で実装するテスト用のRedisクライアント。
// その他のコマンドを呼ぶとnilポインタ参照でパニックする。
type fakeRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	gets int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// pausingStore は最初のGetで下位ストアを読んだ後、releaseが閉じられるまで待機する。
type pausingStore struct {
	Store

	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(next Store) *pausingStore {
	return &pausingStore{Store: next, read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) Get(ctx context.Context, id string) (Post, error) {
	got, err := p.Store.Get(ctx, id)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return got, err
}

func (f *fakeRedis) cached(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[cacheKey(id)]
	return v, ok
}

// TestCachedStore はキャッシュ付きストアの読み書きを検証する。
func TestCachedStore(t *testing.T) {
	t.Parallel()

	t.Run("作成した投稿がTTL付きでキャッシュされること", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		s := NewCachedStore(rdb, setupTestStore(t), time.Hour)

		p, err := s.Create(context.Background(), validDraft("T"))
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if _, ok := rdb.cached(p.ID); !ok {
			t.Fatal("作成した投稿がキャッシュされていない")
		}
		if rdb.ttls[cacheKey(p.ID)] != time.Hour {
			t.Errorf("TTL = %v, want 1h", rdb.ttls[cacheKey(p.ID)])
		}
	})

	t.Run("キャッシュヒット時は下位ストアを参照しないこと", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		backing := setupTestStore(t)
		s := NewCachedStore(rdb, backing, time.Hour)

		p, _ := s.Create(context.Background(), validDraft("T"))
		// 下位ストアを閉じてもキャッシュから返せること
		_ = backing.db.Close()

		got, err := s.Get(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.ID != p.ID || got.Title != p.Title || !got.CreatedAt.Equal(p.CreatedAt) {
			t.Errorf("Get() = %+v, want %+v", got, p)
		}
	})

	t.Run("キャッシュミス時は下位ストアから取得してキャッシュすること", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		backing := setupTestStore(t)
		s := NewCachedStore(rdb, backing, time.Hour)

		p, _ := backing.Create(context.Background(), validDraft("T"))
		if _, ok := rdb.cached(p.ID); ok {
			t.Fatal("前提条件: キャッシュは空であるべき")
		}

		if _, err := s.Get(context.Background(), p.ID); err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if _, ok := rdb.cached(p.ID); !ok {
			t.Error("取得した投稿がキャッシュされていない")
		}
	})

	t.Run("お気に入り設定後はキャッシュも更新されること", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		s := NewCachedStore(rdb, setupTestStore(t), time.Hour)

		p, _ := s.Create(context.Background(), validDraft("T"))
		if _, err := s.SetFavorite(context.Background(), p.ID, true); err != nil {
			t.Fatalf("SetFavorite()でエラーが発生: %v", err)
		}
		got, _ := s.Get(context.Background(), p.ID)
		if !got.IsFavourite {
			t.Error("キャッシュが古いまま")
		}
	})

	t.Run("読み込み中に更新された場合は古い値でキャッシュを上書きしないこと", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		backing := setupTestStore(t)
		p, err := backing.Create(context.Background(), validDraft("T"))
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		paused := newPausingStore(backing)
		s := NewCachedStore(rdb, paused, time.Hour)

		done := make(chan error, 1)
		go func() {
			_, err := s.Get(context.Background(), p.ID)
			done <- err
		}()

		// Getが更新前の行を読み終えた時点でお気に入りを設定する
		<-paused.read
		if _, err := s.SetFavorite(context.Background(), p.ID, true); err != nil {
			t.Fatalf("SetFavorite()でエラーが発生: %v", err)
		}
		close(paused.release)
		if err := <-done; err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}

		got, err := s.Get(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if !got.IsFavourite {
			t.Error("古い投稿でキャッシュが上書きされた")
		}
	})

	t.Run("存在しないIDはErrNotFoundでキャッシュされないこと", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		s := NewCachedStore(rdb, setupTestStore(t), time.Hour)

		if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get()のエラー = %v, want ErrNotFound", err)
		}
		if _, err := s.SetFavorite(context.Background(), "missing", true); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetFavorite()のエラー = %v, want ErrNotFound", err)
		}
		if _, ok := rdb.cached("missing"); ok {
			t.Error("存在しない投稿がキャッシュされた")
		}
	})

	t.Run("破損したエントリは破棄して下位ストアから取得すること", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		backing := setupTestStore(t)
		s := NewCachedStore(rdb, backing, time.Hour)

		p, _ := backing.Create(context.Background(), validDraft("T"))
		rdb.data[cacheKey(p.ID)] = "{broken"

		got, err := s.Get(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.ID != p.ID {
			t.Errorf("ID = %s, want %s", got.ID, p.ID)
		}
		if v, _ := rdb.cached(p.ID); v == "{broken" {
			t.Error("破損したエントリが残っている")
		}
	})

	t.Run("一覧取得はキャッシュを使わないこと", func(t *testing.T) {
		t.Parallel()
		rdb := newFakeRedis()
		s := NewCachedStore(rdb, setupTestStore(t), time.Hour)

		_, _ = s.Create(context.Background(), validDraft("T"))
		posts, err := s.List(context.Background())
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(posts) != 1 {
			t.Errorf("件数 = %d, want 1", len(posts))
		}
		if rdb.gets != 0 {
			t.Errorf("Redis GET回数 = %d, want 0", rdb.gets)
		}
	})
}

// TestCachedStoreRedisUnavailable はRedisに接続できない場合も下位ストアの結果を返すことを検証する。
func TestCachedStoreRedisUnavailable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	s := NewCachedStore(client, setupTestStore(t), time.Hour)

	p, err := s.Create(context.Background(), validDraft("T"))
	if err != nil {
		t.Fatalf("Create()でエラーが発生: %v", err)
	}
	got, err := s.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get()でエラーが発生: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %s, want %s", got.ID, p.ID)
	}
	updated, err := s.SetFavorite(context.Background(), p.ID, true)
	if err != nil {
		t.Fatalf("SetFavorite()でエラーが発生: %v", err)
	}
	if !updated.IsFavourite {
		t.Error("IsFavouriteがfalse")
	}
}
