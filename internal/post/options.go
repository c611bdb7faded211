package post

import (
	"time"

	"github.com/google/uuid"
)

// Option はストアの生成オプション。
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func defaultOptions() options {
	return options{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock は作成日時の取得に使う時計を差し替える。
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator は投稿IDの採番関数を差し替える。
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}
