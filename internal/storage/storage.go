package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LJTian/ToramListener/internal/collector"
)

// ErrStore 水位读写失败
var ErrStore = errors.New("store failed")

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	DefaultCollection = "toram_news"
	DefaultKey        = "news_id"
)

// WatermarkStore 保存最后一次确认投递成功的新闻 ID。
// 只允许一个投递循环写同一个 key。
type WatermarkStore interface {
	// Get 未设置过时 ok 为 false
	Get(ctx context.Context) (id collector.NewsID, ok bool, err error)
	Set(ctx context.Context, id collector.NewsID) error
	Close() error
}

// Journal 可选：记录每条确认投递的新闻
type Journal interface {
	Record(ctx context.Context, news *collector.ExtractedNews, blocks int) error
}

var (
	_ WatermarkStore = (*RedisStore)(nil)
	_ WatermarkStore = (*GormStore)(nil)
	_ WatermarkStore = (*MemoryStore)(nil)
	_ Journal        = (*GormStore)(nil)
)

// Options 打开存储所需的参数
type Options struct {
	Backend     string
	RedisAddr   string
	PostgresDSN string
	Collection  string
	Key         string
}

// Open 按 backend 创建水位存储
func Open(opts Options) (WatermarkStore, error) {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}

	switch opts.Backend {
	case BackendRedis, "":
		return NewRedisStore(opts.RedisAddr, opts.Collection, opts.Key), nil
	case BackendPostgres:
		s, err := NewPostgresStore(opts.PostgresDSN, opts.Collection, opts.Key)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown watermark backend %q", opts.Backend)
	}
}

// pingTimeout 启动时探活的超时
const pingTimeout = 3 * time.Second
