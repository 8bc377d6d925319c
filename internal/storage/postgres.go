package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/ToramListener/internal/collector"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Watermark 每个 (collection, key) 一行
type Watermark struct {
	Collection string    `gorm:"primaryKey;size:64" json:"collection"`
	Key        string    `gorm:"primaryKey;size:64" json:"key"`
	LastNews   string    `gorm:"size:64" json:"lastNews"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Delivery 已确认投递的新闻流水，按 news_id 幂等
type Delivery struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	NewsID      string            `gorm:"size:64;uniqueIndex" json:"newsId"`
	Title       string            `gorm:"size:512" json:"title"`
	URL         string            `gorm:"size:1024" json:"url"`
	ExtraData   datatypes.JSONMap `json:"extraData"`
	DeliveredAt time.Time         `gorm:"index" json:"deliveredAt"`
}

// GormStore 基于 gorm 的水位存储，同时实现 Journal
type GormStore struct {
	DB         *gorm.DB
	collection string
	key        string
}

func NewPostgresStore(dsn, collection, key string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewGormStore(db, collection, key)
}

// NewGormStore 使用已打开的连接，自动建表
func NewGormStore(db *gorm.DB, collection, key string) (*GormStore, error) {
	if err := db.AutoMigrate(&Watermark{}, &Delivery{}); err != nil {
		return nil, err
	}
	return &GormStore{DB: db, collection: collection, key: key}, nil
}

func (s *GormStore) Get(ctx context.Context) (collector.NewsID, bool, error) {
	var w Watermark
	err := s.DB.WithContext(ctx).
		Where(&Watermark{Collection: s.collection, Key: s.key}).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: load watermark: %v", ErrStore, err)
	}
	return collector.NewsID(w.LastNews), true, nil
}

func (s *GormStore) Set(ctx context.Context, id collector.NewsID) error {
	w := Watermark{
		Collection: s.collection,
		Key:        s.key,
		LastNews:   string(id),
		UpdatedAt:  time.Now(),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_news", "updated_at"}),
	}).Create(&w).Error
	if err != nil {
		return fmt.Errorf("%w: save watermark: %v", ErrStore, err)
	}
	return nil
}

// Record 同一条新闻重复投递时只保留第一条记录
func (s *GormStore) Record(ctx context.Context, news *collector.ExtractedNews, blocks int) error {
	d := &Delivery{
		NewsID: string(news.ID),
		Title:  truncateRunesDB(toValidUTF8(news.Title()), 512),
		URL:    news.URL,
		ExtraData: datatypes.JSONMap{
			"labels": news.Labels(),
			"blocks": blocks,
		},
		DeliveredAt: time.Now(),
	}
	if err := s.DB.WithContext(ctx).Where("news_id = ?", d.NewsID).FirstOrCreate(d).Error; err != nil {
		return fmt.Errorf("%w: record delivery %s: %v", ErrStore, d.NewsID, err)
	}
	return nil
}

// ListDeliveries 最近的投递记录，新的在前
func (s *GormStore) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	var list []Delivery
	err := s.DB.WithContext(ctx).Order("delivered_at DESC").Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// toValidUTF8 规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 截断，确保不超过字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
