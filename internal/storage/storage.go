package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LJTian/EdNewsHub/internal/collector"
	"github.com/LJTian/EdNewsHub/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Source 记录一个已配置的数据源，便于在库里直接查看快照来自哪里
type Source struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:128;uniqueIndex" json:"name"`
	BaseURL  string `gorm:"size:512" json:"baseUrl"`
	Category string `gorm:"size:64" json:"category"`
	Status   string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Article 是某个源最近一次成功采集结果中的一条，Position 保留原始顺序
type Article struct {
	ID             uint           `gorm:"primaryKey" json:"-"`
	ContentID      string         `gorm:"size:36;index" json:"id"`
	SourceName     string         `gorm:"size:128;index" json:"source"`
	Position       int            `json:"-"`
	Title          string         `gorm:"size:512" json:"title"`
	Description    string         `gorm:"size:600" json:"description"`
	Content        string         `gorm:"type:text" json:"content"`
	URL            string         `gorm:"size:1024" json:"url"`
	Image          string         `gorm:"size:1024" json:"image"`
	Category       string         `gorm:"size:64;index" json:"category"`
	Tags           datatypes.JSON `gorm:"type:jsonb" json:"tags"`
	RelevanceScore float64        `json:"relevanceScore"`
	PublishedAt    time.Time      `gorm:"index" json:"publishedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

const seenSetKey = "content:seen"

// Store 聚合 Postgres 与 Redis，两者都可以为空（对应功能关闭）
type Store struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *slog.Logger
}

func NewStore(dsn, redisAddr string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger.With("component", "storage")}

	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.AutoMigrate(&Source{}, &Article{}); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		s.DB = db
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			s.logger.Warn("redis ping failed", "addr", redisAddr, "error", err)
		}
		s.Redis = rdb
	}
	return s, nil
}

// EnsureSources 确保每个配置的源都有一条记录，已存在的更新地址与分类
func (s *Store) EnsureSources(ctx context.Context, sources []collector.ContentSource) error {
	if s == nil || s.DB == nil {
		return nil
	}
	for _, src := range sources {
		row := &Source{}
		err := s.DB.WithContext(ctx).Where("name = ?", src.Name).First(row).Error
		switch {
		case err == nil:
			if err := s.DB.WithContext(ctx).Model(row).Updates(map[string]any{
				"base_url": src.BaseURL,
				"category": src.Category,
			}).Error; err != nil {
				return fmt.Errorf("update source %s: %w", src.Name, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = &Source{Name: src.Name, BaseURL: src.BaseURL, Category: src.Category, Status: "active"}
			if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
				return fmt.Errorf("create source %s: %w", src.Name, err)
			}
		default:
			return fmt.Errorf("lookup source %s: %w", src.Name, err)
		}
	}
	return nil
}

// SaveSnapshot 在一个事务里整体替换某个源的快照，与内存缓存的槽位语义一致
func (s *Store) SaveSnapshot(ctx context.Context, source string, items []collector.ScrapedContent) error {
	if s == nil || s.DB == nil {
		return nil
	}
	rows := make([]Article, 0, len(items))
	for i, it := range items {
		rows = append(rows, toArticle(source, i, it))
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_name = ?", source).Delete(&Article{}).Error; err != nil {
			return fmt.Errorf("delete snapshot %s: %w", source, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("insert snapshot %s: %w", source, err)
		}
		return nil
	})
}

// LoadSnapshots 读出全部快照，按源分组并保持原始顺序
func (s *Store) LoadSnapshots(ctx context.Context) (map[string][]collector.ScrapedContent, error) {
	out := make(map[string][]collector.ScrapedContent)
	if s == nil || s.DB == nil {
		return out, nil
	}
	var rows []Article
	if err := s.DB.WithContext(ctx).Order("source_name").Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	for _, r := range rows {
		out[r.SourceName] = append(out[r.SourceName], fromArticle(r))
	}
	return out, nil
}

// GetJSON 从 Redis 读取并反序列化，未命中或 Redis 未配置时返回 false
func (s *Store) GetJSON(ctx context.Context, key string, dst any) bool {
	if s == nil || s.Redis == nil {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, dst) == nil
}

func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if s == nil || s.Redis == nil {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, bs, ttl).Err(); err != nil {
		s.logger.Debug("redis set failed", "key", key, "error", err)
	}
}

// SeenSet 返回基于 Redis 集合的已见 ID 记录，Redis 未配置时返回 nil
func (s *Store) SeenSet() *RedisSeenSet {
	if s == nil || s.Redis == nil {
		return nil
	}
	return &RedisSeenSet{rdb: s.Redis, key: seenSetKey}
}

// RedisSeenSet 跨进程重启保留已入队过的内容 ID
type RedisSeenSet struct {
	rdb *redis.Client
	key string
}

func (r *RedisSeenSet) Add(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.SAdd(ctx, r.key, id).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func toArticle(source string, pos int, it collector.ScrapedContent) Article {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	bs, _ := json.Marshal(tags)
	return Article{
		ContentID:      processor.ContentID(it),
		SourceName:     source,
		Position:       pos,
		Title:          truncateRunesDB(toValidUTF8(it.Title), 512),
		Description:    truncateRunesDB(toValidUTF8(it.Description), 600),
		Content:        toValidUTF8(it.Content),
		URL:            it.URL,
		Image:          it.Image,
		Category:       it.Category,
		Tags:           datatypes.JSON(bs),
		RelevanceScore: it.RelevanceScore,
		PublishedAt:    it.PublishedAt.UTC(),
	}
}

func fromArticle(a Article) collector.ScrapedContent {
	var tags []string
	if len(a.Tags) > 0 {
		_ = json.Unmarshal(a.Tags, &tags)
	}
	if tags == nil {
		tags = []string{}
	}
	return collector.ScrapedContent{
		Title:          a.Title,
		Description:    a.Description,
		Content:        a.Content,
		URL:            a.URL,
		Image:          a.Image,
		PublishedAt:    a.PublishedAt.UTC(),
		Source:         a.SourceName,
		Category:       a.Category,
		Tags:           tags,
		RelevanceScore: a.RelevanceScore,
	}
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
