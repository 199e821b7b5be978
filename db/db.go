package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"uptime-status/model"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Keys of the persisted client-side state.
const (
	KeyMonitorsCache = "monitors_cache"
	KeyRateLimitInfo = "rate_limit_info"
)

// Store persists the last good snapshot and the rate-limit notice as Setting rows.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// Open connects to the sqlite file at path (":memory:" works for tests) and migrates.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// sqlite 单连接，避免 database is locked；内存库也依赖同一连接
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&model.Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: gdb, log: log, now: time.Now}, nil
}

func (s *Store) Close() error {
	s.log.Info("Closing database...")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetSetting returns ok=false when the key does not exist.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	var setting model.Setting
	err = s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// SetSetting upserts one key.
func (s *Store) SetSetting(ctx context.Context, key, value, typ string) error {
	setting := model.Setting{Key: key, Value: value, Type: typ, UpdatedAt: s.now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(&setting).Error
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&model.Setting{}).Error
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SetSetting(ctx, key, string(data), "json")
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.GetSetting(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveSnapshot replaces the persisted cache entry.
func (s *Store) SaveSnapshot(ctx context.Context, entry model.CacheEntry) error {
	return s.setJSON(ctx, KeyMonitorsCache, entry)
}

// LoadSnapshot returns nil when nothing has been persisted yet. A corrupt row
// is dropped and reported as missing.
func (s *Store) LoadSnapshot(ctx context.Context) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	ok, err := s.getJSON(ctx, KeyMonitorsCache, &entry)
	if err != nil {
		s.log.Warn("Dropping unreadable snapshot", zap.Error(err))
		_ = s.DeleteSetting(ctx, KeyMonitorsCache)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *Store) SaveRateLimitNotice(ctx context.Context, n model.RateLimitNotice) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	return s.setJSON(ctx, KeyRateLimitInfo, n)
}

// RateLimitNotice returns the stored notice while it is younger than ttl.
// Older notices are deleted.
func (s *Store) RateLimitNotice(ctx context.Context, ttl time.Duration) (*model.RateLimitNotice, error) {
	var n model.RateLimitNotice
	ok, err := s.getJSON(ctx, KeyRateLimitInfo, &n)
	if err != nil || !ok {
		return nil, err
	}
	if s.now().Sub(n.Timestamp) >= ttl {
		if err := s.DeleteSetting(ctx, KeyRateLimitInfo); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &n, nil
}

func (s *Store) ClearRateLimitNotice(ctx context.Context) error {
	return s.DeleteSetting(ctx, KeyRateLimitInfo)
}
