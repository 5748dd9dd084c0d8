package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fiffu/tickerwatch/lib/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens a sqlite database with a single connection, so writes
// from different pollers queue instead of failing with SQLITE_BUSY.
func OpenSQLite(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	err := db.AutoMigrate(
		&models.Checkpoint{},
		&models.Subscriber{},
		&models.Company{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return &GormStore{db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetLast(ctx context.Context, source string) (models.Watermark, bool, error) {
	var rows []models.Checkpoint
	tx := s.db.WithContext(ctx).
		Where("source_name = ?", source).
		Limit(1).
		Find(&rows)
	if err := tx.Error; err != nil {
		return models.Watermark{}, false, err
	}
	if len(rows) == 0 {
		return models.Watermark{}, false, nil
	}

	w, err := models.ParseWatermark(rows[0].LastID)
	if err != nil {
		return models.Watermark{}, false, err
	}
	return w, true, nil
}

func (s *GormStore) UpdateLast(ctx context.Context, source string, w models.Watermark) error {
	row := &models.Checkpoint{
		SourceName: source,
		LastID:     w.String(),
		UpdatedAt:  time.Now().UTC(),
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_id", "updated_at"}),
		}).
		Create(row)
	return tx.Error
}

func (s *GormStore) AddSubscriber(ctx context.Context, sub models.Subscriber) (models.Subscriber, error) {
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sub)
	if err := tx.Error; err != nil {
		return sub, err
	}

	var stored models.Subscriber
	tx = s.db.WithContext(ctx).
		Where("platform = ? AND identifier = ?", sub.Platform, sub.Identifier).
		Take(&stored)
	return stored, tx.Error
}

func (s *GormStore) RemoveSubscriber(ctx context.Context, sub models.Subscriber) error {
	tx := s.db.WithContext(ctx).
		Where("platform = ? AND identifier = ?", sub.Platform, sub.Identifier).
		Delete(&models.Subscriber{})
	return tx.Error
}

func (s *GormStore) ListSubscribers(ctx context.Context) (models.Subscribers, error) {
	var subs models.Subscribers
	tx := s.db.WithContext(ctx).
		Order("created_at, platform, identifier").
		Find(&subs)
	return subs, tx.Error
}

func (s *GormStore) ListCompanies(ctx context.Context) (models.Companies, error) {
	var companies models.Companies
	tx := s.db.WithContext(ctx).Order("name").Find(&companies)
	return companies, tx.Error
}

func (s *GormStore) InsertCompanies(ctx context.Context, companies models.Companies) (int, error) {
	if len(companies) == 0 {
		return 0, nil
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&companies)
	return int(tx.RowsAffected), tx.Error
}
