// Package database keeps the tabular activity cache in a SQL database.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lildude/stravalytics/internal/cache"
	"github.com/lildude/stravalytics/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const metaID = 1

// InitDB opens the database named by dsn and migrates the schema. A dsn of
// the form postgres://… selects Postgres; sqlite:<path> or a bare path selects SQLite.
func InitDB(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case dsn == "":
		return nil, errors.New("database DSN is not set")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&model.ActivityRow{}, &model.TableMeta{}); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return db, nil
}

// Store implements the tabular cache on a gorm database.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Replace swaps the whole table in a single transaction.
func (s *Store) Replace(ctx context.Context, rows []model.ActivityRow) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAll(tx); err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("inserting activities: %w", err)
			}
		}
		meta := model.TableMeta{ID: metaID, Rows: len(rows), UpdatedAt: time.Now()}
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("marking table populated: %w", err)
		}
		return nil
	})
}

func (s *Store) Load(ctx context.Context) ([]model.ActivityRow, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.meta(db); err != nil {
		return nil, err
	}

	rows := []model.ActivityRow{}
	if err := db.Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading activities: %w", err)
	}
	return rows, nil
}

func (s *Store) Delete(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteAll(tx); err != nil {
			return err
		}
		return tx.Delete(&model.TableMeta{}, metaID).Error
	})
}

func (s *Store) Updated(ctx context.Context) (time.Time, error) {
	meta, err := s.meta(s.db.WithContext(ctx))
	if err != nil {
		return time.Time{}, err
	}
	return meta.UpdatedAt, nil
}

func (s *Store) meta(db *gorm.DB) (*model.TableMeta, error) {
	var meta model.TableMeta
	err := db.First(&meta, metaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("activities table: %w", cache.ErrCacheMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("reading table state: %w", err)
	}
	return &meta, nil
}

func deleteAll(tx *gorm.DB) error {
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.ActivityRow{}).Error; err != nil {
		return fmt.Errorf("clearing activities: %w", err)
	}
	return nil
}
