// ABOUTME: SQLite persistence for the station catalog and the cover art cache
// ABOUTME: Uses gorm with the pure-Go glebarez driver so no cgo toolchain is needed
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Station struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"index:idx_station_name" json:"name"`
	Stream    string    `gorm:"uniqueIndex:idx_station_stream" json:"stream"`
	Img       *string   `json:"img"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type Cover struct {
	Key       string `gorm:"primaryKey;column:track_key"`
	URL       string
	UpdatedAt time.Time
}

type Store struct {
	DB *gorm.DB
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// Monitors write cover rows concurrently; one writer avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Station{}, &Cover{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{DB: db, db: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SeedStations upserts stations by stream address. Existing rows keep their ID.
func (s *Store) SeedStations(ctx context.Context, stations []Station) error {
	if len(stations) == 0 {
		return nil
	}

	// One statement cannot upsert the same stream twice, so the last entry wins.
	index := make(map[string]int, len(stations))
	rows := make([]Station, 0, len(stations))
	for _, st := range stations {
		stream := strings.TrimSpace(st.Stream)
		name := strings.TrimSpace(st.Name)
		if stream == "" || name == "" {
			continue
		}
		if i, ok := index[stream]; ok {
			rows[i].Name = name
			rows[i].Img = NormalizeImage(st.Img)
			continue
		}
		index[stream] = len(rows)
		rows = append(rows, Station{
			ID:     uuid.NewString(),
			Name:   name,
			Stream: stream,
			Img:    NormalizeImage(st.Img),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stream"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "img", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seeding stations: %w", err)
	}
	return nil
}

func (s *Store) ListStations(ctx context.Context) ([]Station, error) {
	var stations []Station
	if err := s.DB.WithContext(ctx).Order("name").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("listing stations: %w", err)
	}
	return stations, nil
}

func (s *Store) LookupCover(ctx context.Context, key string) (string, bool, error) {
	var c Cover
	err := s.DB.WithContext(ctx).Where("track_key = ?", key).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying cover: %w", err)
	}
	return c.URL, true, nil
}

func (s *Store) SaveCover(ctx context.Context, key, url string) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&Cover{Key: key, URL: url}).Error
	if err != nil {
		return fmt.Errorf("saving cover: %w", err)
	}
	return nil
}

// NormalizeImage upgrades protocol-relative and plain-http image URLs to https.
func NormalizeImage(img *string) *string {
	if img == nil {
		return nil
	}

	v := strings.TrimSpace(*img)
	switch {
	case v == "":
		return nil
	case strings.HasPrefix(v, "//"):
		v = "https:" + v
	case strings.HasPrefix(v, "http://"):
		v = "https://" + strings.TrimPrefix(v, "http://")
	}
	return &v
}
