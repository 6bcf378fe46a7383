package ledger

import (
	"time"

	"github.com/cnosuke/rigil-proxy/types"
	"github.com/cockroachdb/errors"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// keyRecord is the row layout of the api_keys table.
type keyRecord struct {
	Key                 string `gorm:"column:api_key;primaryKey"`
	TotalBytesProcessed int64
	TotalOriginalBytes  int64
	TotalProcessedBytes int64
	CompressionCount    int64
	CreatedAt           time.Time `gorm:"autoCreateTime:false"`
	LastUsed            *time.Time
}

func (keyRecord) TableName() string { return "api_keys" }

func toRecord(d types.KeyData) keyRecord {
	return keyRecord{
		Key:                 d.Key,
		TotalBytesProcessed: d.TotalBytesProcessed,
		TotalOriginalBytes:  d.TotalOriginalBytes,
		TotalProcessedBytes: d.TotalProcessedBytes,
		CompressionCount:    d.CompressionCount,
		CreatedAt:           d.CreatedAt,
		LastUsed:            d.LastUsed,
	}
}

func (r keyRecord) toKeyData() types.KeyData {
	return types.KeyData{
		Key:                 r.Key,
		TotalBytesProcessed: r.TotalBytesProcessed,
		TotalOriginalBytes:  r.TotalOriginalBytes,
		TotalProcessedBytes: r.TotalProcessedBytes,
		CompressionCount:    r.CompressionCount,
		CreatedAt:           r.CreatedAt,
		LastUsed:            r.LastUsed,
	}
}

// SQLite persists one row per key through gorm.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (or creates) the database at dsn and migrates the schema.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, errors.New("sqlite ledger requires a path")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", dsn)
	}
	if err := db.AutoMigrate(&keyRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate api_keys")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load() ([]types.KeyData, error) {
	var rows []keyRecord
	if err := s.db.Order("created_at").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load api keys")
	}
	out := make([]types.KeyData, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toKeyData())
	}
	return out, nil
}

func (s *SQLite) Upsert(d types.KeyData) error {
	rec := toRecord(d)
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	return errors.Wrapf(err, "upsert %s", redact(d.Key))
}

func (s *SQLite) Delete(key string) error {
	err := s.db.Where("api_key = ?", key).Delete(&keyRecord{}).Error
	return errors.Wrapf(err, "delete %s", redact(key))
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	return sqlDB.Close()
}
