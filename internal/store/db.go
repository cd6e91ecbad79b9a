package store

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes the decision audit
// repository.
type Database struct {
	gorm *gorm.DB
}

// Open initializes the SQLite-backed audit database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&DecisionRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveDecision persists one decision audit record.
func (d *Database) SaveDecision(record *DecisionRecord) error {
	if d == nil {
		return errors.New("db is nil")
	}
	if err := d.gorm.Create(record).Error; err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// ListDecisions returns the most recent decision records plus the total
// count.
func (d *Database) ListDecisions(limit, offset int) ([]DecisionRecord, int64, error) {
	if d == nil {
		return nil, 0, errors.New("db is nil")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := d.gorm.Model(&DecisionRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count decisions: %w", err)
	}

	var records []DecisionRecord
	err := d.gorm.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list decisions: %w", err)
	}
	return records, total, nil
}

// GetDecision looks up one decision record by run ID.
func (d *Database) GetDecision(runID string) (*DecisionRecord, error) {
	if d == nil {
		return nil, errors.New("db is nil")
	}
	var record DecisionRecord
	err := d.gorm.Where("run_id = ?", runID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return &record, nil
}
