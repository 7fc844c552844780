package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RunRecord is one analysis run: a symbol, the mode it ran in and the
// commentary the model produced.
type RunRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Symbol    string    `gorm:"size:32;index"`
	Mode      string    `gorm:"size:16"`
	Analysis  string    `gorm:"type:text"`
	Status    string    `gorm:"size:16"`
	CreatedAt time.Time `gorm:"index"`
}

func (RunRecord) TableName() string { return "runs" }

// BatchRecord is one fetched interval inside a run.
type BatchRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"size:64;index"`
	Interval    string `gorm:"size:8"`
	Days        int
	CandleCount int
	FirstOpenMs int64
	LastOpenMs  int64
	CSVPath     string `gorm:"size:512"`
	ChartPath   string `gorm:"size:512"`
	CreatedAt   time.Time
}

func (BatchRecord) TableName() string { return "fetch_batches" }

// Store archives runs and fetch batches in a local SQLite file.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunRecord{}, &BatchRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun inserts or updates a run by id.
func (s *Store) SaveRun(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("sqlite store: run id required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	return s.db.Save(run).Error
}

// SaveBatch appends one interval's fetch result to a run.
func (s *Store) SaveBatch(batch *BatchRecord) error {
	if batch.RunID == "" {
		return fmt.Errorf("sqlite store: batch run id required")
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}
	return s.db.Create(batch).Error
}

// RecentRuns returns the newest runs, capped at limit.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// BatchesForRun returns a run's fetch batches in insertion order.
func (s *Store) BatchesForRun(runID string) ([]BatchRecord, error) {
	var batches []BatchRecord
	err := s.db.Where("run_id = ?", runID).Order("id ASC").Find(&batches).Error
	return batches, err
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
