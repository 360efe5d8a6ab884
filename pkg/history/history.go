// Package history keeps a Postgres record of training runs.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gniziemazity/ml-course-phase-2/pkg/export"
	"github.com/gniziemazity/ml-course-phase-2/pkg/pipeline"
)

// Run is one finished training run.
type Run struct {
	ID           string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt    time.Time `gorm:"not null;index" json:"created_at"`
	TrainSamples int       `json:"train_samples"`
	TestSamples  int       `json:"test_samples"`
	Accuracy     float64   `json:"accuracy"`
	Baseline     float64   `json:"baseline"`
	Epochs       int       `json:"epochs"`
	Converged    bool      `json:"converged"`
	FinalLoss    float64   `json:"final_loss"`
	NeuronCounts string    `gorm:"type:text" json:"neuron_counts"` // JSON array
	Classes      string    `gorm:"type:text" json:"classes"`       // JSON array
	ModelPath    string    `json:"model_path"`
}

func (Run) TableName() string {
	return "training_runs"
}

// BeforeCreate sets the ID if the caller did not.
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// NewRun converts a pipeline result into a row. The run id of the result is kept.
func NewRun(res *pipeline.Result, doc *export.Document) (*Run, error) {
	counts, err := json.Marshal(res.NeuronCounts)
	if err != nil {
		return nil, err
	}
	classes, err := json.Marshal(doc.Classes)
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:           res.RunID,
		TrainSamples: res.TrainSamples,
		TestSamples:  res.TestSamples,
		Accuracy:     res.Accuracy,
		Baseline:     res.Baseline,
		Epochs:       res.Epochs,
		Converged:    res.Converged,
		FinalLoss:    res.FinalLoss,
		NeuronCounts: string(counts),
		Classes:      string(classes),
		ModelPath:    res.ModelPath,
	}, nil
}

// Connect opens a Postgres connection pool for dsn.
func Connect(dsn string) (*gorm.DB, error) {
	slog.Info("Connecting to database")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("history: failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Store reads and writes training runs.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the runs table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Record inserts run.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("history: record run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return runs, nil
}

// RunFinished records the run. It lets a Store observe pipeline runs.
func (s *Store) RunFinished(ctx context.Context, res *pipeline.Result, doc *export.Document) error {
	run, err := NewRun(res, doc)
	if err != nil {
		return err
	}
	return s.Record(ctx, run)
}
