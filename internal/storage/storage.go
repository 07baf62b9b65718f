// Package storage persists entries, check-ins, reports and the conversation
// cursor through gorm. SQLite and MySQL are supported.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
)

var (
	// ErrStateConflict means the conversation state was written by someone
	// else since it was read.
	ErrStateConflict = errors.New("conversation state changed concurrently")
	ErrNotFound      = errors.New("record not found")
)

// gormWriter sends gorm's own log lines to the zap logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// newGormLogger reports slow queries and failed statements. A missing row is
// an expected answer for the cursor lookup and is not logged.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if driver == "mysql" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	logger.Infof("🗄️ Database ready (driver=%s)", driver)
	return s, nil
}

// New wraps an existing connection without migrating.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&model.Entry{},
		&model.ConversationState{},
		&model.Checkin{},
		&model.Report{},
		&model.PatternAlert{},
		&model.ChartData{},
		&model.ProcessedUpdate{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DB exposes the connection for collaborators that share it.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertEntry validates and stores a new entry, assigning its id and
// timestamp when unset.
func (s *Store) InsertEntry(ctx context.Context, e *model.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = model.Metadata{}
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// EntryFilter narrows ListEntries. Zero values mean no filter.
type EntryFilter struct {
	Category model.Category
	Limit    int
}

// ListEntries returns the newest entries first.
func (s *Store) ListEntries(ctx context.Context, f EntryFilter) ([]model.Entry, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if f.Category != "" {
		q = q.Where("type = ?", f.Category)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []model.Entry
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// EntriesSince returns entries created at or after since, oldest first,
// optionally limited to the given categories.
func (s *Store) EntriesSince(ctx context.Context, since time.Time, categories ...model.Category) ([]model.Entry, error) {
	q := s.db.WithContext(ctx).Where("created_at >= ?", since.UTC()).Order("created_at ASC")
	if len(categories) > 0 {
		q = q.Where("type IN ?", categories)
	}
	var out []model.Entry
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("entries since: %w", err)
	}
	return out, nil
}

// CheckinsSince returns completed check-ins, oldest first.
func (s *Store) CheckinsSince(ctx context.Context, since time.Time) ([]model.Checkin, error) {
	var out []model.Checkin
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("checkins since: %w", err)
	}
	return out, nil
}
