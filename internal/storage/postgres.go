package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jvheeswijck/sim-subs/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PostgresStorage implements Storage on PostgreSQL through gorm.
type PostgresStorage struct {
	staging
	db  *gorm.DB
	log *logrus.Entry
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage connects to dsn and migrates the four tables.
func NewPostgresStorage(dsn string, log *logrus.Entry) (*PostgresStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Parents before children so the foreign keys resolve.
	if err := db.AutoMigrate(&models.Community{}, &models.Author{}, &models.Post{}, &models.Comment{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database connected successfully")
	return newPostgresStorage(db, log), nil
}

func newPostgresStorage(db *gorm.DB, log *logrus.Entry) *PostgresStorage {
	return &PostgresStorage{db: db, log: log}
}

func (s *PostgresStorage) exists(ctx context.Context, model interface{}, column, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where(column+" = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking %s: %w", id, err)
	}
	return count > 0, nil
}

func (s *PostgresStorage) PostExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, &models.Post{}, "post_id", id)
}

func (s *PostgresStorage) CommunityExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, &models.Community{}, "sub_id", id)
}

func (s *PostgresStorage) AuthorExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, &models.Author{}, "user_id", id)
}

func (s *PostgresStorage) ExistingAuthors(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}
	var stored []string
	err := s.db.WithContext(ctx).Model(&models.Author{}).Where("user_id IN ?", ids).Pluck("user_id", &stored).Error
	if err != nil {
		return nil, fmt.Errorf("querying existing users: %w", err)
	}
	for _, id := range stored {
		found[id] = true
	}
	return found, nil
}

func (s *PostgresStorage) Commit(ctx context.Context) error {
	recs := s.take()
	if len(recs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			// Parents are inserted by the writer, never through associations.
			if err := tx.Omit(clause.Associations).Create(rec).Error; err != nil {
				return fmt.Errorf("inserting %s %s: %w", rec.TableName(), rec.RecordID(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("rows", len(recs)).Debug("Committed")
	return nil
}

func (s *PostgresStorage) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	targets := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.Community{}, &c.Communities},
		{&models.Author{}, &c.Authors},
		{&models.Post{}, &c.Posts},
		{&models.Comment{}, &c.Comments},
	}
	for _, t := range targets {
		if err := s.db.WithContext(ctx).Model(t.model).Count(t.dst).Error; err != nil {
			return Counts{}, fmt.Errorf("counting rows: %w", err)
		}
	}
	return c, nil
}

func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLogger routes gorm's logging through logrus.
type gormLogger struct {
	log    *logrus.Entry
	Config logger.Config
}

func newGormLogger(log *logrus.Entry) *gormLogger {
	return &gormLogger{
		log: log,
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	}
}

// LogMode sets the logging level and returns a new interface instance.
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newlogger := *l
	newlogger.Config.LogLevel = level
	return &newlogger
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		l.log.WithContext(ctx).Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		l.log.WithContext(ctx).Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		l.log.WithContext(ctx).Errorf(msg, data...)
	}
}

// Trace logs SQL statements: errors always, slow queries at warn level.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := l.log.WithContext(ctx).WithFields(logrus.Fields{
		"sql":     sql,
		"rows":    rows,
		"elapsed": elapsed,
	})

	switch {
	case err != nil && l.Config.LogLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		entry.WithError(err).Error("GORM query error")
	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= logger.Warn:
		entry.Warn("GORM slow query")
	case l.Config.LogLevel >= logger.Info:
		entry.Info("GORM query")
	}
}
