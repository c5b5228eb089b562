package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxIdleConns    = 10
	maxOpenConns    = 100
	connMaxLifetime = time.Hour
)

// Service exposes the GORM handle plus pool health and shutdown.
type Service interface {
	Health() map[string]string
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db  *gorm.DB
	log *zap.Logger
}

// New opens a PostgreSQL connection pool for dsn and verifies it with a ping.
func New(dsn string, log *zap.Logger) (Service, error) {
	return open(postgres.Open(dsn), log)
}

// NewWithConn wraps an existing *sql.DB, e.g. one produced by sqlmock.
func NewWithConn(conn *sql.DB, log *zap.Logger) (Service, error) {
	return open(postgres.New(postgres.Config{Conn: conn}), log)
}

func open(dialector gorm.Dialector, log *zap.Logger) (Service, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	// Every write is a single filtered statement, so the implicit
	// per-statement transaction GORM adds buys nothing.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return &service{db: db, log: log}, nil
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Health pings the database and reports pool statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("failed to get underlying DB for health check: %v", err)
		s.log.Error("health: get sql.DB", zap.Error(err))
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.log.Warn("health: db down", zap.Error(err))
		return stats
	}

	dbStats := sqlDB.Stats()
	stats["status"] = "up"
	stats["message"] = poolMessage(dbStats)
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)
	return stats
}

// poolMessage summarises pool pressure against the limits set in open.
// The first matching condition wins.
func poolMessage(st sql.DBStats) string {
	switch {
	case st.InUse*5 >= maxOpenConns*4:
		return fmt.Sprintf("pool nearly exhausted: %d of %d connections in use", st.InUse, maxOpenConns)
	case st.WaitCount > 0 && st.WaitDuration > time.Second:
		return fmt.Sprintf("requests waited %s for a connection (%d waits)", st.WaitDuration, st.WaitCount)
	case st.MaxIdleClosed > int64(maxIdleConns) && st.MaxIdleClosed > int64(st.OpenConnections):
		return fmt.Sprintf("idle connections churn above the idle limit of %d", maxIdleConns)
	case st.MaxLifetimeClosed > int64(st.OpenConnections) && st.OpenConnections > 0:
		return fmt.Sprintf("connections are recycled often by the %s lifetime", connMaxLifetime)
	}
	return "healthy"
}

func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.log.Info("closing database connection pool")
	return sqlDB.Close()
}
