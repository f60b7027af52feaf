package database

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/core/datamodel/procurement"
	userDatamodel "github.com/frahmantamala/procure-to-pay/internal/core/datamodel/user"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects gorm to the configured driver and applies pool settings.
func Open(cfg internal.DatabaseConfig, lg *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case internal.DriverPostgres:
		dialector = postgres.Open(cfg.Source)
	case internal.DriverSQLite:
		dialector = sqlite.Open(cfg.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if lg != nil {
		lg.Info("database connected", "driver", cfg.Driver, "max_open_conns", cfg.MaxOpenConns)
	}
	return db, nil
}

// DriverName is the database/sql driver registered for a configured driver.
func DriverName(driver string) string {
	if driver == internal.DriverSQLite {
		return "sqlite3"
	}
	return "pgx"
}

// approvedLevelIndex allows at most one approved decision per request level.
// Both postgres and sqlite accept partial indexes.
const approvedLevelIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uq_approvals_request_level_approved
	ON approvals (request_id, level) WHERE status = 'approved'`

// AutoMigrate creates every table of the procurement schema from the gorm
// models, plus the indexes gorm tags cannot express.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&userDatamodel.User{},
		&procurement.PurchaseOrder{},
		&procurement.PurchaseRequest{},
		&procurement.RequestItem{},
		&procurement.Approval{},
	)
	if err != nil {
		return err
	}
	if err := db.Exec(approvedLevelIndex).Error; err != nil {
		return fmt.Errorf("failed to create approval index: %w", err)
	}
	return nil
}

// postgres SQLSTATEs that mean "try again": serialization failure,
// deadlock, lock timeout and statement timeout.
var retryableStates = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
	"57014": {},
}

// IsRetryable reports whether err is a transient storage conflict.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryableStates[pgErr.Code]
		return ok
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
