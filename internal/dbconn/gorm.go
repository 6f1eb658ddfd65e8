// Package dbconn opens the relational database and the Redis client the
// application runs on.
package dbconn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/unimak/dftrack/internal/config"
	"github.com/unimak/dftrack/internal/slogging"
)

// GormDB wraps a GORM connection for any of the supported backends
type GormDB struct {
	db     *gorm.DB
	dbType string
}

// Dialector builds the GORM dialector for the configured backend.
// A non-empty URL is used verbatim as the driver DSN.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case config.DatabaseTypePostgres:
		dsn := cfg.URL
		if dsn == "" {
			dsn = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User,
				cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode,
			)
		}
		return postgres.Open(dsn), nil

	case config.DatabaseTypeMySQL:
		dsn := cfg.URL
		if dsn == "" {
			// parseTime=true is required for time.Time scanning
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
				cfg.MySQL.User, cfg.MySQL.Password, cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.Database)
		}
		return mysql.Open(dsn), nil

	case config.DatabaseTypeSQLServer:
		dsn := cfg.URL
		if dsn == "" {
			dsn = fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
				cfg.SQLServer.User, cfg.SQLServer.Password, cfg.SQLServer.Host, cfg.SQLServer.Port, cfg.SQLServer.Database)
		}
		return sqlserver.Open(dsn), nil

	case config.DatabaseTypeSQLite:
		dsn := cfg.URL
		if dsn == "" {
			dsn = cfg.SQLite.Path
		}
		return sqlite.Open(sqliteDSN(dsn)), nil

	case config.DatabaseTypeOracle:
		return oracleDialector(cfg)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// sqliteDSN turns on foreign key enforcement unless the DSN already sets it
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1"
}

// NewGormDB opens the configured database, sizes the pool and pings it
func NewGormDB(cfg config.DatabaseConfig) (*GormDB, error) {
	log := slogging.Get()
	log.Debug("Initializing GORM connection for database type: %s", cfg.Type)

	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: true,
	})
	if err != nil {
		log.Error("Failed to open GORM connection: %v", err)
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Type == config.DatabaseTypeSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(4 * time.Minute)
		sqlDB.SetConnMaxIdleTime(30 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("Failed to ping database: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("Database connection established (%s)", cfg.Type)

	return &GormDB{db: db, dbType: cfg.Type}, nil
}

// Wrap adapts an already opened *gorm.DB, e.g. one built by a test
func Wrap(db *gorm.DB) *GormDB {
	return &GormDB{db: db, dbType: DialectName(db)}
}

// Close closes the database connection
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("error closing database connection: %w", err)
	}
	return nil
}

// DB returns the GORM database instance
func (g *GormDB) DB() *gorm.DB {
	return g.db
}

// DatabaseType returns the configured backend name
func (g *GormDB) DatabaseType() string {
	return g.dbType
}

// Ping checks if the database connection is alive
func (g *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs GORM auto-migration for the given models
func (g *GormDB) AutoMigrate(models ...any) error {
	log := slogging.Get()
	log.Debug("Running GORM auto-migration for %d models", len(models))

	if err := g.db.AutoMigrate(models...); err != nil {
		// ORA-01442: column is already NOT NULL, schema is already in the desired state
		if g.dbType == config.DatabaseTypeOracle && strings.Contains(err.Error(), "ORA-01442") {
			log.Warn("Oracle migration warning ignored: column already NOT NULL")
			return nil
		}
		log.Error("GORM auto-migration failed: %v", err)
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// gormLogger adapts slogging to GORM's logger interface
type gormLogger struct {
	log *slogging.Logger
}

// NewGormLogger routes GORM output through the application logger
func NewGormLogger(log *slogging.Logger) logger.Interface {
	return &gormLogger{log: log}
}

func (l *gormLogger) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...any) {
	l.log.Info(msg, data...)
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.log.Warn(msg, data...)
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...any) {
	l.log.Error(msg, data...)
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && err != gorm.ErrRecordNotFound:
		l.log.Error("GORM query error: %v [%s] (%d rows, %s)", err, sql, rows, elapsed)
	default:
		l.log.Debug("GORM query: %s (%d rows, %s)", sql, rows, elapsed)
	}
}
