package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

func Dialect(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case DialectMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)), nil
	case DialectPostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.Port,
			cfg.SSLMode,
		)), nil
	case DialectSQLite:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = "boostd.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

// LockingClause returns the row-claim suffix for batch selects. SQLite has no
// row locks, so claims there fall back to the conditional updates alone.
func LockingClause(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	switch conn.Dialector.Name() {
	case DialectPostgres, DialectMySQL:
		return "FOR UPDATE SKIP LOCKED"
	default:
		return ""
	}
}

// RowLockClause returns a blocking row lock suffix (no SKIP LOCKED).
func RowLockClause(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	switch conn.Dialector.Name() {
	case DialectPostgres, DialectMySQL:
		return "FOR UPDATE"
	default:
		return ""
	}
}
