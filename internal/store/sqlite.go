package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"signal-trader/internal/config"
)

// Store 封装 SQLite 连接，风控跟踪与监控日志共用同一个库。
type Store struct {
	db *sql.DB
}

// NewSQLite 打开 SQLite 数据库并校验连接可用。
// WAL 与忙等超时直接写进 DSN，避免连接池里各连接状态不一致。
func NewSQLite(cfg config.DatabaseConfig) (*Store, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: 打开 SQLite 失败: %w", err)
	}

	if cfg.InMemory {
		// 内存库的每个新连接都是一张空库，必须限制为单连接。
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: SQLite 连接校验失败: %w", err)
	}

	return &Store{db: conn}, nil
}

func buildDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.InMemory {
		return ":memory:", nil
	}
	if cfg.Path == "" {
		return "", fmt.Errorf("store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("store: 创建数据目录 %q 失败: %w", dir, err)
		}
	}

	params := url.Values{
		"_busy_timeout": {"5000"},
		"_foreign_keys": {"on"},
		"_journal_mode": {"WAL"},
		"_synchronous":  {"NORMAL"},
	}
	return "file:" + cfg.Path + "?" + params.Encode(), nil
}

// DB 返回底层 *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
