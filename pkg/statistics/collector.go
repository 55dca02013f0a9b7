package statistics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/kasuganosora/relopt/pkg/config"
)

// Collector 通过 database/sql 收集表的行数，供代价估算使用
type Collector struct {
	db      *sql.DB
	dialect Dialect
	tables  []string
	timeout time.Duration
	logger  *zap.Logger
}

// Open 连接统计信息数据源并验证连通性
func Open(ctx context.Context, cfg config.StatisticsConfig, logger *zap.Logger) (*Collector, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接统计信息数据源失败: %w", err)
	}

	c := &Collector{db: db, dialect: dialect, tables: cfg.Tables, timeout: cfg.Timeout, logger: logger}
	pingCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接统计信息数据源失败: %w", err)
	}
	return c, nil
}

func (c *Collector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// Close 关闭连接
func (c *Collector) Close() error {
	return c.db.Close()
}

// Tables 当前库的全部基本表
func (c *Collector) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("get tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("get tables: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Collect 统计行数，键为大写表名。
// 未指定表时使用配置中的表，配置也为空时统计全部基本表。
func (c *Collector) Collect(ctx context.Context, tables ...string) (map[string]int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if len(tables) == 0 {
		tables = c.tables
	}
	if len(tables) == 0 {
		all, err := c.Tables(ctx)
		if err != nil {
			return nil, err
		}
		tables = all
	}

	out := make(map[string]int64, len(tables))
	for _, table := range tables {
		var rows int64
		query := "SELECT COUNT(*) FROM " + c.dialect.QuoteIdentifier(table)
		if err := c.db.QueryRowContext(ctx, query).Scan(&rows); err != nil {
			return nil, fmt.Errorf("count rows of %s: %w", table, err)
		}
		out[strings.ToUpper(table)] = rows
		c.logger.Debug("table statistics collected", zap.String("table", table), zap.Int64("rows", rows))
	}
	return out, nil
}

// Merge 把收集到的行数并入配置，配置中已有的表保持不变
func Merge(cfg *config.CostConfig, collected map[string]int64) {
	if cfg.Tables == nil {
		cfg.Tables = make(map[string]int64, len(collected))
	}
	configured := make(map[string]bool, len(cfg.Tables))
	for table := range cfg.Tables {
		configured[strings.ToUpper(table)] = true
	}
	for table, rows := range collected {
		if !configured[strings.ToUpper(table)] {
			cfg.Tables[table] = rows
		}
	}
}
