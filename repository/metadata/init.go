package metadata

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type MySQLConfig struct {
	User     string
	Password string
	Host     string
	Database string
}

func (c *MySQLConfig) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Database)
}

type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
}

func (c *PostgresConfig) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

type SQLiteConfig struct {
	Path string
}

func (c *SQLiteConfig) dsn() string {
	return c.Path + "?_foreign_keys=on&_busy_timeout=5000"
}

/*
Config 数据库配置，Driver 决定使用 MySQL、Postgres 还是 SQLite 中的哪一个子配置。
*/
type Config struct {
	Driver         string
	MySQL          MySQLConfig
	Postgres       PostgresConfig
	SQLite         SQLiteConfig
	CheckMigration bool
}

func GenerateTestConfig() *Config {
	return &Config{
		Driver: DriverMySQL,
		MySQL: MySQLConfig{
			User:     "metadata_test",
			Password: "metadata_test",
			Host:     "localhost",
			Database: "metadata_test",
		},
		CheckMigration: true,
	}
}

// GenerateSQLiteTestConfig 在测试临时目录下创建独立的 SQLite 数据库。
func GenerateSQLiteTestConfig(t *testing.T) *Config {
	return &Config{
		Driver:         DriverSQLite,
		SQLite:         SQLiteConfig{Path: filepath.Join(t.TempDir(), "metadata_test.db")},
		CheckMigration: true,
	}
}

var db *gorm.DB

func dialector(config *Config) (gorm.Dialector, error) {
	switch config.Driver {
	case DriverMySQL, "":
		return mysql.Open(config.MySQL.dsn()), nil
	case DriverPostgres:
		return postgres.Open(config.Postgres.dsn()), nil
	case DriverSQLite:
		return sqlite.Open(config.SQLite.dsn()), nil
	}
	return nil, fmt.Errorf("unknown database driver [%s]", config.Driver)
}

func CreateDatabase(config *Config) (*gorm.DB, error) {
	dial, err := dialector(config)
	if err != nil {
		return nil, utils.WrapError(err, "select dialector fail")
	}

	database, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.New(&sqlLogger{logger: logging.NewLogger()}, logger.Config{
			LogLevel:                  logger.Info,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, utils.WrapError(err, "db connection fail")
	}

	if config.Driver == DriverSQLite {
		sqlDB, err := database.DB()
		if err != nil {
			return nil, utils.WrapError(err, "get sql.DB fail")
		}
		// SQLite 只允许单写者
		sqlDB.SetMaxOpenConns(1)
	}

	if config.CheckMigration {
		err = migration(database)
		if err != nil {
			return nil, utils.WrapError(err, "migration fail")
		}
	}

	return database, nil
}

func migration(db *gorm.DB) error {
	tables := []interface{}{
		&Clue{}, &Entity{}, &Relation{},
	}

	if db.Dialector.Name() == DriverMySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_ai_ci")
	}

	err := db.AutoMigrate(tables...)
	if err != nil {
		return utils.WrapError(err, "AutoMigrate fail")
	}

	return nil
}

// SetDatabase 设置全局数据库连接，由 CreateDatabase 创建。
func SetDatabase(database *gorm.DB) {
	db = database
}

func DatabaseRaw() *gorm.DB {
	return db
}

// Close 关闭全局数据库连接。
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return utils.WrapError(err, "get sql.DB fail")
	}
	return sqlDB.Close()
}
